package btree

import (
	"testing"

	"github.com/SimonWaldherr/bplustree/internal/page"
)

func drainScan(t *testing.T, s *Scan) []string {
	t.Helper()
	var got []string
	for {
		k, _, ok, err := s.GetNext()
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	return got
}

func TestScanEmptyTree(t *testing.T) {
	ix := newTestIndex(t)
	s, err := ix.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	if got := drainScan(t, s); len(got) != 0 {
		t.Fatalf("scan of empty tree = %v, want none", got)
	}
}

func TestScanFullRangeAcrossManyLeaves(t *testing.T) {
	ix := newTestIndex(t)
	const n = 400
	for i := 0; i < n; i++ {
		if err := ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	s, err := ix.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	got := drainScan(t, s)
	if len(got) != n {
		t.Fatalf("scan returned %d entries, want %d", len(got), n)
	}
	for i, k := range got {
		if k != string(testKey(i)) {
			t.Fatalf("scan[%d] = %s, want %s (out of order)", i, k, testKey(i))
		}
	}
}

func TestScanBoundedRange(t *testing.T) {
	ix := newTestIndex(t)
	for i := 0; i < 200; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}
	s, err := ix.OpenScan(testKey(50), testKey(59))
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	got := drainScan(t, s)
	if len(got) != 10 {
		t.Fatalf("bounded scan returned %d entries, want 10", len(got))
	}
	if got[0] != string(testKey(50)) || got[len(got)-1] != string(testKey(59)) {
		t.Fatalf("bounded scan range = [%s, %s], want [0050, 0059]", got[0], got[len(got)-1])
	}
}

func TestScanEqualLowHighSelectsOneKey(t *testing.T) {
	ix := newTestIndex(t)
	for i := 0; i < 50; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}
	s, err := ix.OpenScan(testKey(25), testKey(25))
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	got := drainScan(t, s)
	if len(got) != 1 || got[0] != string(testKey(25)) {
		t.Fatalf("equal-bound scan = %v, want [0025]", got)
	}
}

func TestScanToleratesDeleteBetweenCalls(t *testing.T) {
	ix := newTestIndex(t)
	for i := 0; i < 20; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}
	s, err := ix.OpenScan(nil, nil)
	if err != nil {
		t.Fatalf("OpenScan: %v", err)
	}
	k, _, ok, err := s.GetNext()
	if err != nil || !ok || string(k) != string(testKey(0)) {
		t.Fatalf("first GetNext = (%s, %v, %v), want (0000, true, nil)", k, ok, err)
	}
	// Mutate the tree mid-scan; GetNext must not error on the next call
	// (best-effort tolerance, not exact-snapshot semantics).
	if err := ix.Delete(testKey(5), page.RecordID{Page: 6, Slot: 0}); err != nil {
		t.Fatalf("Delete mid-scan: %v", err)
	}
	for {
		_, _, ok, err := s.GetNext()
		if err != nil {
			t.Fatalf("GetNext after mid-scan mutation: %v", err)
		}
		if !ok {
			break
		}
	}
}

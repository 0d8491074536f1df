package btree

import (
	"testing"

	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// fillLeaf inserts zero-padded keys starting at start until the leaf
// cannot hold one more, returning the count inserted and the next key
// that did not fit.
func fillLeaf(t *testing.T, L *leaf, start int) (count int, overflowKey []byte) {
	t.Helper()
	i := start
	for {
		k := testKey(i)
		if _, err := L.Insert(k, page.RecordID{Page: page.ID(i + 1), Slot: 0}); err != nil {
			return i - start, k
		}
		i++
	}
}

func TestSplitLeafPreservesOrderAndSeparator(t *testing.T) {
	ix := newTestIndex(t)
	lPid, lBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
		buf := page.NewBuffer(ix.pool.PageSize(), page.TypeLeafNode, id)
		initLeaf(buf)
		return buf
	})
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	L := wrapLeaf(lBuf)
	_, overflow := fillLeaf(t, L, 0)

	nPid, sep, err := ix.splitLeaf(lPid, lBuf, overflow, page.RecordID{Page: 9999, Slot: 0})
	if err != nil {
		t.Fatalf("splitLeaf: %v", err)
	}
	if nPid == lPid {
		t.Fatal("splitLeaf returned the same page id for N as L")
	}

	nBuf, err := ix.pool.Pin(nPid)
	if err != nil {
		t.Fatalf("Pin(N): %v", err)
	}
	N := wrapLeaf(nBuf)

	lKeys, _ := L.allEntries()
	nKeys, _ := N.allEntries()
	if len(lKeys) == 0 || len(nKeys) == 0 {
		t.Fatalf("split produced an empty side: L=%d N=%d", len(lKeys), len(nKeys))
	}
	for _, k := range lKeys {
		if key.Cmp(k, sep) >= 0 {
			t.Errorf("L contains key %q >= separator %q", k, sep)
		}
	}
	for _, k := range nKeys {
		if key.Cmp(k, sep) < 0 {
			t.Errorf("N contains key %q < separator %q", k, sep)
		}
	}
	if string(nKeys[0]) != string(sep) {
		t.Errorf("separator %q does not match N's first key %q", sep, nKeys[0])
	}

	// L and N together hold every original entry plus the new one, with no
	// duplicates and no gaps: verify by count.
	total := len(lKeys) + len(nKeys)
	wantTotal := 0
	for i := 0; ; i++ {
		if _, ok := findKey(lKeys, testKey(i)); ok {
			wantTotal++
			continue
		}
		if _, ok := findKey(nKeys, testKey(i)); ok {
			wantTotal++
			continue
		}
		break
	}
	if total != wantTotal {
		t.Errorf("total entries after split = %d, want %d", total, wantTotal)
	}

	ix.pool.Unpin(nPid, false)
	ix.pool.Unpin(lPid, false)
}

func findKey(keys [][]byte, target []byte) (int, bool) {
	for i, k := range keys {
		if string(k) == string(target) {
			return i, true
		}
	}
	return 0, false
}

func TestSplitIndexSeparatorResidesOnNeitherChild(t *testing.T) {
	ix := newTestIndex(t)
	iPid, iBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
		buf := page.NewBuffer(ix.pool.PageSize(), page.TypeIndexNode, id)
		initIndex(buf)
		return buf
	})
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	I := wrapIndex(iBuf)
	I.SetLeftmostChild(1000)

	i := 0
	var overflowKey []byte
	for {
		k := testKey(i)
		if _, err := I.Insert(k, page.ID(i+2000)); err != nil {
			overflowKey = k
			break
		}
		i++
	}

	nPid, sepKey, err := ix.splitIndex(iPid, iBuf, overflowKey, page.ID(99999))
	if err != nil {
		t.Fatalf("splitIndex: %v", err)
	}

	nBuf, err := ix.pool.Pin(nPid)
	if err != nil {
		t.Fatalf("Pin(N): %v", err)
	}
	N := wrapIndex(nBuf)

	iKeys, _ := I.allEntries()
	nKeys, _ := N.allEntries()
	for _, k := range append(append([][]byte{}, iKeys...), nKeys...) {
		if string(k) == string(sepKey) {
			t.Errorf("separator key %q still present on a child page", sepKey)
		}
	}
	ix.pool.Unpin(nPid, false)
	ix.pool.Unpin(iPid, false)
}

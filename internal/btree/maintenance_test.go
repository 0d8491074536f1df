package btree

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SimonWaldherr/bplustree/internal/bufmgr"
	"github.com/SimonWaldherr/bplustree/internal/diskmgr"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

func TestDumpStatisticsEmptyTree(t *testing.T) {
	ix := newTestIndex(t)
	st, err := ix.DumpStatistics()
	if err != nil {
		t.Fatalf("DumpStatistics: %v", err)
	}
	if st.LeafPages != 0 || st.IndexPages != 0 || st.LeafEntries != 0 {
		t.Fatalf("empty-tree stats = %+v, want all zero", st)
	}
}

func TestDumpStatisticsCountsMatchInserts(t *testing.T) {
	ix := newTestIndex(t)
	const n = 600
	for i := 0; i < n; i++ {
		if err := ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	st, err := ix.DumpStatistics()
	if err != nil {
		t.Fatalf("DumpStatistics: %v", err)
	}
	if st.LeafEntries != n {
		t.Fatalf("LeafEntries = %d, want %d", st.LeafEntries, n)
	}
	if st.LeafPages < 2 {
		t.Fatalf("LeafPages = %d, want at least 2 over %d inserts", st.LeafPages, n)
	}
	if st.Height < 1 {
		t.Fatalf("Height = %d, want >= 1 for a multi-leaf tree", st.Height)
	}
	if st.AvgFill <= 0 || st.AvgFill > 1 {
		t.Fatalf("AvgFill = %f, want in (0, 1]", st.AvgFill)
	}
}

func TestPrintTreeRecursiveCoversAllLeaves(t *testing.T) {
	ix := newTestIndex(t)
	const n = 300
	for i := 0; i < n; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}
	var buf bytes.Buffer
	if err := ix.PrintTree(&buf, PrintRecursive); err != nil {
		t.Fatalf("PrintTree: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "LEAF") {
		t.Fatalf("PrintTree output missing LEAF pages:\n%s", out)
	}
	if !strings.Contains(out, "0000") || !strings.Contains(out, "0299") {
		t.Fatalf("PrintTree output missing boundary keys:\n%s", out)
	}
}

func TestPrintTreeEmpty(t *testing.T) {
	ix := newTestIndex(t)
	var buf bytes.Buffer
	if err := ix.PrintTree(&buf, PrintRecursive); err != nil {
		t.Fatalf("PrintTree: %v", err)
	}
	if !strings.Contains(buf.String(), "empty") {
		t.Fatalf("PrintTree(empty) = %q, want a message mentioning an empty tree", buf.String())
	}
}

func TestLivePagesMatchesDestroyFileSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	disk, err := diskmgr.Open(path, page.MinSize)
	if err != nil {
		t.Fatalf("diskmgr.Open: %v", err)
	}
	defer disk.Close()
	pool := bufmgr.New(disk, 0)

	ix, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	const n = 400
	for i := 0; i < n; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}

	live, err := ix.LivePages()
	if err != nil {
		t.Fatalf("LivePages: %v", err)
	}
	if len(live) == 0 {
		t.Fatal("LivePages returned nothing for a non-empty tree")
	}
	seen := make(map[page.ID]bool)
	for _, pid := range live {
		if seen[pid] {
			t.Fatalf("LivePages listed page %d twice", pid)
		}
		seen[pid] = true
	}
	if !seen[ix.HeaderPageID()] {
		t.Fatal("LivePages did not include the header page")
	}

	if err := ix.DestroyFile(); err != nil {
		t.Fatalf("DestroyFile: %v", err)
	}
	// Every page LivePages reported live should now be reusable: a fresh
	// Create plus enough inserts to need the same number of pages again
	// must not grow the pool past what DestroyFile freed.
	before := disk.NumPages()
	ix2, err := Create(pool)
	if err != nil {
		t.Fatalf("Create after DestroyFile: %v", err)
	}
	defer ix2.Close()
	for i := 0; i < n; i++ {
		if err := ix2.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d) into fresh index: %v", i, err)
		}
	}
	if got := disk.NumPages(); got > before {
		t.Fatalf("NumPages grew from %d to %d; DestroyFile-freed pages were not reused", before, got)
	}
}

func TestLivePagesEmptyTree(t *testing.T) {
	ix := newTestIndex(t)
	live, err := ix.LivePages()
	if err != nil {
		t.Fatalf("LivePages: %v", err)
	}
	if len(live) != 1 || live[0] != ix.HeaderPageID() {
		t.Fatalf("LivePages on empty tree = %v, want only the header page %d", live, ix.HeaderPageID())
	}
}

func TestDumpPagesCoversAllLeavesAndIndexPages(t *testing.T) {
	ix := newTestIndex(t)
	const n = 300
	for i := 0; i < n; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}
	dumps, err := ix.DumpPages()
	if err != nil {
		t.Fatalf("DumpPages: %v", err)
	}
	if len(dumps) == 0 {
		t.Fatal("DumpPages returned nothing for a non-empty tree")
	}
	leafKeys, sawIndex := 0, false
	for _, d := range dumps {
		switch d.Kind {
		case "LEAF":
			leafKeys += len(d.Keys)
		case "INDEX":
			sawIndex = true
			if len(d.Children) != len(d.Keys) {
				t.Fatalf("INDEX page %d has %d keys but %d children", d.ID, len(d.Keys), len(d.Children))
			}
		default:
			t.Fatalf("PageDump with unexpected kind %q", d.Kind)
		}
	}
	if leafKeys != n {
		t.Fatalf("DumpPages leaf keys = %d, want %d", leafKeys, n)
	}
	if !sawIndex {
		t.Fatal("DumpPages over a multi-leaf tree produced no INDEX page")
	}
}

func TestDumpPagesEmptyTree(t *testing.T) {
	ix := newTestIndex(t)
	dumps, err := ix.DumpPages()
	if err != nil {
		t.Fatalf("DumpPages: %v", err)
	}
	if dumps != nil {
		t.Fatalf("DumpPages on empty tree = %v, want nil", dumps)
	}
}

func TestDestroyFileFreesEveryPage(t *testing.T) {
	pool := newTestPool(t)
	ix, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	const n = 400
	for i := 0; i < n; i++ {
		ix.Insert(testKey(i), page.RecordID{Page: page.ID(i + 1), Slot: 0})
	}
	if err := ix.DestroyFile(); err != nil {
		t.Fatalf("DestroyFile: %v", err)
	}

	// Every page DestroyFile freed should be reusable by a fresh Create.
	ix2, err := Create(pool)
	if err != nil {
		t.Fatalf("Create after DestroyFile: %v", err)
	}
	defer ix2.Close()
	if err := ix2.Insert(testKey(0), page.RecordID{Page: 1, Slot: 0}); err != nil {
		t.Fatalf("Insert into fresh index after DestroyFile: %v", err)
	}
}

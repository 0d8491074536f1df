package catalog

import (
	"path/filepath"
	"testing"

	"github.com/SimonWaldherr/bplustree/internal/bufmgr"
	"github.com/SimonWaldherr/bplustree/internal/diskmgr"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

func newTestPool(t *testing.T) *bufmgr.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.db")
	d, err := diskmgr.Open(path, page.MinSize)
	if err != nil {
		t.Fatalf("diskmgr.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return bufmgr.New(d, 0)
}

func TestCatalogAddGetDelete(t *testing.T) {
	pool := newTestPool(t)
	c, err := Open(pool, true)
	if err != nil {
		t.Fatalf("Open(fresh): %v", err)
	}

	if _, ok, err := c.GetFileEntry("orders"); err != nil || ok {
		t.Fatalf("GetFileEntry on empty catalog = (%v, %v), want (false, nil)", ok, err)
	}

	if err := c.AddFileEntry("orders", 7); err != nil {
		t.Fatalf("AddFileEntry: %v", err)
	}
	pid, ok, err := c.GetFileEntry("orders")
	if err != nil || !ok || pid != 7 {
		t.Fatalf("GetFileEntry(orders) = (%d, %v, %v), want (7, true, nil)", pid, ok, err)
	}

	if err := c.DeleteFileEntry("orders"); err != nil {
		t.Fatalf("DeleteFileEntry: %v", err)
	}
	if _, ok, _ := c.GetFileEntry("orders"); ok {
		t.Fatal("GetFileEntry after delete still found the entry")
	}
}

func TestCatalogListNamesSorted(t *testing.T) {
	pool := newTestPool(t)
	c, err := Open(pool, true)
	if err != nil {
		t.Fatalf("Open(fresh): %v", err)
	}
	for name, pid := range map[string]page.ID{"zebra": 1, "apple": 2, "mango": 3} {
		if err := c.AddFileEntry(name, pid); err != nil {
			t.Fatalf("AddFileEntry(%s): %v", name, err)
		}
	}
	names, err := c.ListNames()
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	want := []string{"apple", "mango", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("ListNames = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ListNames[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestCatalogReopenNonFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.db")
	d, err := diskmgr.Open(path, page.MinSize)
	if err != nil {
		t.Fatalf("diskmgr.Open: %v", err)
	}
	pool := bufmgr.New(d, 0)
	c, err := Open(pool, true)
	if err != nil {
		t.Fatalf("Open(fresh): %v", err)
	}
	if err := c.AddFileEntry("things", 11); err != nil {
		t.Fatalf("AddFileEntry: %v", err)
	}
	if err := pool.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d2, err := diskmgr.Open(path, page.MinSize)
	if err != nil {
		t.Fatalf("reopen diskmgr.Open: %v", err)
	}
	defer d2.Close()
	pool2 := bufmgr.New(d2, 0)
	c2, err := Open(pool2, false)
	if err != nil {
		t.Fatalf("Open(non-fresh): %v", err)
	}
	pid, ok, err := c2.GetFileEntry("things")
	if err != nil || !ok || pid != 11 {
		t.Fatalf("GetFileEntry after reopen = (%d, %v, %v), want (11, true, nil)", pid, ok, err)
	}
}

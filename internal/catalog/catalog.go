// Package catalog is the file catalog (C11): a process-wide map from
// index name to the page identifier of that index's header page,
// persisted as page 0 of the database file (§6's GetFileEntry /
// AddFileEntry / DeleteFileEntry, given a concrete body per §6a). Nothing
// is cached in the Catalog itself: every call pins page 0 through the
// buffer pool and reads or updates the directory there. A mutation marks
// page 0 dirty; it reaches disk when the pool flushes or evicts that
// frame. The whole directory lives on that one page, since the expected
// number of named indexes in one database is small and bounded.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/SimonWaldherr/bplustree/internal/bufmgr"
	"github.com/SimonWaldherr/bplustree/internal/page"

	"github.com/SimonWaldherr/bplustree/internal/btree"
)

// Catalog guards page 0 of the database file.
type Catalog struct {
	mu   sync.RWMutex
	pool *bufmgr.Pool
}

// Open loads (or, if fresh is true, formats) the catalog page. fresh is
// true exactly when the database file was empty before diskmgr.Open
// created it.
func Open(pool *bufmgr.Pool, fresh bool) (*Catalog, error) {
	c := &Catalog{pool: pool}
	if fresh {
		// Page 0 is reserved for the catalog and never handed out by
		// AllocatePage, so it is formatted and written directly here
		// rather than through the NewPage path.
		buf := page.NewBuffer(pool.PageSize(), page.TypeCatalog, 0)
		btree.InitCatalogPage(buf)
		if err := pool.WritePageDirect(0, buf); err != nil {
			return nil, fmt.Errorf("catalog: format page 0: %w", err)
		}
		return c, nil
	}
	buf, err := pool.Pin(0)
	if err != nil {
		return nil, fmt.Errorf("catalog: pin page 0: %w", err)
	}
	defer pool.Unpin(0, false)
	btree.WrapCatalogPage(buf) // validates the node-type tag
	return c, nil
}

// GetFileEntry returns the header page id registered for name.
func (c *Catalog) GetFileEntry(name string) (page.ID, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf, err := c.pool.Pin(0)
	if err != nil {
		return page.Invalid, false, err
	}
	defer c.pool.Unpin(0, false)
	pid, ok := btree.WrapCatalogPage(buf).Get([]byte(name))
	return pid, ok, nil
}

// AddFileEntry registers (or replaces) name's header page id.
func (c *Catalog) AddFileEntry(name string, pid page.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, err := c.pool.Pin(0)
	if err != nil {
		return err
	}
	defer c.pool.Unpin(0, true)
	return btree.WrapCatalogPage(buf).Put([]byte(name), pid)
}

// DeleteFileEntry removes name's entry.
func (c *Catalog) DeleteFileEntry(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, err := c.pool.Pin(0)
	if err != nil {
		return err
	}
	defer c.pool.Unpin(0, true)
	return btree.WrapCatalogPage(buf).Delete([]byte(name))
}

// ListNames returns every registered index name in sorted order.
func (c *Catalog) ListNames() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf, err := c.pool.Pin(0)
	if err != nil {
		return nil, err
	}
	defer c.pool.Unpin(0, false)
	rawNames, _ := btree.WrapCatalogPage(buf).All()
	names := make([]string, len(rawNames))
	for i, n := range rawNames {
		names[i] = string(n)
	}
	sort.Strings(names)
	return names, nil
}

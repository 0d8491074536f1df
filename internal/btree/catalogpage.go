package btree

import (
	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// kindCatalog tags the one reserved page (page 0) that holds the file
// catalog's name -> header-page-id directory (C11, consumed as an
// external collaborator per §6, but built concretely here per §6a). It
// reuses the exact (key, page.ID) wire format of an index-node entry —
// the catalog's directory of named indexes is, structurally, no
// different from an index page's directory of separators, so it is
// exercised by the same packing code rather than inventing a second
// on-page format.
const kindCatalog nodeKind = 3

// CatalogPage wraps the catalog directory page. Exported so
// internal/catalog can drive it without internal/catalog needing to know
// about slotted-page internals.
type CatalogPage struct{ *node }

// InitCatalogPage formats a freshly allocated page buffer as an empty
// catalog directory.
func InitCatalogPage(buf []byte) *CatalogPage {
	return &CatalogPage{node: initNode(buf, kindCatalog)}
}

// WrapCatalogPage wraps an existing, already-formatted catalog page.
func WrapCatalogPage(buf []byte) *CatalogPage {
	c := &CatalogPage{node: wrapNode(buf)}
	c.assertKind(kindCatalog)
	return c
}

// Put inserts or, if name is already present, replaces its mapping.
func (c *CatalogPage) Put(name []byte, headerPID page.ID) error {
	if pos, exact := c.search(name); exact {
		if err := c.deleteAt(pos); err != nil {
			return err
		}
	}
	_, err := c.Insert(name, headerPID)
	return err
}

// Insert packs (name, headerPID) and inserts it in sorted position.
func (c *CatalogPage) Insert(name []byte, headerPID page.ID) (int, error) {
	entry, err := key.PackIndex(name, headerPID)
	if err != nil {
		return 0, ErrKeyTooLong
	}
	return c.insertSorted(name, entry)
}

// Get returns the header page id registered for name, or ok=false.
func (c *CatalogPage) Get(name []byte) (headerPID page.ID, ok bool) {
	pos, exact := c.search(name)
	if !exact {
		return page.Invalid, false
	}
	_, pid := key.UnpackIndex(c.entryAt(pos))
	return pid, true
}

// Delete removes name's entry. Fails with ErrNotFound if absent.
func (c *CatalogPage) Delete(name []byte) error {
	pos, exact := c.search(name)
	if !exact {
		return ErrNotFound
	}
	return c.deleteAt(pos)
}

// All returns every (name, headerPID) pair in sorted order.
func (c *CatalogPage) All() (names [][]byte, pids []page.ID) {
	n := c.numSlots()
	names = make([][]byte, n)
	pids = make([]page.ID, n)
	for i := 0; i < n; i++ {
		names[i], pids[i] = key.UnpackIndex(c.entryAt(i))
	}
	return names, pids
}

// Package btree implements the B+Tree index core: the sorted slotted
// page (C2), leaf and index page specializations (C3/C4), the header
// page (C5), the tree engine (C6), the range-scan cursor (C7), and the
// maintenance traversals (C8).
package btree

import (
	"github.com/google/uuid"

	"github.com/SimonWaldherr/bplustree/internal/bufmgr"
	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// Index is one opened B+Tree index handle: a header page id plus a
// permanently pinned buffer for it, matching §3's Lifecycle note ("Header
// page is pinned for the entire lifetime of an opened index"). It holds
// no other state — every other page is pinned only while being read or
// modified.
type Index struct {
	pool        *bufmgr.Pool
	headerPID   page.ID
	headerBuf   []byte
	headerDirty bool

	// InstanceID tags this opened handle for diagnostics (the CLI's
	// -stats-cron statistics log line, dbenv's log lines around
	// Open/Destroy) so a caller juggling repeated
	// Open/Destroy cycles against the same name can tell generations
	// apart in its log output.
	InstanceID uuid.UUID
}

// Create allocates a fresh header page (root = page.Invalid) and returns
// an Index handle for it. The caller is responsible for registering the
// returned header page id in the file catalog.
func Create(pool *bufmgr.Pool) (*Index, error) {
	pid, buf, err := pool.NewPage(func(id page.ID) []byte {
		b := page.NewBuffer(pool.PageSize(), page.TypeHeader, id)
		initHeaderPage(b)
		return b
	})
	if err != nil {
		return nil, err
	}
	return &Index{pool: pool, headerPID: pid, headerBuf: buf, InstanceID: uuid.New()}, nil
}

// Open pins the header page at headerPID and returns a handle to the
// B+Tree rooted through it.
func Open(pool *bufmgr.Pool, headerPID page.ID) (*Index, error) {
	buf, err := pool.Pin(headerPID)
	if err != nil {
		return nil, err
	}
	return &Index{pool: pool, headerPID: headerPID, headerBuf: buf, InstanceID: uuid.New()}, nil
}

// HeaderPageID returns the page id of this index's header page, the
// value a file catalog should map the index's name to.
func (ix *Index) HeaderPageID() page.ID { return ix.headerPID }

// Close unpins the header page. It does not free any pages; use
// DestroyFile to remove the index entirely.
func (ix *Index) Close() error {
	return ix.pool.Unpin(ix.headerPID, ix.headerDirty)
}

func (ix *Index) root() page.ID { return wrapHeaderPage(ix.headerBuf).RootPageID() }

func (ix *Index) setRoot(pid page.ID) {
	wrapHeaderPage(ix.headerBuf).SetRootPageID(pid)
	ix.headerDirty = true
}

// pinLeaf pins pid and asserts it is a leaf page.
func (ix *Index) pinLeaf(pid page.ID) (*leaf, error) {
	buf, err := ix.pool.Pin(pid)
	if err != nil {
		return nil, err
	}
	return wrapLeaf(buf), nil
}

// pinIndex pins pid and asserts it is an index page.
func (ix *Index) pinIndex(pid page.ID) (*indexNode, error) {
	buf, err := ix.pool.Pin(pid)
	if err != nil {
		return nil, err
	}
	return wrapIndex(buf), nil
}

// pageKind returns the node kind stored in pid's page, without keeping
// it pinned past the check.
func (ix *Index) pageKind(pid page.ID) (nodeKind, error) {
	buf, err := ix.pool.Pin(pid)
	if err != nil {
		return 0, err
	}
	k := wrapNode(buf).kind()
	if err := ix.pool.Unpin(pid, false); err != nil {
		return 0, err
	}
	return k, nil
}

// Search implements §4.5.5: directed descent to the leftmost leaf that
// may contain a key >= k. Returns page.Invalid if the tree is empty.
func (ix *Index) Search(k []byte) (page.ID, error) {
	cur := ix.root()
	if cur == page.Invalid {
		return page.Invalid, nil
	}
	for {
		kind, err := ix.pageKind(cur)
		if err != nil {
			return page.Invalid, err
		}
		if kind == kindLeaf {
			return cur, nil
		}
		idx, err := ix.pinIndex(cur)
		if err != nil {
			return page.Invalid, err
		}
		next := idx.GetPageID(k)
		if err := ix.pool.Unpin(cur, false); err != nil {
			return page.Invalid, err
		}
		cur = next
	}
}

// Insert implements §4.5.1.
func (ix *Index) Insert(k []byte, rid page.RecordID) error {
	if err := ix.checkKeyLen(k); err != nil {
		return err
	}

	root := ix.root()

	// Case A: empty tree.
	if root == page.Invalid {
		lPid, lBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
			buf := page.NewBuffer(ix.pool.PageSize(), page.TypeLeafNode, id)
			initLeaf(buf)
			return buf
		})
		if err != nil {
			return err
		}
		L := wrapLeaf(lBuf)
		if _, err := L.Insert(k, rid); err != nil {
			ix.pool.Unpin(lPid, false)
			return err
		}
		if err := ix.pool.Unpin(lPid, true); err != nil {
			return err
		}
		ix.setRoot(lPid)
		return nil
	}

	// Case B: root is a leaf.
	if kind, err := ix.pageKind(root); err != nil {
		return err
	} else if kind == kindLeaf {
		lBuf, err := ix.pool.Pin(root)
		if err != nil {
			return err
		}
		L := wrapLeaf(lBuf)
		if L.AvailableSpace() >= EntryLenLeaf(k) {
			if _, err := L.Insert(k, rid); err != nil {
				ix.pool.Unpin(root, false)
				return err
			}
			return ix.pool.Unpin(root, true)
		}

		nPid, sep, err := ix.splitLeaf(root, lBuf, k, rid)
		if err != nil {
			ix.pool.Unpin(root, false)
			return err
		}
		if err := ix.pool.Unpin(root, true); err != nil {
			return err
		}

		newRootPid, newRootBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
			buf := page.NewBuffer(ix.pool.PageSize(), page.TypeIndexNode, id)
			initIndex(buf)
			return buf
		})
		if err != nil {
			return err
		}
		newRoot := wrapIndex(newRootBuf)
		newRoot.SetLeftmostChild(root)
		if _, err := newRoot.Insert(sep, nPid); err != nil {
			ix.pool.Unpin(newRootPid, false)
			return err
		}
		if err := ix.pool.Unpin(newRootPid, true); err != nil {
			return err
		}
		ix.setRoot(newRootPid)
		return nil
	}

	// Case C: root is an index page. Descend, pushing visited index page
	// ids onto a path stack; unpin before descending.
	var path []page.ID
	cur := root
	for {
		kind, err := ix.pageKind(cur)
		if err != nil {
			return err
		}
		if kind == kindLeaf {
			break
		}
		idx, err := ix.pinIndex(cur)
		if err != nil {
			return err
		}
		next := idx.GetPageID(k)
		if err := ix.pool.Unpin(cur, false); err != nil {
			return err
		}
		path = append(path, cur)
		cur = next
	}

	lBuf, err := ix.pool.Pin(cur)
	if err != nil {
		return err
	}
	L := wrapLeaf(lBuf)
	if L.AvailableSpace() >= EntryLenLeaf(k) {
		if _, err := L.Insert(k, rid); err != nil {
			ix.pool.Unpin(cur, false)
			return err
		}
		return ix.pool.Unpin(cur, true)
	}

	nPid, sep, err := ix.splitLeaf(cur, lBuf, k, rid)
	if err != nil {
		ix.pool.Unpin(cur, false)
		return err
	}
	if err := ix.pool.Unpin(cur, true); err != nil {
		return err
	}
	childPid := nPid

	// Propagate the separator up the path stack, splitting ancestors as
	// needed.
	for len(path) > 0 {
		parentPid := path[len(path)-1]
		path = path[:len(path)-1]

		pBuf, err := ix.pool.Pin(parentPid)
		if err != nil {
			return err
		}
		P := wrapIndex(pBuf)
		if P.AvailableSpace() >= EntryLenIndex(sep) {
			if _, err := P.Insert(sep, childPid); err != nil {
				ix.pool.Unpin(parentPid, false)
				return err
			}
			return ix.pool.Unpin(parentPid, true)
		}

		newIdxPid, newSep, err := ix.splitIndex(parentPid, pBuf, sep, childPid)
		if err != nil {
			ix.pool.Unpin(parentPid, false)
			return err
		}
		if err := ix.pool.Unpin(parentPid, true); err != nil {
			return err
		}
		childPid = newIdxPid
		sep = newSep
	}

	// The stack emptied while a separator remains: grow a new root.
	newRootPid, newRootBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
		buf := page.NewBuffer(ix.pool.PageSize(), page.TypeIndexNode, id)
		initIndex(buf)
		return buf
	})
	if err != nil {
		return err
	}
	newRoot := wrapIndex(newRootBuf)
	newRoot.SetLeftmostChild(root)
	if _, err := newRoot.Insert(sep, childPid); err != nil {
		ix.pool.Unpin(newRootPid, false)
		return err
	}
	if err := ix.pool.Unpin(newRootPid, true); err != nil {
		return err
	}
	ix.setRoot(newRootPid)
	return nil
}

// Delete implements §4.5.2: descend to the target leaf and remove (k,
// rid). If the leaf was the root and is now empty, the tree collapses to
// empty. No merging or redistribution is attempted — an underfull,
// possibly sparse tree is a legal result.
func (ix *Index) Delete(k []byte, rid page.RecordID) error {
	root := ix.root()
	if root == page.Invalid {
		return ErrNotFound
	}

	cur := root
	for {
		kind, err := ix.pageKind(cur)
		if err != nil {
			return err
		}
		if kind == kindLeaf {
			break
		}
		idx, err := ix.pinIndex(cur)
		if err != nil {
			return err
		}
		next := idx.GetPageID(k)
		if err := ix.pool.Unpin(cur, false); err != nil {
			return err
		}
		cur = next
	}

	lBuf, err := ix.pool.Pin(cur)
	if err != nil {
		return err
	}
	L := wrapLeaf(lBuf)
	if err := L.Delete(k, rid); err != nil {
		ix.pool.Unpin(cur, false)
		return err
	}

	if cur == root && L.numSlots() == 0 {
		if err := ix.pool.Unpin(cur, false); err != nil {
			return err
		}
		if err := ix.pool.FreePage(cur); err != nil {
			return err
		}
		ix.setRoot(page.Invalid)
		return nil
	}
	return ix.pool.Unpin(cur, true)
}

func (ix *Index) checkKeyLen(k []byte) error {
	if err := key.CheckLen(k); err != nil {
		return ErrKeyTooLong
	}
	return nil
}

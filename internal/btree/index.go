package btree

import (
	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// indexNode specializes node for (key, child page.ID) entries (C4). The
// prev-page field is repurposed as the leftmost child pointer: the child
// whose keys are strictly less than the first entry's key.
type indexNode struct{ *node }

func initIndex(buf []byte) *indexNode {
	return &indexNode{node: initNode(buf, kindIndex)}
}

func wrapIndex(buf []byte) *indexNode {
	x := &indexNode{node: wrapNode(buf)}
	x.assertKind(kindIndex)
	return x
}

func (x *indexNode) LeftmostChild() page.ID       { return x.sibling() }
func (x *indexNode) SetLeftmostChild(pid page.ID) { x.setSibling(pid) }

// Insert packs (k, childPid) and inserts it in sorted position. Returns
// the slot number. Fails with ErrKeyTooLong or ErrNoSpace.
func (x *indexNode) Insert(k []byte, childPid page.ID) (int, error) {
	if err := key.CheckLen(k); err != nil {
		return 0, ErrKeyTooLong
	}
	entry, err := key.PackIndex(k, childPid)
	if err != nil {
		return 0, ErrKeyTooLong
	}
	return x.insertSorted(k, entry)
}

// EntryLenIndex returns the packed size (k, childPid) would occupy.
func EntryLenIndex(k []byte) int { return key.EntryLenIndex(k) }

// GetPageID locates the rightmost entry whose key is <= k and returns its
// child pointer. If k is strictly less than every entry key, returns the
// leftmost child pointer. Duplicate separator keys are a reachable,
// ordinary consequence of repeated splits of duplicate-key-heavy leaves
// (each split's separator is the new leaf's first key); upperBound lands
// past the rightmost of any such run, so stepping back one always finds
// the rightmost matching separator rather than an arbitrary duplicate.
func (x *indexNode) GetPageID(k []byte) page.ID {
	pos := x.upperBound(k)
	if pos == 0 {
		return x.LeftmostChild()
	}
	_, child := key.UnpackIndex(x.entryAt(pos - 1))
	return child
}

// Delete finds the leftmost slot whose key is > k, steps back one, and
// deletes it — the entry whose key is the greatest <= k, matching the
// separator the tree engine removes when a child subtree disappears. Uses
// the same upperBound resolution as GetPageID so a run of duplicate
// separators is resolved consistently.
func (x *indexNode) Delete(k []byte) error {
	pos := x.upperBound(k)
	if pos == 0 {
		return ErrNotFound
	}
	return x.deleteAt(pos - 1)
}

// GetFirst returns the first entry in sorted order, or ok=false if empty.
func (x *indexNode) GetFirst() (slot int, k []byte, childPid page.ID, ok bool) {
	if x.numSlots() == 0 {
		return 0, nil, page.Invalid, false
	}
	k, childPid = key.UnpackIndex(x.entryAt(0))
	return 0, k, childPid, true
}

// GetNext returns the entry following slot cur, or ok=false past the end.
func (x *indexNode) GetNext(cur int) (slot int, k []byte, childPid page.ID, ok bool) {
	next := cur + 1
	if next >= x.numSlots() {
		return 0, nil, page.Invalid, false
	}
	k, childPid = key.UnpackIndex(x.entryAt(next))
	return next, k, childPid, true
}

// AdjustKey overwrites the key of the entry located as GetPageID(oldKey)
// would locate it, replacing it with newKey while preserving the child
// pointer. Fails with ErrNotFound unless the located entry's key equals
// oldKey. Nothing in the tree engine calls it: Delete never repairs a
// parent separator.
func (x *indexNode) AdjustKey(newKey, oldKey []byte) error {
	pos := x.upperBound(oldKey)
	if pos == 0 {
		return ErrNotFound
	}
	pos--
	if key.Cmp(x.keyAt(pos), oldKey) != 0 {
		return ErrNotFound
	}
	_, child := key.UnpackIndex(x.entryAt(pos))
	if err := x.deleteAt(pos); err != nil {
		return err
	}
	_, err := x.Insert(newKey, child)
	return err
}

// allEntries returns every (key, childPid) pair in sorted order.
func (x *indexNode) allEntries() (keys [][]byte, children []page.ID) {
	n := x.numSlots()
	keys = make([][]byte, n)
	children = make([]page.ID, n)
	for i := 0; i < n; i++ {
		keys[i], children[i] = key.UnpackIndex(x.entryAt(i))
	}
	return keys, children
}

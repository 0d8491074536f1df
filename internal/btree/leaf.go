package btree

import (
	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// leaf specializes node for (key, page.RecordID) entries (C3). prev-page
// and next-page link all leaves into a doubly linked list in key order.
type leaf struct{ *node }

func initLeaf(buf []byte) *leaf {
	return &leaf{node: initNode(buf, kindLeaf)}
}

func wrapLeaf(buf []byte) *leaf {
	l := &leaf{node: wrapNode(buf)}
	l.assertKind(kindLeaf)
	return l
}

func (l *leaf) PrevPage() page.ID     { return l.sibling() }
func (l *leaf) SetPrevPage(p page.ID) { l.setSibling(p) }
func (l *leaf) NextPage() page.ID     { return l.next() }
func (l *leaf) SetNextPage(p page.ID) { l.setNext(p) }

// Insert packs (k, rid) and inserts it in sorted position. Returns the
// slot number. Fails with ErrKeyTooLong or ErrNoSpace.
func (l *leaf) Insert(k []byte, rid page.RecordID) (int, error) {
	if err := key.CheckLen(k); err != nil {
		return 0, ErrKeyTooLong
	}
	entry, err := key.PackLeaf(k, rid)
	if err != nil {
		return 0, ErrKeyTooLong
	}
	return l.insertSorted(k, entry)
}

// EntryLen returns the packed size (k, RecordID) would occupy, for space
// checks before a caller decides whether to split.
func EntryLenLeaf(k []byte) int { return key.EntryLenLeaf(k) }

// GetFirst returns the first entry in sorted order, or ok=false if the
// leaf is empty.
func (l *leaf) GetFirst() (slot int, k []byte, rid page.RecordID, ok bool) {
	if l.numSlots() == 0 {
		return 0, nil, page.InvalidRecordID, false
	}
	k, rid = key.UnpackLeaf(l.entryAt(0))
	return 0, k, rid, true
}

// GetNext returns the entry following slot cur, or ok=false ("Done") past
// the last slot.
func (l *leaf) GetNext(cur int) (slot int, k []byte, rid page.RecordID, ok bool) {
	next := cur + 1
	if next >= l.numSlots() {
		return 0, nil, page.InvalidRecordID, false
	}
	k, rid = key.UnpackLeaf(l.entryAt(next))
	return next, k, rid, true
}

// GetCurrent returns the entry at slot cur without advancing.
func (l *leaf) GetCurrent(cur int) (k []byte, rid page.RecordID, ok bool) {
	if cur < 0 || cur >= l.numSlots() {
		return nil, page.InvalidRecordID, false
	}
	k, rid = key.UnpackLeaf(l.entryAt(cur))
	return k, rid, true
}

// Delete scans from the last slot backwards for the first slot matching
// both k and rid, and deletes it. Scanning from the tail (rather than
// the head) combined with matching on both key and rid is what lets
// duplicate keys be deleted independently of each other. Fails with
// ErrNotFound otherwise.
func (l *leaf) Delete(k []byte, rid page.RecordID) error {
	for i := l.numSlots() - 1; i >= 0; i-- {
		ek, erid := key.UnpackLeaf(l.entryAt(i))
		if key.Cmp(ek, k) == 0 && erid == rid {
			return l.deleteAt(i)
		}
	}
	return ErrNotFound
}

// allEntries returns every (key, rid) pair in sorted order. Used by the
// split algorithm and by maintenance traversals.
func (l *leaf) allEntries() (keys [][]byte, rids []page.RecordID) {
	n := l.numSlots()
	keys = make([][]byte, n)
	rids = make([]page.RecordID, n)
	for i := 0; i < n; i++ {
		keys[i], rids[i] = key.UnpackLeaf(l.entryAt(i))
	}
	return keys, rids
}

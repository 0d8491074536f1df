package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// node wraps a page buffer as a sorted slotted page (C2): a slot directory
// of (offset, length) pairs growing from just after the fixed header, and
// an entry heap growing down from the end of the page. Slots are always
// kept sorted by entry key and the directory is always dense — Insert
// performs an insertion-sort shift, Delete shifts the tail down, so there
// are never tombstones to skip. compact() reclaims heap space lost to
// deletes by rewriting every live entry in slot order.
//
// Both leaf and index pages share this layout; the two diverge only in
// what the fixed "sibling"/"next" fields mean and in the payload shape of
// each entry (both key.PackLeaf and key.PackIndex share the same
// key-then-NUL prefix, so key lookups are generic here).
type node struct {
	buf []byte
}

const (
	metaOff     = page.HeaderSize
	nodeTypeOff = metaOff + 0
	// reservedOff = metaOff + 1
	numSlotsOff = metaOff + 2
	heapTopOff  = metaOff + 4
	siblingOff  = metaOff + 6  // leaf: prev-page; index: leftmost child
	nextOff     = metaOff + 10 // leaf: next-page; index: unused
	metaSize    = 14
	slotDirOff  = metaOff + metaSize

	slotSize = 4 // offset(uint16) + length(uint16)
)

// nodeKind distinguishes leaf from index pages, stored at nodeTypeOff.
type nodeKind uint8

const (
	kindLeaf  nodeKind = 1
	kindIndex nodeKind = 2
)

// initNode formats a freshly allocated page buffer as an empty node of the
// given kind.
func initNode(buf []byte, kind nodeKind) *node {
	n := &node{buf: buf}
	buf[nodeTypeOff] = byte(kind)
	n.setNumSlots(0)
	n.setHeapTop(uint16(len(buf)))
	n.setSibling(page.Invalid)
	n.setNext(page.Invalid)
	return n
}

// wrapNode wraps an existing, already-formatted page buffer.
func wrapNode(buf []byte) *node { return &node{buf: buf} }

func (n *node) kind() nodeKind { return nodeKind(n.buf[nodeTypeOff]) }

func (n *node) pageID() page.ID {
	return page.UnmarshalHeader(n.buf).ID
}

func (n *node) numSlots() int {
	return int(binary.LittleEndian.Uint16(n.buf[numSlotsOff:]))
}

func (n *node) setNumSlots(v int) {
	binary.LittleEndian.PutUint16(n.buf[numSlotsOff:], uint16(v))
}

func (n *node) heapTop() int {
	return int(binary.LittleEndian.Uint16(n.buf[heapTopOff:]))
}

func (n *node) setHeapTop(v uint16) {
	binary.LittleEndian.PutUint16(n.buf[heapTopOff:], v)
}

func (n *node) sibling() page.ID {
	return page.ID(binary.LittleEndian.Uint32(n.buf[siblingOff:]))
}

func (n *node) setSibling(pid page.ID) {
	binary.LittleEndian.PutUint32(n.buf[siblingOff:], uint32(pid))
}

func (n *node) next() page.ID {
	return page.ID(binary.LittleEndian.Uint32(n.buf[nextOff:]))
}

func (n *node) setNext(pid page.ID) {
	binary.LittleEndian.PutUint32(n.buf[nextOff:], uint32(pid))
}

func (n *node) slotOff(i int) int { return slotDirOff + i*slotSize }

func (n *node) getSlot(i int) (off, length int) {
	so := n.slotOff(i)
	return int(binary.LittleEndian.Uint16(n.buf[so:])), int(binary.LittleEndian.Uint16(n.buf[so+2:]))
}

func (n *node) setSlot(i, off, length int) {
	so := n.slotOff(i)
	binary.LittleEndian.PutUint16(n.buf[so:], uint16(off))
	binary.LittleEndian.PutUint16(n.buf[so+2:], uint16(length))
}

// entryAt returns the packed entry bytes stored in slot i.
func (n *node) entryAt(i int) []byte {
	off, length := n.getSlot(i)
	return n.buf[off : off+length]
}

// keyAt returns the key portion of the entry stored in slot i.
func (n *node) keyAt(i int) []byte {
	return key.EntryKey(n.entryAt(i))
}

// usedBytes returns the number of bytes currently occupied by the page
// header, the node metadata, the slot directory and the entry heap.
func (n *node) usedBytes() int {
	dir := slotDirOff + n.numSlots()*slotSize
	heap := len(n.buf) - n.heapTop()
	return dir + heap
}

// AvailableSpace returns the number of free bytes between the slot
// directory and the entry heap.
func (n *node) AvailableSpace() int {
	return n.heapTop() - (slotDirOff + n.numSlots()*slotSize)
}

// search returns the index of the first (leftmost) slot whose key is >= k
// (a true lower-bound binary search that keeps narrowing on ties instead
// of returning early), and whether that slot's key equals k. When k
// appears in more than one slot — duplicate keys are permitted, and index
// pages accumulate duplicate separators from repeated splits of
// duplicate-key-heavy leaves — pos lands on the leftmost of the run, not
// an arbitrary one chosen by midpoint arithmetic.
func (n *node) search(k []byte) (pos int, exact bool) {
	lo, hi := 0, n.numSlots()
	for lo < hi {
		mid := (lo + hi) / 2
		if key.Cmp(n.keyAt(mid), k) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < n.numSlots() && key.Cmp(n.keyAt(lo), k) == 0
}

// upperBound returns the index of the first slot whose key is strictly
// greater than k — the position just past the last (rightmost) slot whose
// key is <= k, including the rightmost of any run of slots equal to k.
func (n *node) upperBound(k []byte) int {
	lo, hi := 0, n.numSlots()
	for lo < hi {
		mid := (lo + hi) / 2
		if key.Cmp(n.keyAt(mid), k) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// insertAt inserts entry so that slots remain sorted by key, using pos as
// the sorted insertion point found by upperBound. Fails with ErrNoSpace when
// the free area cannot hold the new slot and entry. Returns the slot
// number where the entry landed.
func (n *node) insertAt(pos int, entry []byte) (int, error) {
	need := slotSize + len(entry)
	if n.AvailableSpace() < need {
		return 0, ErrNoSpace
	}
	newTop := n.heapTop() - len(entry)
	copy(n.buf[newTop:], entry)
	n.setHeapTop(uint16(newTop))

	count := n.numSlots()
	// Shift slot directory entries [pos, count) up by one slot to open a
	// gap, then write the new slot at pos. Iterate from the tail so the
	// shift never overwrites a slot before it has been read.
	for i := count; i > pos; i-- {
		off, length := n.getSlot(i - 1)
		n.setSlot(i, off, length)
	}
	n.setSlot(pos, newTop, len(entry))
	n.setNumSlots(count + 1)
	return pos, nil
}

// insertSorted packs entry into its sorted position determined by k,
// after any slots whose key equals k, so equal keys keep insertion order.
func (n *node) insertSorted(k []byte, entry []byte) (int, error) {
	pos := n.upperBound(k)
	return n.insertAt(pos, entry)
}

// deleteAt removes the slot at pos, compacting the directory (shifting
// the tail down) and then the heap (reclaiming space left by the removed
// entry).
func (n *node) deleteAt(pos int) error {
	count := n.numSlots()
	if pos < 0 || pos >= count {
		return ErrNotFound
	}
	for i := pos; i < count-1; i++ {
		off, length := n.getSlot(i + 1)
		n.setSlot(i, off, length)
	}
	n.setNumSlots(count - 1)
	n.compact()
	return nil
}

// compact rewrites the entry heap in slot order, eliminating any gaps
// left behind by deletes. The slot directory is always already dense, so
// this only needs to touch the heap and the slot offsets.
func (n *node) compact() {
	count := n.numSlots()
	if count == 0 {
		n.setHeapTop(uint16(len(n.buf)))
		return
	}
	type rec struct {
		length int
		data   []byte
	}
	recs := make([]rec, count)
	for i := 0; i < count; i++ {
		off, length := n.getSlot(i)
		data := make([]byte, length)
		copy(data, n.buf[off:off+length])
		recs[i] = rec{length: length, data: data}
	}
	top := len(n.buf)
	for i := count - 1; i >= 0; i-- {
		top -= recs[i].length
		copy(n.buf[top:], recs[i].data)
		n.setSlot(i, top, recs[i].length)
	}
	n.setHeapTop(uint16(top))
}

// assertKind panics with a Corruption-style message if the node's stored
// kind tag is not want (leaf, index or catalog) — the one fatal assertion
// named in the error-handling design.
func (n *node) assertKind(want nodeKind) {
	if got := n.kind(); got != want {
		panic(fmt.Sprintf("btree: corrupt page %d: node type tag %d, want %d",
			n.pageID(), got, want))
	}
}

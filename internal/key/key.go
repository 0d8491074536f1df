// Package key implements the key codec (C1): comparison, measurement, and
// packing of (key, payload) entries for on-page storage. Keys are
// NUL-terminated byte strings; payloads are either a page.ID (index-node
// entries) or a page.RecordID (leaf entries), packed without alignment
// padding.
package key

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/SimonWaldherr/bplustree/internal/page"
)

// MaxKeySize is the maximum packed key length, including the NUL
// terminator, that any page may store.
const MaxKeySize = 220

// ErrKeyTooLong is returned by CheckLen/PackIndex/PackLeaf when the packed key
// length exceeds MaxKeySize.
var ErrKeyTooLong = errors.New("key: packed length exceeds MaxKeySize")

// Cmp compares a and b lexicographically over at most MaxKeySize bytes,
// returning a negative number, zero, or a positive number as a is less
// than, equal to, or greater than b.
func Cmp(a, b []byte) int {
	if len(a) > MaxKeySize {
		a = a[:MaxKeySize]
	}
	if len(b) > MaxKeySize {
		b = b[:MaxKeySize]
	}
	return bytes.Compare(a, b)
}

// Len returns the packed length of k, including its NUL terminator.
func Len(k []byte) int {
	return len(k) + 1
}

// CheckLen fails with ErrKeyTooLong when k would not fit in a page entry.
func CheckLen(k []byte) error {
	if Len(k) > MaxKeySize {
		return fmt.Errorf("%w: got %d, max %d", ErrKeyTooLong, Len(k), MaxKeySize)
	}
	return nil
}

// sizeof payload widths, used by EntryLen.
const (
	indexPayloadSize = 4 // page.ID, uint32 LE
	leafPayloadSize  = 6 // page.RecordID, uint32 LE page + uint16 LE slot
)

// EntryLenIndex returns the packed size of an index-node entry (key, child
// page id).
func EntryLenIndex(k []byte) int { return Len(k) + indexPayloadSize }

// EntryLenLeaf returns the packed size of a leaf entry (key, RecordID).
func EntryLenLeaf(k []byte) int { return Len(k) + leafPayloadSize }

// PackIndex writes a (key, childPID) entry: key, NUL terminator, child
// page id (4 bytes LE). Fails with ErrKeyTooLong.
func PackIndex(k []byte, child page.ID) ([]byte, error) {
	if err := CheckLen(k); err != nil {
		return nil, err
	}
	buf := make([]byte, EntryLenIndex(k))
	n := copy(buf, k)
	buf[n] = 0
	binary.LittleEndian.PutUint32(buf[n+1:], uint32(child))
	return buf, nil
}

// UnpackIndex reverses PackIndex.
func UnpackIndex(entry []byte) (k []byte, child page.ID) {
	nul := bytes.IndexByte(entry, 0)
	k = entry[:nul]
	child = page.ID(binary.LittleEndian.Uint32(entry[nul+1:]))
	return k, child
}

// PackLeaf writes a (key, RecordID) entry: key, NUL terminator, page id (4
// bytes LE), slot (2 bytes LE). Fails with ErrKeyTooLong.
func PackLeaf(k []byte, rid page.RecordID) ([]byte, error) {
	if err := CheckLen(k); err != nil {
		return nil, err
	}
	buf := make([]byte, EntryLenLeaf(k))
	n := copy(buf, k)
	buf[n] = 0
	binary.LittleEndian.PutUint32(buf[n+1:], uint32(rid.Page))
	binary.LittleEndian.PutUint16(buf[n+5:], rid.Slot)
	return buf, nil
}

// UnpackLeaf reverses PackLeaf.
func UnpackLeaf(entry []byte) (k []byte, rid page.RecordID) {
	nul := bytes.IndexByte(entry, 0)
	k = entry[:nul]
	rid.Page = page.ID(binary.LittleEndian.Uint32(entry[nul+1:]))
	rid.Slot = binary.LittleEndian.Uint16(entry[nul+5:])
	return k, rid
}

// EntryKey extracts just the key portion of a packed entry, leaf or index
// (both share the same key-then-NUL prefix).
func EntryKey(entry []byte) []byte {
	nul := bytes.IndexByte(entry, 0)
	return entry[:nul]
}

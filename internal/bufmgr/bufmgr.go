// Package bufmgr is the buffer manager (consumed by the tree engine): a
// fixed-frame-count pool mapping page identifiers to in-memory buffers,
// with pin counting and LRU eviction of unpinned frames. Adapted from the
// teacher's PageFrame/PageBufferPool in pager.go, with the WAL-aware
// dirty-flush-on-evict path replaced by a direct disk write (this index
// carries no WAL) and the pin-driven eviction-eligibility rule spelled
// out in spec §5.
package bufmgr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SimonWaldherr/bplustree/internal/diskmgr"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// ErrIoFault wraps a disk-read failure surfaced while servicing Pin.
var ErrIoFault = errors.New("bufmgr: io fault")

// frame is one pooled page buffer.
type frame struct {
	id     page.ID
	buf    []byte
	pinned int
	dirty  bool
	prev   *frame
	next   *frame
}

// Pool is a fixed-size buffer pool backed by a diskmgr.Disk. It
// implements the NewPage/PinPage/UnpinPage/FreePage contract consumed by
// the tree engine (§6).
type Pool struct {
	mu        sync.Mutex
	disk      *diskmgr.Disk
	maxFrames int
	frames    map[page.ID]*frame
	head      *frame // most recently used
	tail      *frame // least recently used — first eviction candidate
}

// New creates a Pool with room for maxFrames pages. maxFrames <= 0
// selects a default of 64.
func New(disk *diskmgr.Disk, maxFrames int) *Pool {
	if maxFrames <= 0 {
		maxFrames = 64
	}
	return &Pool{
		disk:      disk,
		maxFrames: maxFrames,
		frames:    make(map[page.ID]*frame),
	}
}

func (p *Pool) touch(f *frame) {
	if p.head == f {
		return
	}
	p.unlink(f)
	f.next = p.head
	if p.head != nil {
		p.head.prev = f
	}
	p.head = f
	if p.tail == nil {
		p.tail = f
	}
}

func (p *Pool) unlink(f *frame) {
	if f.prev != nil {
		f.prev.next = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	}
	if p.head == f {
		p.head = f.next
	}
	if p.tail == f {
		p.tail = f.prev
	}
	f.prev, f.next = nil, nil
}

// evictOne scans from the tail for the first unpinned frame and evicts it
// (flushing to disk first if dirty). Returns false if every frame is
// pinned — the caller cannot make room.
func (p *Pool) evictOne() (bool, error) {
	for f := p.tail; f != nil; f = f.prev {
		if f.pinned != 0 {
			continue
		}
		if f.dirty {
			if err := p.disk.WritePage(f.id, f.buf); err != nil {
				return false, fmt.Errorf("bufmgr: flush page %d on evict: %w", f.id, err)
			}
		}
		p.unlink(f)
		delete(p.frames, f.id)
		return true, nil
	}
	return false, nil
}

func (p *Pool) makeRoom() (*frame, error) {
	if len(p.frames) < p.maxFrames {
		return &frame{}, nil
	}
	ok, err := p.evictOne()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bufmgr: buffer pool exhausted: all %d frames pinned", p.maxFrames)
	}
	return &frame{}, nil
}

// NewPage allocates a fresh page.ID from the disk manager, formats it
// with fn (which must write a page.HeaderSize header plus any structure
// contents), and returns it pinned (pin count 1) and marked dirty.
func (p *Pool) NewPage(fn func(id page.ID) []byte) (page.ID, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pid := p.disk.AllocatePage()
	f, err := p.makeRoom()
	if err != nil {
		return page.Invalid, nil, err
	}
	buf := fn(pid)
	if len(buf) != p.disk.PageSize() {
		return page.Invalid, nil, fmt.Errorf("bufmgr: NewPage formatter returned %d bytes, want %d", len(buf), p.disk.PageSize())
	}
	f.id, f.buf, f.pinned, f.dirty = pid, buf, 1, true
	p.frames[pid] = f
	p.touch(f)
	return pid, buf, nil
}

// Pin increments pid's pin count, reading it from disk into the pool if
// it is not already resident.
func (p *Pool) Pin(pid page.ID) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.frames[pid]; ok {
		f.pinned++
		p.touch(f)
		return f.buf, nil
	}
	f, err := p.makeRoom()
	if err != nil {
		return nil, err
	}
	buf, err := p.disk.ReadPage(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoFault, err)
	}
	f.id, f.buf, f.pinned, f.dirty = pid, buf, 1, false
	p.frames[pid] = f
	p.touch(f)
	return buf, nil
}

// Unpin decrements pid's pin count and ORs in dirty. The frame stays
// resident (and eligible for LRU eviction once unpinned) until evicted or
// explicitly flushed.
func (p *Pool) Unpin(pid page.ID, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.frames[pid]
	if !ok {
		return fmt.Errorf("bufmgr: unpin of non-resident page %d", pid)
	}
	if f.pinned == 0 {
		return fmt.Errorf("bufmgr: unpin of page %d with zero pin count", pid)
	}
	f.pinned--
	f.dirty = f.dirty || dirty
	return nil
}

// FreePage returns pid's page to the disk manager's free list, evicting
// it from the pool first if resident, whatever its pin count (freeing
// implicitly unpins). btree's DestroyFile unpins tree pages before
// freeing them but frees its header page while the Index still holds it
// pinned.
func (p *Pool) FreePage(pid page.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.frames[pid]; ok {
		p.unlink(f)
		delete(p.frames, pid)
	}
	p.disk.FreePage(pid)
	return nil
}

// PageSize returns the fixed page size of the underlying disk.
func (p *Pool) PageSize() int { return p.disk.PageSize() }

// WritePageDirect writes buf straight to disk, bypassing the pin
// protocol. Used only to format the one reserved catalog page (page 0)
// the first time a database file is created, before any pinning can
// occur.
func (p *Pool) WritePageDirect(pid page.ID, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disk.WritePage(pid, buf)
}

// Flush writes every dirty resident frame back to disk without evicting
// it, used when closing a database cleanly.
func (p *Pool) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.frames {
		if f.dirty {
			if err := p.disk.WritePage(f.id, f.buf); err != nil {
				return err
			}
			f.dirty = false
		}
	}
	return nil
}

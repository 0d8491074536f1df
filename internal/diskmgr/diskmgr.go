// Package diskmgr is the disk manager (consumed by the buffer manager): a
// single fixed-page-size file with page allocation and reuse. It is the
// lowest layer of the external-collaborator stack described in §6/§6a —
// adapted from the teacher's pager.go file handling and freelist.go's
// FreeManager, stripped of the teacher's WAL, superblock magic/format
// version, and CRC machinery (all explicitly out of scope: this index
// carries no crash-recovery contract and no on-disk format versioning).
package diskmgr

import (
	"fmt"
	"os"
	"sync"

	"github.com/SimonWaldherr/bplustree/internal/page"
)

// Disk manages a single fixed-page-size file. Page 0 is reserved for the
// caller (the file catalog's page in this index); Disk itself knows nothing about
// page contents beyond their size.
type Disk struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	pageSize int
	numPages page.ID     // total pages ever allocated (file length / pageSize)
	free     map[page.ID]struct{}
}

// Open opens path, creating it if absent. pageSize of 0 selects
// page.DefaultSize. An existing file's page count is derived from its
// length; the in-memory free set starts empty on every open — Disk itself
// has no notion of which pages are still reachable, since it knows nothing
// about page contents beyond their size. A non-fresh dbenv.Open walks
// every registered index's tree and calls RebuildFreeList to reconstruct
// the free set (see DESIGN.md); a caller that opens a Disk directly,
// bypassing dbenv, is responsible for doing the same if it wants freed
// pages reclaimed across a reopen.
func Open(path string, pageSize int) (*Disk, error) {
	if pageSize == 0 {
		pageSize = page.DefaultSize
	}
	if pageSize < page.MinSize || pageSize > page.MaxSize {
		return nil, fmt.Errorf("diskmgr: page size %d out of range [%d,%d]", pageSize, page.MinSize, page.MaxSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("diskmgr: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskmgr: stat %s: %w", path, err)
	}
	numPages := page.ID(fi.Size() / int64(pageSize))
	if numPages == 0 {
		numPages = 1 // page 0 is always reserved for the catalog page
	}
	d := &Disk{
		file:     f,
		path:     path,
		pageSize: pageSize,
		numPages: numPages,
		free:     make(map[page.ID]struct{}),
	}
	return d, nil
}

// PageSize returns the fixed page size this disk was opened with.
func (d *Disk) PageSize() int { return d.pageSize }

// Path returns the underlying file path.
func (d *Disk) Path() string { return d.path }

// NumPages returns the total number of pages ever allocated in the file,
// including any now on the free list.
func (d *Disk) NumPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.numPages)
}

// ReadPage reads one page-sized buffer at pid's offset.
func (d *Disk) ReadPage(pid page.ID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, d.pageSize)
	off := int64(pid) * int64(d.pageSize)
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("diskmgr: read page %d: %w", pid, err)
	}
	return buf, nil
}

// WritePage writes buf (which must be exactly PageSize bytes) at pid's
// offset.
func (d *Disk) WritePage(pid page.ID, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(buf) != d.pageSize {
		return fmt.Errorf("diskmgr: write page %d: buffer is %d bytes, want %d", pid, len(buf), d.pageSize)
	}
	off := int64(pid) * int64(d.pageSize)
	if _, err := d.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("diskmgr: write page %d: %w", pid, err)
	}
	return nil
}

// AllocatePage returns a fresh page.ID: reused from the free list when
// one is available, otherwise the file is logically extended by one page
// (the page is not physically written until the caller's first
// WritePage).
func (d *Disk) AllocatePage() page.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pid := range d.free {
		delete(d.free, pid)
		return pid
	}
	pid := d.numPages
	d.numPages = pid + 1
	return pid
}

// FreePage returns pid to the free list for reuse by a later
// AllocatePage.
func (d *Disk) FreePage(pid page.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free[pid] = struct{}{}
}

// RebuildFreeList replaces the in-memory free set with every allocated
// page (1..numPages-1, page 0 always being reserved) that does not appear in
// live. Called once by dbenv.Open on a non-fresh database, after walking
// every registered index's tree, to reconstruct the free set that a prior
// session's FreePage calls are not persisted across a close/reopen.
func (d *Disk) RebuildFreeList(live map[page.ID]struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free = make(map[page.ID]struct{})
	for pid := page.ID(1); pid < d.numPages; pid++ {
		if _, ok := live[pid]; !ok {
			d.free[pid] = struct{}{}
		}
	}
}

// Close flushes the file to the OS and closes the handle.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.file.Sync(); err != nil {
		return err
	}
	return d.file.Close()
}

// Package dbenv wires the process-wide singletons — disk manager, buffer
// manager, and file catalog — into one handle, matching the "global
// state" design note: these are initialized once at startup and torn
// down at shutdown, and every opened index holds only a thin handle
// (header page id + pinned header buffer) against them.
package dbenv

import (
	"fmt"
	"log"
	"os"

	"github.com/SimonWaldherr/bplustree/internal/btree"
	"github.com/SimonWaldherr/bplustree/internal/bufmgr"
	"github.com/SimonWaldherr/bplustree/internal/catalog"
	"github.com/SimonWaldherr/bplustree/internal/diskmgr"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// Env bundles the disk, buffer pool, and catalog singletons for one
// database file.
type Env struct {
	Disk    *diskmgr.Disk
	Pool    *bufmgr.Pool
	Catalog *catalog.Catalog
}

// Config controls how an Env is opened.
type Config struct {
	Path      string // database file path
	PageSize  int    // 0 selects page.DefaultSize
	MaxFrames int    // 0 selects bufmgr's default
}

// Open opens (creating if absent) the database file at cfg.Path and wires
// up its disk manager, buffer pool, and catalog.
func Open(cfg Config) (*Env, error) {
	fresh := true
	if fi, err := os.Stat(cfg.Path); err == nil && fi.Size() > 0 {
		fresh = false
	}

	disk, err := diskmgr.Open(cfg.Path, cfg.PageSize)
	if err != nil {
		return nil, err
	}
	pool := bufmgr.New(disk, cfg.MaxFrames)
	cat, err := catalog.Open(pool, fresh)
	if err != nil {
		disk.Close()
		return nil, err
	}
	if !fresh {
		if err := rebuildFreeList(disk, pool, cat); err != nil {
			disk.Close()
			return nil, fmt.Errorf("dbenv: rebuild free list: %w", err)
		}
	}
	return &Env{Disk: disk, Pool: pool, Catalog: cat}, nil
}

// rebuildFreeList reconstructs the disk manager's in-memory free set on a
// non-fresh Open by walking every registered index's tree (§6a/§9: the
// free set lives only in memory and is never persisted, so it must be
// rebuilt from what is actually reachable rather than assumed empty).
// Page 0 (the catalog) is always live and is never handed out by
// AllocatePage, so it is excluded from the walk.
func rebuildFreeList(disk *diskmgr.Disk, pool *bufmgr.Pool, cat *catalog.Catalog) error {
	names, err := cat.ListNames()
	if err != nil {
		return err
	}
	live := make(map[page.ID]struct{})
	for _, name := range names {
		pid, ok, err := cat.GetFileEntry(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		idx, err := btree.Open(pool, pid)
		if err != nil {
			return err
		}
		pages, err := idx.LivePages()
		if err != nil {
			idx.Close()
			return err
		}
		for _, p := range pages {
			live[p] = struct{}{}
		}
		if err := idx.Close(); err != nil {
			return err
		}
	}
	disk.RebuildFreeList(live)
	return nil
}

// Close flushes all dirty frames and closes the underlying file.
func (e *Env) Close() error {
	if err := e.Pool.Flush(); err != nil {
		return err
	}
	return e.Disk.Close()
}

// OpenIndex implements the "Index file surface" Open: it looks name up in
// the catalog, creating a brand-new index and registering it if name is
// not yet known, then opens (or returns) an *btree.Index handle.
func (e *Env) OpenIndex(name string) (*btree.Index, error) {
	if pid, ok, err := e.Catalog.GetFileEntry(name); err != nil {
		return nil, err
	} else if ok {
		idx, err := btree.Open(e.Pool, pid)
		if err != nil {
			return nil, err
		}
		log.Printf("btree: opened existing index %q (header=%d instance=%s)", name, pid, idx.InstanceID)
		return idx, nil
	}

	idx, err := btree.Create(e.Pool)
	if err != nil {
		return nil, err
	}
	if err := e.Catalog.AddFileEntry(name, idx.HeaderPageID()); err != nil {
		idx.Close()
		return nil, fmt.Errorf("dbenv: register %q: %w", name, err)
	}
	log.Printf("btree: created index %q (header=%d instance=%s)", name, idx.HeaderPageID(), idx.InstanceID)
	return idx, nil
}

// DestroyIndex implements the "Index file surface" Destroy: it frees
// every page belonging to idx and removes name's catalog entry. idx must
// not be used again afterward.
func (e *Env) DestroyIndex(idx *btree.Index, name string) error {
	if err := idx.DestroyFile(); err != nil {
		return err
	}
	log.Printf("btree: destroyed index %q (instance=%s)", name, idx.InstanceID)
	return e.Catalog.DeleteFileEntry(name)
}

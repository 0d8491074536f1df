package btree

import "errors"

// Sentinel errors named after the error kinds in the error-handling design.
// NoSpace is never surfaced to a caller: the tree engine catches it
// internally and reacts with a split (§4.5.3/§4.5.4).
var (
	// ErrKeyTooLong means a key's packed length exceeds key.MaxKeySize.
	ErrKeyTooLong = errors.New("btree: key too long")

	// ErrNoSpace means a page cannot accommodate an entry; caught
	// internally by the tree engine and turned into a split.
	ErrNoSpace = errors.New("btree: page has no space for entry")

	// ErrNotFound means a point lookup, leaf delete, or index delete could
	// not locate the requested key (and, for leaf deletes, record id).
	ErrNotFound = errors.New("btree: not found")

	// ErrIoFault names the IoFault error kind. The tree engine does not
	// wrap buffer-manager or disk failures in it: they are returned as the
	// buffer manager reports them (a failed disk read wraps
	// bufmgr.ErrIoFault).
	ErrIoFault = errors.New("btree: io fault")

	// errCorruptSplit guards an index split that somehow produced an
	// empty right page; unreachable given the redistribution loop always
	// moves at least the new entry somewhere.
	errCorruptSplit = errors.New("btree: index split produced no separator")
)

package btree

import (
	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// Scan is the range-scan cursor (C7): iterates the leaf linked list
// between optional low/high keys, tolerating empty intermediate leaves
// and — per §5's scan-tolerance contract — best-effort behavior if the
// tree is mutated between GetNext calls. Between calls, a Scan holds only
// a page id and a slot number, never a pin.
type Scan struct {
	ix       *Index
	lowKey   []byte // nil means unbounded below
	highKey  []byte // nil means unbounded above
	curPID   page.ID
	curSlot  int
	started  bool
	finished bool
}

// OpenScan computes the starting leaf for [lowKey, highKey] (either may
// be nil) and returns a cursor positioned before the first result.
// Semantics match §6: both nil scans the whole index; lowKey==highKey
// scans every entry equal to that key.
func (ix *Index) OpenScan(lowKey, highKey []byte) (*Scan, error) {
	searchFrom := lowKey
	if searchFrom == nil {
		searchFrom = []byte{}
	}
	startPID, err := ix.Search(searchFrom)
	if err != nil {
		return nil, err
	}
	s := &Scan{ix: ix, lowKey: lowKey, highKey: highKey, curPID: startPID}
	if startPID == page.Invalid {
		s.finished = true
	}
	return s, nil
}

// GetNext returns the next (key, RecordID) in range, or ok=false ("Done")
// once the scan is exhausted or has passed highKey.
func (s *Scan) GetNext() (k []byte, rid page.RecordID, ok bool, err error) {
	if s.finished {
		return nil, page.InvalidRecordID, false, nil
	}

	if !s.started {
		s.started = true
		pid := s.curPID
		for pid != page.Invalid {
			L, err := s.ix.pinLeaf(pid)
			if err != nil {
				return nil, page.InvalidRecordID, false, err
			}
			slot, ek, erid, has := L.GetFirst()
			// Skip forward within this leaf while the key is strictly
			// less than lowKey.
			for has && s.lowKey != nil && key.Cmp(ek, s.lowKey) < 0 {
				slot, ek, erid, has = L.GetNext(slot)
			}
			if has {
				if err := s.ix.pool.Unpin(pid, false); err != nil {
					return nil, page.InvalidRecordID, false, err
				}
				return s.deliver(pid, slot, ek, erid)
			}
			next := L.NextPage()
			if err := s.ix.pool.Unpin(pid, false); err != nil {
				return nil, page.InvalidRecordID, false, err
			}
			pid = next
		}
		s.finished = true
		return nil, page.InvalidRecordID, false, nil
	}

	// Resume at (curPID, curSlot).
	L, err := s.ix.pinLeaf(s.curPID)
	if err != nil {
		return nil, page.InvalidRecordID, false, err
	}
	slot, ek, erid, has := L.GetNext(s.curSlot)
	if has {
		if err := s.ix.pool.Unpin(s.curPID, false); err != nil {
			return nil, page.InvalidRecordID, false, err
		}
		return s.deliver(s.curPID, slot, ek, erid)
	}
	next := L.NextPage()
	if err := s.ix.pool.Unpin(s.curPID, false); err != nil {
		return nil, page.InvalidRecordID, false, err
	}
	for next != page.Invalid {
		L, err := s.ix.pinLeaf(next)
		if err != nil {
			return nil, page.InvalidRecordID, false, err
		}
		slot, ek, erid, has := L.GetFirst()
		if has {
			if err := s.ix.pool.Unpin(next, false); err != nil {
				return nil, page.InvalidRecordID, false, err
			}
			return s.deliver(next, slot, ek, erid)
		}
		after := L.NextPage()
		if err := s.ix.pool.Unpin(next, false); err != nil {
			return nil, page.InvalidRecordID, false, err
		}
		next = after
	}
	s.finished = true
	return nil, page.InvalidRecordID, false, nil
}

// deliver applies the highKey cutoff and, if the entry survives,
// remembers the cursor position for the next call.
func (s *Scan) deliver(pid page.ID, slot int, k []byte, rid page.RecordID) ([]byte, page.RecordID, bool, error) {
	if s.highKey != nil && key.Cmp(k, s.highKey) > 0 {
		s.finished = true
		return nil, page.InvalidRecordID, false, nil
	}
	s.curPID = pid
	s.curSlot = slot
	return k, rid, true, nil
}

package btree

import (
	"github.com/SimonWaldherr/bplustree/internal/key"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

// splitLeaf implements §4.5.3: given a full leaf L (already pinned, buf
// lBuf, id lPid) and a new entry (k, r) that would not fit, allocate a
// new leaf N, splice it into the leaf chain right after L, move every
// entry from L to N, then pop-and-refill entries back into L until L's
// free space is no longer strictly greater than N's, inserting the new
// entry on whichever side its turn comes up. Returns N's id and N's
// (post-redistribution) first key as the separator to propagate upward.
// N is unpinned (dirty) before a successful return; L stays pinned for
// the caller.
//
// ix.pool must have the pinned buffer for L's next leaf (if any)
// available for a brief re-pin to fix up its prev-page pointer.
func (ix *Index) splitLeaf(lPid page.ID, lBuf []byte, k []byte, r page.RecordID) (page.ID, []byte, error) {
	L := wrapLeaf(lBuf)

	nPid, nBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
		buf := page.NewBuffer(ix.pool.PageSize(), page.TypeLeafNode, id)
		initLeaf(buf)
		return buf
	})
	if err != nil {
		return page.Invalid, nil, err
	}
	N := wrapLeaf(nBuf)

	// Splice N into the chain immediately after L.
	oldNext := L.NextPage()
	N.SetPrevPage(lPid)
	N.SetNextPage(oldNext)
	L.SetNextPage(nPid)
	if oldNext != page.Invalid {
		buf, err := ix.pool.Pin(oldNext)
		if err != nil {
			return page.Invalid, nil, err
		}
		wrapLeaf(buf).SetPrevPage(nPid)
		if err := ix.pool.Unpin(oldNext, true); err != nil {
			return page.Invalid, nil, err
		}
	}

	// Move all entries from L to N.
	keys, rids := L.allEntries()
	L.setNumSlots(0)
	L.setHeapTop(uint16(len(L.buf)))
	for i := range keys {
		if _, err := N.Insert(keys[i], rids[i]); err != nil {
			return page.Invalid, nil, err
		}
	}

	inserted := false
	for L.AvailableSpace() > N.AvailableSpace() {
		_, fk, frid, ok := N.GetFirst()
		if !ok {
			break
		}
		if !inserted && key.Cmp(k, fk) < 0 {
			if _, err := L.Insert(k, r); err != nil {
				return page.Invalid, nil, err
			}
			inserted = true
			continue
		}
		// deleteAt compacts N's heap, which moves the bytes fk points into.
		fk = append([]byte(nil), fk...)
		if err := N.deleteAt(0); err != nil {
			return page.Invalid, nil, err
		}
		if _, err := L.Insert(fk, frid); err != nil {
			return page.Invalid, nil, err
		}
	}
	if !inserted {
		if _, err := N.Insert(k, r); err != nil {
			return page.Invalid, nil, err
		}
	}

	_, sep, _, ok := N.GetFirst()
	if !ok {
		// N ended up empty: every moved entry, plus k, landed back in L.
		// Pathological (very small workloads with large keys) but legal;
		// the separator is then the key that would have been N's, i.e.
		// L's own maximum, so the parent still routes correctly. The
		// tree engine's caller treats this leaf as having at least one
		// entry via L, so fall back to L's last key.
		ks, _ := L.allEntries()
		sep = ks[len(ks)-1]
	}
	sep = append([]byte(nil), sep...)
	if err := ix.pool.Unpin(nPid, true); err != nil {
		return page.Invalid, nil, err
	}
	return nPid, sep, nil
}

// splitIndex implements §4.5.4: analogous to splitLeaf, but the
// redistributed entries are (key, child page.ID) pairs, and the
// separator key is popped out of N entirely (it becomes the parent
// separator rather than residing on either child). N is unpinned (dirty)
// before a successful return; I stays pinned for the caller.
func (ix *Index) splitIndex(iPid page.ID, iBuf []byte, k []byte, childPid page.ID) (page.ID, []byte, error) {
	I := wrapIndex(iBuf)

	nPid, nBuf, err := ix.pool.NewPage(func(id page.ID) []byte {
		buf := page.NewBuffer(ix.pool.PageSize(), page.TypeIndexNode, id)
		initIndex(buf)
		return buf
	})
	if err != nil {
		return page.Invalid, nil, err
	}
	N := wrapIndex(nBuf)

	keys, children := I.allEntries()
	I.setNumSlots(0)
	I.setHeapTop(uint16(len(I.buf)))
	for i := range keys {
		if _, err := N.Insert(keys[i], children[i]); err != nil {
			return page.Invalid, nil, err
		}
	}

	inserted := false
	for I.AvailableSpace() > N.AvailableSpace() {
		_, fk, fchild, ok := N.GetFirst()
		if !ok {
			break
		}
		if !inserted && key.Cmp(k, fk) < 0 {
			if _, err := I.Insert(k, childPid); err != nil {
				return page.Invalid, nil, err
			}
			inserted = true
			continue
		}
		// deleteAt compacts N's heap, which moves the bytes fk points into.
		fk = append([]byte(nil), fk...)
		if err := N.deleteAt(0); err != nil {
			return page.Invalid, nil, err
		}
		if _, err := I.Insert(fk, fchild); err != nil {
			return page.Invalid, nil, err
		}
	}
	if !inserted {
		if _, err := N.Insert(k, childPid); err != nil {
			return page.Invalid, nil, err
		}
	}

	_, sepKey, sepChild, ok := N.GetFirst()
	if !ok {
		return page.Invalid, nil, errCorruptSplit
	}
	sepKey = append([]byte(nil), sepKey...)
	if err := N.deleteAt(0); err != nil {
		return page.Invalid, nil, err
	}
	N.SetLeftmostChild(sepChild)
	if err := ix.pool.Unpin(nPid, true); err != nil {
		return page.Invalid, nil, err
	}
	return nPid, sepKey, nil
}

package btree

import (
	"fmt"
	"io"
	"strings"

	"github.com/SimonWaldherr/bplustree/internal/page"
)

// DestroyFile implements C8's DestroyFile: frees every page reachable
// from the root, then the header page itself. It discovers pages with an
// explicit stack of identifiers (rather than recursive calls holding
// pins open) before freeing any of them, so freeing order never depends
// on the shape of the tree. The caller (dbenv's Env.DestroyIndex) is
// responsible for removing the catalog entry afterward.
func (ix *Index) DestroyFile() error {
	root := ix.root()
	if root != page.Invalid {
		var toFree []page.ID
		stack := []page.ID{root}
		for len(stack) > 0 {
			pid := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			toFree = append(toFree, pid)

			kind, err := ix.pageKind(pid)
			if err != nil {
				return err
			}
			if kind != kindIndex {
				continue
			}
			buf, err := ix.pool.Pin(pid)
			if err != nil {
				return err
			}
			idx := wrapIndex(buf)
			stack = append(stack, idx.LeftmostChild())
			_, children := idx.allEntries()
			stack = append(stack, children...)
			if err := ix.pool.Unpin(pid, false); err != nil {
				return err
			}
		}
		for _, pid := range toFree {
			if err := ix.pool.FreePage(pid); err != nil {
				return err
			}
		}
		ix.setRoot(page.Invalid)
	}
	return ix.pool.FreePage(ix.headerPID)
}

// LivePages returns the header page id plus every page reachable from the
// root, using the same explicit-stack discovery as DestroyFile but
// without freeing anything. dbenv uses this on a non-fresh Open to rebuild
// the disk manager's in-memory free set by walking every registered
// index's tree (§6a/§9's "global state … initialized once at startup"),
// since the free set itself is never persisted across a close/reopen.
func (ix *Index) LivePages() ([]page.ID, error) {
	live := []page.ID{ix.headerPID}
	root := ix.root()
	if root == page.Invalid {
		return live, nil
	}
	stack := []page.ID{root}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		live = append(live, pid)

		kind, err := ix.pageKind(pid)
		if err != nil {
			return nil, err
		}
		if kind != kindIndex {
			continue
		}
		buf, err := ix.pool.Pin(pid)
		if err != nil {
			return nil, err
		}
		idx := wrapIndex(buf)
		stack = append(stack, idx.LeftmostChild())
		_, children := idx.allEntries()
		stack = append(stack, children...)
		if err := ix.pool.Unpin(pid, false); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// PrintOption controls how much of the tree PrintTree dumps.
type PrintOption int

const (
	// PrintSingle dumps only the root page.
	PrintSingle PrintOption = iota
	// PrintRecursive dumps the root and recursively every descendant —
	// this is what the CLI's "print" command uses to dump the whole tree.
	PrintRecursive
)

// PrintTree writes a human-readable dump of the tree to w.
func (ix *Index) PrintTree(w io.Writer, opt PrintOption) error {
	root := ix.root()
	if root == page.Invalid {
		fmt.Fprintln(w, "<empty tree>")
		return nil
	}
	return ix.printPage(w, root, opt, 0)
}

func (ix *Index) printPage(w io.Writer, pid page.ID, opt PrintOption, depth int) error {
	indent := strings.Repeat("  ", depth)
	kind, err := ix.pageKind(pid)
	if err != nil {
		return err
	}
	buf, err := ix.pool.Pin(pid)
	if err != nil {
		return err
	}

	if kind == kindLeaf {
		L := wrapLeaf(buf)
		keys, rids := L.allEntries()
		fmt.Fprintf(w, "%sLEAF %d (prev=%d next=%d): %d entries\n", indent, pid, L.PrevPage(), L.NextPage(), len(keys))
		for i := range keys {
			fmt.Fprintf(w, "%s  %q -> %s\n", indent, keys[i], rids[i])
		}
		return ix.pool.Unpin(pid, false)
	}

	idx := wrapIndex(buf)
	keys, children := idx.allEntries()
	fmt.Fprintf(w, "%sINDEX %d (leftmost=%d): %d separators\n", indent, pid, idx.LeftmostChild(), len(keys))
	for i, k := range keys {
		fmt.Fprintf(w, "%s  sep %q -> child %d\n", indent, k, children[i])
	}
	leftmost := idx.LeftmostChild()
	if err := ix.pool.Unpin(pid, false); err != nil {
		return err
	}
	if opt != PrintRecursive {
		return nil
	}
	if err := ix.printPage(w, leftmost, opt, depth+1); err != nil {
		return err
	}
	for _, c := range children {
		if err := ix.printPage(w, c, opt, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// PageDump is one page's structured contents, as returned by DumpPages for
// the CLI's "print" command under --format yaml — the same information
// PrintTree writes as text, shaped for yaml.Marshal instead.
type PageDump struct {
	ID       page.ID  `yaml:"id"`
	Kind     string   `yaml:"kind"`
	Prev     page.ID  `yaml:"prev,omitempty"`
	Next     page.ID  `yaml:"next,omitempty"`
	Leftmost page.ID  `yaml:"leftmost,omitempty"`
	Keys     []string `yaml:"keys"`
	// Children holds, for an INDEX page, the child page id paired with
	// each entry in Keys (same index); absent for a LEAF page, whose Keys
	// map instead to the record ids each key looked up (not reproduced
	// here — PrintTree's text form remains the place to see rids).
	Children []page.ID `yaml:"children,omitempty"`
}

// DumpPages walks the whole tree in the same order PrintTree(w,
// PrintRecursive) does and returns one PageDump per page, for callers that
// want a structured (e.g. yaml) representation instead of text.
func (ix *Index) DumpPages() ([]PageDump, error) {
	root := ix.root()
	if root == page.Invalid {
		return nil, nil
	}
	var out []PageDump
	if err := ix.dumpPage(root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ix *Index) dumpPage(pid page.ID, out *[]PageDump) error {
	kind, err := ix.pageKind(pid)
	if err != nil {
		return err
	}
	buf, err := ix.pool.Pin(pid)
	if err != nil {
		return err
	}

	if kind == kindLeaf {
		L := wrapLeaf(buf)
		keys, _ := L.allEntries()
		strKeys := make([]string, len(keys))
		for i, k := range keys {
			strKeys[i] = string(k)
		}
		*out = append(*out, PageDump{
			ID: pid, Kind: "LEAF", Prev: L.PrevPage(), Next: L.NextPage(), Keys: strKeys,
		})
		return ix.pool.Unpin(pid, false)
	}

	idx := wrapIndex(buf)
	keys, children := idx.allEntries()
	strKeys := make([]string, len(keys))
	for i, k := range keys {
		strKeys[i] = string(k)
	}
	leftmost := idx.LeftmostChild()
	*out = append(*out, PageDump{
		ID: pid, Kind: "INDEX", Leftmost: leftmost, Keys: strKeys, Children: children,
	})
	if err := ix.pool.Unpin(pid, false); err != nil {
		return err
	}
	if err := ix.dumpPage(leftmost, out); err != nil {
		return err
	}
	for _, c := range children {
		if err := ix.dumpPage(c, out); err != nil {
			return err
		}
	}
	return nil
}

// Stats is the result of DumpStatistics.
type Stats struct {
	LeafPages    int
	IndexPages   int
	LeafEntries  int
	IndexEntries int
	// Height is the depth of the first-leaf path, using the signed-
	// counter convention from the design notes: it assumes all leaves
	// are equidistant, which holds for trees built purely by insert but
	// is not an invariant the split algorithm enforces (splits never
	// rebalance). It is not a tree-wide measurement.
	Height  int
	MinFill float64
	MaxFill float64
	AvgFill float64
}

// DumpStatistics implements C8's DumpStatistics: one explicit-stack
// traversal counting pages/entries/fill factor, plus a single-path
// descent for Height.
func (ix *Index) DumpStatistics() (Stats, error) {
	var st Stats
	root := ix.root()
	if root == page.Invalid {
		return st, nil
	}

	var fills []float64
	stack := []page.ID{root}
	for len(stack) > 0 {
		pid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		buf, err := ix.pool.Pin(pid)
		if err != nil {
			return st, err
		}
		n := wrapNode(buf)
		fills = append(fills, float64(n.usedBytes())/float64(len(buf)))

		if n.kind() == kindLeaf {
			st.LeafPages++
			st.LeafEntries += n.numSlots()
		} else {
			st.IndexPages++
			st.IndexEntries += n.numSlots()
			idx := wrapIndex(buf)
			stack = append(stack, idx.LeftmostChild())
			_, children := idx.allEntries()
			stack = append(stack, children...)
		}
		if err := ix.pool.Unpin(pid, false); err != nil {
			return st, err
		}
	}

	depth := 0
	cur := root
	for {
		kind, err := ix.pageKind(cur)
		if err != nil {
			return st, err
		}
		if kind == kindLeaf {
			break
		}
		depth--
		buf, err := ix.pool.Pin(cur)
		if err != nil {
			return st, err
		}
		lm := wrapIndex(buf).LeftmostChild()
		if err := ix.pool.Unpin(cur, false); err != nil {
			return st, err
		}
		cur = lm
	}
	st.Height = -depth

	if len(fills) > 0 {
		min, max, sum := fills[0], fills[0], 0.0
		for _, f := range fills {
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
			sum += f
		}
		st.MinFill, st.MaxFill, st.AvgFill = min, max, sum/float64(len(fills))
	}
	return st, nil
}

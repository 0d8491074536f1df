// Command repl is the CLI driver (C12): an interactive shell over one
// named B+Tree index in a database file, exercising Insert/Delete/OpenScan/
// PrintTree/DumpStatistics end to end. Its REPL loop — bufio.Scanner over
// stdin, interactive-vs-redirected detection, a "command args..." grammar —
// follows the teacher's cmd/repl, adapted from SQL statements to this
// index's six-command surface (insert, delete, scan, print, stats, quit;
// exit is an alias of quit).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/SimonWaldherr/bplustree/internal/btree"
	"github.com/SimonWaldherr/bplustree/internal/dbenv"
	"github.com/SimonWaldherr/bplustree/internal/page"
)

var (
	flagFile      = flag.String("db", "index.db", "database file path")
	flagIndex     = flag.String("index", "default", "named index within the database file to open")
	flagPageSize  = flag.Int("page-size", 0, "page size in bytes (0 selects the default)")
	flagFrames    = flag.Int("frames", 0, "buffer pool frame count (0 selects the default)")
	flagFormat    = flag.String("format", "text", "stats/print output format: text or yaml")
	flagStatsCron = flag.String("stats-cron", "", "optional cron expression to log DumpStatistics periodically, e.g. \"*/5 * * * *\"")
)

func main() {
	flag.Parse()

	env, err := dbenv.Open(dbenv.Config{Path: *flagFile, PageSize: *flagPageSize, MaxFrames: *flagFrames})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open error:", err)
		os.Exit(1)
	}
	defer env.Close()

	idx, err := env.OpenIndex(*flagIndex)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index error:", err)
		os.Exit(1)
	}
	defer idx.Close()

	var sched *cron.Cron
	if *flagStatsCron != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(*flagStatsCron, func() { logStats(idx) }); err != nil {
			fmt.Fprintln(os.Stderr, "stats-cron error:", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	runREPL(idx, os.Stdin, os.Stdout, *flagFormat)
}

func logStats(idx *btree.Index) {
	st, err := idx.DumpStatistics()
	if err != nil {
		log.Printf("btree: stats-cron: dump statistics: %v", err)
		return
	}
	log.Printf("btree: stats leaves=%d index=%d entries=%d height=%d avgFill=%.2f instance=%s",
		st.LeafPages, st.IndexPages, st.LeafEntries+st.IndexEntries, st.Height, st.AvgFill, idx.InstanceID)
}

// padKey formats an integer key the way every command in this shell
// agrees on: four zero-padded decimal digits, matching the testable
// property scenarios' integer-key convention.
func padKey(i int) []byte {
	return []byte(fmt.Sprintf("%04d", i))
}

func runREPL(idx *btree.Index, in *os.File, out *os.File, format string) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 1024), 1024*1024)

	interactive := false
	if fi, err := in.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}

	if interactive {
		fmt.Fprintln(out, "bplustree REPL. Commands: insert lo hi | scan lo hi | delete lo hi | print | stats | quit")
	}

	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "quit", "exit":
			return
		case "insert":
			handleInsert(idx, out, args)
		case "delete":
			handleDelete(idx, out, args)
		case "scan":
			handleScan(idx, out, args)
		case "print":
			handlePrint(idx, out, format)
		case "stats":
			handleStats(idx, out, format)
		default:
			fmt.Fprintf(out, "unknown command %q\n", cmd)
		}
	}
}

func parseRange(args []string) (lo, hi int, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("want 2 arguments (lo hi), got %d", len(args))
	}
	lo, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad lo: %w", err)
	}
	hi, err = strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad hi: %w", err)
	}
	return lo, hi, nil
}

func handleInsert(idx *btree.Index, out *os.File, args []string) {
	lo, hi, err := parseRange(args)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	for i := lo; i <= hi; i++ {
		rid := page.RecordID{Page: page.ID(i + 1), Slot: 0}
		if err := idx.Insert(padKey(i), rid); err != nil {
			fmt.Fprintf(out, "insert %d: %v\n", i, err)
			return
		}
	}
	fmt.Fprintf(out, "inserted %d..%d\n", lo, hi)
}

func handleDelete(idx *btree.Index, out *os.File, args []string) {
	lo, hi, err := parseRange(args)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	for i := lo; i <= hi; i++ {
		rid := page.RecordID{Page: page.ID(i + 1), Slot: 0}
		if err := idx.Delete(padKey(i), rid); err != nil {
			fmt.Fprintf(out, "delete %d: %v\n", i, err)
			return
		}
	}
	fmt.Fprintf(out, "deleted %d..%d\n", lo, hi)
}

func handleScan(idx *btree.Index, out *os.File, args []string) {
	lo, hi, err := parseRange(args)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	s, err := idx.OpenScan(padKey(lo), padKey(hi))
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	count := 0
	for {
		k, rid, ok, err := s.GetNext()
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		if !ok {
			break
		}
		fmt.Fprintf(out, "%s -> %s\n", k, rid)
		count++
	}
	fmt.Fprintf(out, "%d entries\n", count)
}

// handlePrint dumps the tree as text, or — matching the stats command's
// --format yaml support — as a yaml.Marshal'd list of btree.PageDump.
func handlePrint(idx *btree.Index, out *os.File, format string) {
	if format == "yaml" {
		pages, err := idx.DumpPages()
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		b, err := yaml.Marshal(pages)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		out.Write(b)
		return
	}
	if err := idx.PrintTree(out, btree.PrintRecursive); err != nil {
		fmt.Fprintln(out, "error:", err)
	}
}

func handleStats(idx *btree.Index, out *os.File, format string) {
	st, err := idx.DumpStatistics()
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if format == "yaml" {
		b, err := yaml.Marshal(st)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		out.Write(b)
		return
	}
	fmt.Fprintf(out, "leaf pages:   %d\n", st.LeafPages)
	fmt.Fprintf(out, "index pages:  %d\n", st.IndexPages)
	fmt.Fprintf(out, "leaf entries: %d\n", st.LeafEntries)
	fmt.Fprintf(out, "idx entries:  %d\n", st.IndexEntries)
	fmt.Fprintf(out, "height:       %d\n", st.Height)
	fmt.Fprintf(out, "fill min/avg/max: %.2f / %.2f / %.2f\n", st.MinFill, st.AvgFill, st.MaxFill)
}

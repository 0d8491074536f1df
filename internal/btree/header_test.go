package btree

import (
	"testing"

	"github.com/SimonWaldherr/bplustree/internal/page"
)

func TestHeaderPageRootRoundTrip(t *testing.T) {
	buf := page.NewBuffer(page.MinSize, page.TypeHeader, 0)
	h := initHeaderPage(buf)
	if h.RootPageID() != page.Invalid {
		t.Fatalf("fresh header root = %d, want Invalid", h.RootPageID())
	}
	h.SetRootPageID(42)
	if wrapHeaderPage(buf).RootPageID() != 42 {
		t.Fatalf("RootPageID after set = %d, want 42", wrapHeaderPage(buf).RootPageID())
	}
}

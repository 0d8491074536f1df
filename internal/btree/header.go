package btree

import (
	"encoding/binary"

	"github.com/SimonWaldherr/bplustree/internal/page"
)

// headerPage wraps the one-page object holding the current root page
// identifier (C5). Its payload is the first word after the common page
// header: a single page.ID. Root may be page.Invalid (empty tree).
type headerPage struct{ buf []byte }

func initHeaderPage(buf []byte) *headerPage {
	h := &headerPage{buf: buf}
	h.SetRootPageID(page.Invalid)
	return h
}

func wrapHeaderPage(buf []byte) *headerPage { return &headerPage{buf: buf} }

func (h *headerPage) RootPageID() page.ID {
	return page.ID(binary.LittleEndian.Uint32(h.buf[page.HeaderSize:]))
}

func (h *headerPage) SetRootPageID(pid page.ID) {
	binary.LittleEndian.PutUint32(h.buf[page.HeaderSize:], uint32(pid))
}

// Package pager implements HeapFile: a flat, file-backed array of fixed-size
// pages with random read and append-only write. It derives the page count
// from the file's length rather than keeping a separate header page — the
// file's length is the only source of truth.
package pager

import (
	"errors"
	"fmt"
	"os"

	"github.com/halvardb/storecore/dbms/page"
)

var (
	// ErrBadFileSize is returned by Open when the file's length is not a
	// whole multiple of page.Size.
	ErrBadFileSize = errors.New("pager: file size is not a multiple of page size")
	// ErrPageOutOfRange is returned by ReadPage when id is not a currently
	// allocated page.
	ErrPageOutOfRange = errors.New("pager: page id out of range")
)

// HeapFile is a file-backed array of page.Size-byte pages, indexed 0-based
// by position. It owns its file handle exclusively while open.
type HeapFile struct {
	file     *os.File
	numPages uint32
}

// Create opens path, truncating any existing contents, and returns an empty
// HeapFile (num_pages = 0).
func Create(path string) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: create %s: %w", path, err)
	}
	return &HeapFile{file: f, numPages: 0}, nil
}

// Open opens an existing file read/write and derives num_pages from its
// length. It fails with ErrBadFileSize if the length is not a multiple of
// page.Size.
func Open(path string) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}
	size := info.Size()
	if size%page.Size != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrBadFileSize, path, size)
	}
	return &HeapFile{file: f, numPages: uint32(size / page.Size)}, nil
}

// AppendPage rewrites p's page_id to the newly assigned id (num_pages),
// writes it at the end of the file, and returns the assigned id.
func (h *HeapFile) AppendPage(p *page.Page) (uint32, error) {
	id := h.numPages
	p.SetPageID(id)
	off := int64(id) * page.Size
	if _, err := h.file.WriteAt(p.Bytes(), off); err != nil {
		return 0, fmt.Errorf("pager: append page %d: %w", id, err)
	}
	h.numPages++
	return id, nil
}

// ReadPage reads and validates the page at id.
func (h *HeapFile) ReadPage(id uint32) (*page.Page, error) {
	if id >= h.numPages {
		return nil, fmt.Errorf("%w: id=%d num_pages=%d", ErrPageOutOfRange, id, h.numPages)
	}
	buf := make([]byte, page.Size)
	off := int64(id) * page.Size
	if _, err := h.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	p, err := page.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("pager: decode page %d: %w", id, err)
	}
	return p, nil
}

// WritePage overwrites the page at id. The caller must ensure id < NumPages.
func (h *HeapFile) WritePage(id uint32, p *page.Page) error {
	off := int64(id) * page.Size
	if _, err := h.file.WriteAt(p.Bytes(), off); err != nil {
		return fmt.Errorf("pager: write page %d: %w", id, err)
	}
	return nil
}

// NumPages reports the number of pages currently in the file.
func (h *HeapFile) NumPages() uint32 { return h.numPages }

// Close closes the underlying file handle.
func (h *HeapFile) Close() error {
	return h.file.Close()
}

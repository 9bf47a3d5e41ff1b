package pager

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/halvardb/storecore/dbms/page"
)

func TestCreateEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()
	if h.NumPages() != 0 {
		t.Fatalf("NumPages = %d, want 0", h.NumPages())
	}
}

// Append assigns sequential ids.
func TestAppendPageAssignsSequentialIds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	for i := 0; i < 3; i++ {
		p := page.New(999, page.Heap)
		id, err := h.AppendPage(p)
		if err != nil {
			t.Fatalf("AppendPage %d: %v", i, err)
		}
		if id != uint32(i) {
			t.Fatalf("append %d: id = %d, want %d", i, id, i)
		}
		if p.PageID() != uint32(i) {
			t.Fatalf("append %d: page's own page_id = %d, want %d", i, p.PageID(), i)
		}
	}
	if h.NumPages() != 3 {
		t.Fatalf("NumPages = %d, want 3", h.NumPages())
	}
}

// Written content round-trips through ReadPage.
func TestReadPageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	p := page.New(0, page.Heap)
	if _, ok := p.Insert([]byte("persisted row")); !ok {
		t.Fatalf("insert failed")
	}
	id, err := h.AppendPage(p)
	if err != nil {
		t.Fatalf("AppendPage: %v", err)
	}

	got, err := h.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	data, ok := got.GetSlot(0)
	if !ok || string(data) != "persisted row" {
		t.Fatalf("got %q ok=%v, want %q", data, ok, "persisted row")
	}
}

func TestWritePageOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	p := page.New(0, page.Heap)
	id, err := h.AppendPage(p)
	if err != nil {
		t.Fatalf("AppendPage: %v", err)
	}

	p2 := page.New(id, page.Heap)
	p2.Insert([]byte("updated"))
	if err := h.WritePage(id, p2); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := h.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	data, ok := got.GetSlot(0)
	if !ok || string(data) != "updated" {
		t.Fatalf("got %q ok=%v, want %q", data, ok, "updated")
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	if _, err := h.ReadPage(0); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

// Reopening a file preserves page identity and content.
func TestReopenPreservesPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 2; i++ {
		p := page.New(0, page.Heap)
		p.Insert([]byte("row"))
		if _, err := h.AppendPage(p); err != nil {
			t.Fatalf("AppendPage: %v", err)
		}
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if reopened.NumPages() != 2 {
		t.Fatalf("NumPages after reopen = %d, want 2", reopened.NumPages())
	}
	for id := uint32(0); id < 2; id++ {
		p, err := reopened.ReadPage(id)
		if err != nil {
			t.Fatalf("ReadPage(%d): %v", id, err)
		}
		if p.PageID() != id {
			t.Fatalf("page %d: page_id = %d", id, p.PageID())
		}
		data, ok := p.GetSlot(0)
		if !ok || string(data) != "row" {
			t.Fatalf("page %d: got %q ok=%v", id, data, ok)
		}
	}
}

func TestOpenBadFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.heap")
	h, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Write a partial page directly, bypassing AppendPage.
	if _, err := h.file.WriteAt([]byte{1, 2, 3}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(path); !errors.Is(err, ErrBadFileSize) {
		t.Fatalf("expected ErrBadFileSize, got %v", err)
	}
}

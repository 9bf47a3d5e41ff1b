// Package page implements the fixed-size slotted page format shared by
// every flavor of page in storecore: a 32-byte header common to all of
// them, a slot directory and row heap for Heap-flavor pages, and raw body
// access for the B+tree's Leaf/Internal node layouts (see dbms/btree).
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the fixed on-disk size of a page, in bytes. The page size is a
// compile-time constant of the format; it does not vary at runtime.
const Size = 8192

// Magic is the 4-byte little-endian tag every page begins with.
const Magic uint32 = 0x5253_4442

// HeaderLen is the size in bytes of the header shared by every page flavor.
const HeaderLen = 32

const (
	offMagic    = 0
	offPageID   = 4
	offFlags    = 8
	offNSlots   = 10
	offFreeEnd  = 12
	slotEntrySize = 4 // offset(2) + length(2)
	slotDirStart  = HeaderLen
)

// Flags tags which of the three flavors a page is.
type Flags uint16

const (
	Heap Flags = iota
	Leaf
	Internal
)

func (f Flags) String() string {
	switch f {
	case Heap:
		return "Heap"
	case Leaf:
		return "Leaf"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Flags(%d)", uint16(f))
	}
}

var (
	// ErrBadMagic is returned by Decode when the leading 4 bytes don't
	// match Magic.
	ErrBadMagic = errors.New("page: bad magic")
	// ErrInvalidSlot is returned when a slot index is out of range.
	ErrInvalidSlot = errors.New("page: invalid slot")
	// ErrRowTooShort is returned by DeleteSlot when the slot's recorded
	// length is shorter than a row header.
	ErrRowTooShort = errors.New("page: row too short for tombstone")
)

// Page is one 8192-byte disk block. It owns its backing bytes exclusively
// while held in memory.
type Page struct {
	buf [Size]byte
}

// New allocates a fresh page for pageID with the given flavor: n_slots = 0,
// free_end = Size, reserved bytes zeroed.
func New(pageID uint32, flags Flags) *Page {
	p := &Page{}
	binary.LittleEndian.PutUint32(p.buf[offMagic:], Magic)
	p.SetPageID(pageID)
	binary.LittleEndian.PutUint16(p.buf[offFlags:], uint16(flags))
	p.setNSlots(0)
	p.setFreeEnd(Size)
	return p
}

// Decode validates and wraps a raw Size-byte buffer as a Page, copying it
// into the returned Page's own storage.
func Decode(raw []byte) (*Page, error) {
	if len(raw) != Size {
		return nil, fmt.Errorf("page: expected %d bytes, got %d", Size, len(raw))
	}
	p := &Page{}
	copy(p.buf[:], raw)
	if p.magic() != Magic {
		return nil, ErrBadMagic
	}
	return p, nil
}

// Bytes returns the page's on-disk representation for writing to storage.
func (p *Page) Bytes() []byte { return p.buf[:] }

// AsBytes gives raw read-only access to the page body, used by the B+tree
// to interpret its own Leaf/Internal layouts.
func (p *Page) AsBytes() *[Size]byte { return &p.buf }

// AsBytesMut gives raw mutable access to the page body, used by the B+tree
// to lay out its own Leaf/Internal formats directly. No other component
// reaches through these.
func (p *Page) AsBytesMut() *[Size]byte { return &p.buf }

func (p *Page) magic() uint32 {
	return binary.LittleEndian.Uint32(p.buf[offMagic:])
}

// PageID returns the page's position (0-based) in its heap file.
func (p *Page) PageID() uint32 {
	return binary.LittleEndian.Uint32(p.buf[offPageID:])
}

// SetPageID overwrites the page_id header field, used when a page is
// assigned its id on append.
func (p *Page) SetPageID(id uint32) {
	binary.LittleEndian.PutUint32(p.buf[offPageID:], id)
}

// PageFlags returns which flavor this page is.
func (p *Page) PageFlags() Flags {
	return Flags(binary.LittleEndian.Uint16(p.buf[offFlags:]))
}

// NSlots returns the number of slot directory entries (Heap flavor).
func (p *Page) NSlots() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offNSlots:])
}

func (p *Page) setNSlots(n uint16) {
	binary.LittleEndian.PutUint16(p.buf[offNSlots:], n)
}

// FreeEndOffset returns the byte offset of the low end of the row heap.
func (p *Page) FreeEndOffset() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offFreeEnd:])
}

func (p *Page) setFreeEnd(v uint16) {
	binary.LittleEndian.PutUint16(p.buf[offFreeEnd:], v)
}

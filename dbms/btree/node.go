package btree

import (
	"encoding/binary"

	"github.com/halvardb/storecore/dbms/page"
)

// Both node bodies begin immediately after the shared 32-byte page header.
const bodyStart = page.HeaderLen

// Leaf body: next_leaf(4) | num_entries(2) | entries[num_entries]
// where each entry is key(8) | page_id(4) | slot(2) = 14 bytes.
const (
	leafNextOff    = bodyStart
	leafNumOff     = bodyStart + 4
	leafEntriesOff = bodyStart + 6
	leafEntrySize  = 8 + 4 + 2
)

// MaxLeafEntries is the largest num_entries a leaf may hold before it must
// split, derived from page.Size per spec: floor((PAGE_SIZE-32-4-2)/14).
const MaxLeafEntries = (page.Size - bodyStart - 4 - 2) / leafEntrySize

// Internal body: num_keys(2) | child_0(4) | (key_1(8), child_1(4)) | …
// Each (key, child) pair after child_0 is 12 bytes.
const (
	internalNumOff   = bodyStart
	internalChild0   = bodyStart + 2
	internalPairSize = 8 + 4
)

// MaxInternalKeys is the largest num_keys an internal node may hold before
// it must split: floor((PAGE_SIZE-32-2-4)/12).
const MaxInternalKeys = (page.Size - bodyStart - 2 - 4) / internalPairSize

// RowRef is the stable address of a tuple within a table heap file.
type RowRef struct {
	PageID uint32
	Slot   uint16
}

func newLeaf(pageID uint32) *page.Page {
	p := page.New(pageID, page.Leaf)
	setLeafNext(p, 0)
	setLeafNumEntries(p, 0)
	return p
}

func newInternal(pageID uint32) *page.Page {
	p := page.New(pageID, page.Internal)
	setInternalNumKeys(p, 0)
	return p
}

func leafNext(p *page.Page) uint32 {
	buf := p.AsBytes()
	return binary.LittleEndian.Uint32(buf[leafNextOff:])
}

func setLeafNext(p *page.Page, next uint32) {
	buf := p.AsBytesMut()
	binary.LittleEndian.PutUint32(buf[leafNextOff:], next)
}

func leafNumEntries(p *page.Page) int {
	buf := p.AsBytes()
	return int(binary.LittleEndian.Uint16(buf[leafNumOff:]))
}

func setLeafNumEntries(p *page.Page, n int) {
	buf := p.AsBytesMut()
	binary.LittleEndian.PutUint16(buf[leafNumOff:], uint16(n))
}

func leafEntryOffset(i int) int {
	return leafEntriesOff + i*leafEntrySize
}

func leafKeyAt(p *page.Page, i int) int64 {
	buf := p.AsBytes()
	off := leafEntryOffset(i)
	return int64(binary.LittleEndian.Uint64(buf[off:]))
}

func leafRefAt(p *page.Page, i int) RowRef {
	buf := p.AsBytes()
	off := leafEntryOffset(i) + 8
	return RowRef{
		PageID: binary.LittleEndian.Uint32(buf[off:]),
		Slot:   binary.LittleEndian.Uint16(buf[off+4:]),
	}
}

func setLeafEntry(p *page.Page, i int, key int64, ref RowRef) {
	buf := p.AsBytesMut()
	off := leafEntryOffset(i)
	binary.LittleEndian.PutUint64(buf[off:], uint64(key))
	binary.LittleEndian.PutUint32(buf[off+8:], ref.PageID)
	binary.LittleEndian.PutUint16(buf[off+12:], ref.Slot)
}

// leafInsertAt shifts entries [idx..n) right by one slot and writes
// (key, ref) at idx, growing num_entries by one.
func leafInsertAt(p *page.Page, idx int, key int64, ref RowRef) {
	n := leafNumEntries(p)
	for i := n - 1; i >= idx; i-- {
		setLeafEntry(p, i+1, leafKeyAt(p, i), leafRefAt(p, i))
	}
	setLeafEntry(p, idx, key, ref)
	setLeafNumEntries(p, n+1)
}

func internalNumKeys(p *page.Page) int {
	buf := p.AsBytes()
	return int(binary.LittleEndian.Uint16(buf[internalNumOff:]))
}

func setInternalNumKeys(p *page.Page, n int) {
	buf := p.AsBytesMut()
	binary.LittleEndian.PutUint16(buf[internalNumOff:], uint16(n))
}

// internalPairOffset returns the byte offset of the (key_i, child_i) pair
// for i>=1; i==0 has no key and is addressed directly via internalChild0.
func internalPairOffset(i int) int {
	return internalChild0 + 4 + (i-1)*internalPairSize
}

func internalChildAt(p *page.Page, i int) uint32 {
	buf := p.AsBytes()
	if i == 0 {
		return binary.LittleEndian.Uint32(buf[internalChild0:])
	}
	off := internalPairOffset(i) + 8
	return binary.LittleEndian.Uint32(buf[off:])
}

func setInternalChildAt(p *page.Page, i int, child uint32) {
	buf := p.AsBytesMut()
	if i == 0 {
		binary.LittleEndian.PutUint32(buf[internalChild0:], child)
		return
	}
	off := internalPairOffset(i) + 8
	binary.LittleEndian.PutUint32(buf[off:], child)
}

// internalKeyAt returns key_i for i in [1..num_keys].
func internalKeyAt(p *page.Page, i int) int64 {
	buf := p.AsBytes()
	off := internalPairOffset(i)
	return int64(binary.LittleEndian.Uint64(buf[off:]))
}

func setInternalKeyAt(p *page.Page, i int, key int64) {
	buf := p.AsBytesMut()
	off := internalPairOffset(i)
	binary.LittleEndian.PutUint64(buf[off:], uint64(key))
}

// internalInsertChild splices a new (key, child) pair immediately after
// child_idx, shifting higher pairs right by one.
func internalInsertChild(p *page.Page, childIdx int, key int64, rightChild uint32) {
	n := internalNumKeys(p)
	for i := n; i > childIdx; i-- {
		setInternalChildAt(p, i+1, internalChildAt(p, i))
		setInternalKeyAt(p, i+1, internalKeyAt(p, i))
	}
	setInternalChildAt(p, childIdx+1, rightChild)
	setInternalKeyAt(p, childIdx+1, key)
	setInternalNumKeys(p, n+1)
}

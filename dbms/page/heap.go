package page

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// rowHeaderLen mirrors dbms/row.HeaderLen (txn_id + tombstone). Kept as a
// local constant rather than an import so the page format doesn't take a
// dependency on the row codec for a single offset.
const rowHeaderLen = 9

// FreeSpace returns the number of bytes available for a new row plus its
// slot entry, saturating to 0 once the slot directory has met the row
// heap. The subtracted slotEntrySize reserves room for one more directory
// entry; it is a load-check, not a permanent reservation.
func (p *Page) FreeSpace() int {
	dirEnd := slotDirStart + int(p.NSlots())*slotEntrySize
	freeEnd := int(p.FreeEndOffset())
	space := freeEnd - dirEnd - slotEntrySize
	if space < 0 {
		return 0
	}
	return space
}

// Insert copies row into the row heap and appends a slot directory entry
// pointing at it. It returns the new slot index, or ok=false if there
// isn't room for row plus one more directory entry. Slot indexes are
// assigned densely starting at 0 and are never reused.
func (p *Page) Insert(row []byte) (slot uint16, ok bool) {
	need := len(row) + slotEntrySize
	if p.FreeSpace() < need {
		return 0, false
	}
	n := p.NSlots()
	newFreeEnd := int(p.FreeEndOffset()) - len(row)
	copy(p.buf[newFreeEnd:newFreeEnd+len(row)], row)

	dirPos := slotDirStart + int(n)*slotEntrySize
	binary.LittleEndian.PutUint16(p.buf[dirPos:], uint16(newFreeEnd))
	binary.LittleEndian.PutUint16(p.buf[dirPos+2:], uint16(len(row)))

	p.setFreeEnd(uint16(newFreeEnd))
	p.setNSlots(n + 1)
	return n, true
}

func (p *Page) slotEntry(i uint16) (offset, length uint16, ok bool) {
	if i >= p.NSlots() {
		return 0, 0, false
	}
	pos := slotDirStart + int(i)*slotEntrySize
	offset = binary.LittleEndian.Uint16(p.buf[pos:])
	length = binary.LittleEndian.Uint16(p.buf[pos+2:])
	return offset, length, true
}

// GetSlot returns the bytes of slot i, or ok=false if i is out of range or
// the recorded (offset+length) would run past the end of the page.
func (p *Page) GetSlot(i uint16) (data []byte, ok bool) {
	offset, length, ok := p.slotEntry(i)
	if !ok {
		return nil, false
	}
	if int(offset)+int(length) > Size {
		return nil, false
	}
	return p.buf[offset : offset+length], true
}

// DeleteSlot marks the row at slot i as deleted by setting its tombstone
// byte in place (byte offset 8 of the row, i.e. right after the 8-byte
// txn_id). Space is not reclaimed.
func (p *Page) DeleteSlot(i uint16) error {
	offset, length, ok := p.slotEntry(i)
	if !ok {
		return fmt.Errorf("%w: slot %d (n_slots=%d)", ErrInvalidSlot, i, p.NSlots())
	}
	if length < rowHeaderLen {
		return fmt.Errorf("%w: slot %d has length %d, need at least %d", ErrRowTooShort, i, length, rowHeaderLen)
	}
	p.buf[int(offset)+8] = 1
	return nil
}

// IterSlots yields (slot_index, bytes) for every slot 0..n_slots. Callers
// must consult the tombstone byte themselves to distinguish live rows from
// deleted ones — the slot directory never shrinks once a slot is written.
func (p *Page) IterSlots() iter.Seq2[uint16, []byte] {
	return func(yield func(uint16, []byte) bool) {
		n := p.NSlots()
		for i := uint16(0); i < n; i++ {
			data, ok := p.GetSlot(i)
			if !ok {
				continue
			}
			if !yield(i, data) {
				return
			}
		}
	}
}

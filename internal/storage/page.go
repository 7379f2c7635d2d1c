package storage

import (
	"github.com/pageengine/pageengine/internal/alias/bx"
)

// Page header field offsets, within the first HeaderSize bytes.
const (
	offPageID      = 0
	offPageType    = 4
	offReserved    = 5
	offSlotCount   = 6
	offFreeStart   = 8
	offFreeEnd     = 10
	offNextPageID  = 12
)

// Page is the in-frame interpreter of a page_size byte buffer: header,
// slot directory growing up from offset 16, and a tuple heap growing down
// from the end of the buffer.
type Page struct {
	Buf []byte
}

// NewPageView wraps an existing buffer (exactly page_size bytes) without
// copying it.
func NewPageView(buf []byte) *Page {
	return &Page{Buf: buf}
}

// Init writes a fresh header and zeroes the rest of the buffer.
func (p *Page) Init(id PageID, pageType PageType) {
	clear(p.Buf)
	bx.PutU32At(p.Buf, offPageID, uint32(id))
	p.Buf[offPageType] = byte(pageType)
	p.setSlotCount(0)
	p.setFreeStart(HeaderSize)
	p.setFreeEnd(uint16(len(p.Buf)))
	p.SetNext(NonePage)
}

func (p *Page) PageID() PageID     { return PageID(bx.U32At(p.Buf, offPageID)) }
func (p *Page) PageType() PageType { return PageType(p.Buf[offPageType]) }
func (p *Page) SlotCount() uint16  { return bx.U16At(p.Buf, offSlotCount) }
func (p *Page) FreeStart() uint16  { return bx.U16At(p.Buf, offFreeStart) }
func (p *Page) FreeEnd() uint16    { return bx.U16At(p.Buf, offFreeEnd) }
func (p *Page) GetNext() PageID    { return PageID(bx.U32At(p.Buf, offNextPageID)) }

func (p *Page) SetNext(id PageID) { bx.PutU32At(p.Buf, offNextPageID, uint32(id)) }

func (p *Page) setSlotCount(v uint16) { bx.PutU16At(p.Buf, offSlotCount, v) }
func (p *Page) setFreeStart(v uint16) { bx.PutU16At(p.Buf, offFreeStart, v) }
func (p *Page) setFreeEnd(v uint16)   { bx.PutU16At(p.Buf, offFreeEnd, v) }

// FreeSpace is free_end - free_start: the room available for new tuple
// bytes when reusing an existing slot directory entry.
func (p *Page) FreeSpace() uint16 {
	return p.FreeEnd() - p.FreeStart()
}

func (p *Page) slotOffset(idx uint16) int {
	return HeaderSize + int(idx)*SlotSize
}

func (p *Page) getSlot(idx uint16) (offset, length uint16) {
	so := p.slotOffset(idx)
	return bx.U16At(p.Buf, so), bx.U16At(p.Buf, so+2)
}

// Slot returns the raw (offset, length) of a slot directory entry without
// checking liveness; length == 0 means tombstoned. Used by the snapshot
// surface, which projects the directory as-is.
func (p *Page) Slot(idx uint16) (offset, length uint16) {
	return p.getSlot(idx)
}

func (p *Page) putSlot(idx, offset, length uint16) {
	so := p.slotOffset(idx)
	bx.PutU16At(p.Buf, so, offset)
	bx.PutU16At(p.Buf, so+2, length)
}

// Insert appends tuple bytes, always allocating a fresh slot directory
// entry (tombstones are never reused, keeping RowIds stable).
func (p *Page) Insert(tuple []byte) (uint16, error) {
	need := len(tuple)
	if int(p.FreeEnd())-int(p.FreeStart()) < need+SlotSize {
		return 0, ErrNoSpace
	}
	newEnd := p.FreeEnd() - uint16(need)
	copy(p.Buf[newEnd:p.FreeEnd()], tuple)

	idx := p.SlotCount()
	p.putSlot(idx, newEnd, uint16(need))
	p.setFreeStart(p.FreeStart() + SlotSize)
	p.setFreeEnd(newEnd)
	p.setSlotCount(idx + 1)
	return idx, nil
}

// Read returns a view of the tuple payload for a live slot.
func (p *Page) Read(idx uint16) ([]byte, error) {
	if idx >= p.SlotCount() {
		return nil, ErrBadSlot
	}
	offset, length := p.getSlot(idx)
	if length == 0 {
		return nil, ErrTombstoned
	}
	end := offset + length
	if end > uint16(len(p.Buf)) || offset < p.FreeEnd() {
		return nil, ErrBadSlot
	}
	return p.Buf[offset:end], nil
}

// Delete tombstones a live slot. Returns ErrBadSlot if the slot does not
// exist and false if it was already tombstoned; the tuple bytes are never
// reclaimed.
func (p *Page) Delete(idx uint16) (bool, error) {
	if idx >= p.SlotCount() {
		return false, ErrBadSlot
	}
	offset, length := p.getSlot(idx)
	if length == 0 {
		return false, nil
	}
	p.putSlot(idx, offset, 0)
	return true, nil
}

package storage

import (
	"fmt"

	"github.com/pageengine/pageengine/internal/alias/bx"
)

// Overflow page layout, starting right after the 16-byte page header:
// u32 total_len, u32 chunk_len, chunk_len payload bytes. next_page_id in
// the shared header links to the next chunk.
const (
	ovfOffTotalLen = HeaderSize
	ovfOffChunkLen = HeaderSize + 4
	ovfOffPayload  = HeaderSize + overflowHeaderSize
)

// OverflowRef names the head of a chain written by OverflowManager.Write.
type OverflowRef struct {
	FirstPageID PageID
	TotalLen    uint32
}

// OverflowManager chunks values too large for a data page across a linked
// list of Overflow-typed pages, allocated and freed directly against the
// disk manager.
type OverflowManager struct {
	disk *Disk
}

func NewOverflowManager(disk *Disk) *OverflowManager {
	return &OverflowManager{disk: disk}
}

// chunkCapacity is the number of payload bytes one overflow page can hold.
func (om *OverflowManager) chunkCapacity() int {
	return int(om.disk.PageSize()) - ovfOffPayload
}

// Write splits value across a freshly allocated chain of Overflow pages
// and returns a reference to the chain head. If allocation fails partway,
// every page allocated for this attempt is freed before returning.
func (om *OverflowManager) Write(value []byte) (OverflowRef, error) {
	capacity := om.chunkCapacity()
	totalLen := len(value)

	var pageIDs []PageID
	rollback := func() {
		for _, id := range pageIDs {
			om.disk.Free(id)
		}
	}

	offset := 0
	for {
		chunkLen := totalLen - offset
		if chunkLen > capacity {
			chunkLen = capacity
		}

		id, err := om.disk.Allocate(Overflow)
		if err != nil {
			rollback()
			return OverflowRef{}, fmt.Errorf("storage: overflow write: %w", err)
		}
		pageIDs = append(pageIDs, id)

		buf := make([]byte, om.disk.PageSize())
		page := NewPageView(buf)
		page.Init(id, Overflow)
		bx.PutU32At(buf, ovfOffTotalLen, uint32(totalLen))
		bx.PutU32At(buf, ovfOffChunkLen, uint32(chunkLen))
		copy(buf[ovfOffPayload:ovfOffPayload+chunkLen], value[offset:offset+chunkLen])

		if err := om.disk.Write(id, buf); err != nil {
			rollback()
			return OverflowRef{}, fmt.Errorf("storage: overflow write: %w", err)
		}

		offset += chunkLen
		if offset >= totalLen {
			break
		}
	}

	// Link the chain forward now that every page is allocated.
	for i := 0; i+1 < len(pageIDs); i++ {
		buf := make([]byte, om.disk.PageSize())
		if err := om.disk.Read(pageIDs[i], buf); err != nil {
			rollback()
			return OverflowRef{}, fmt.Errorf("storage: overflow write: %w", err)
		}
		page := NewPageView(buf)
		page.SetNext(pageIDs[i+1])
		if err := om.disk.Write(pageIDs[i], buf); err != nil {
			rollback()
			return OverflowRef{}, fmt.Errorf("storage: overflow write: %w", err)
		}
	}

	return OverflowRef{FirstPageID: pageIDs[0], TotalLen: uint32(totalLen)}, nil
}

// Read walks the chain starting at ref.FirstPageID and reassembles the
// original value.
func (om *OverflowManager) Read(ref OverflowRef) ([]byte, error) {
	out := make([]byte, 0, ref.TotalLen)
	id := ref.FirstPageID
	buf := make([]byte, om.disk.PageSize())

	for i := uint32(0); id != NonePage; i++ {
		if i > om.disk.Capacity() {
			return nil, fmt.Errorf("storage: overflow read: chain exceeds disk capacity")
		}
		if err := om.disk.Read(id, buf); err != nil {
			return nil, fmt.Errorf("storage: overflow read: %w", err)
		}
		chunkLen := bx.U32At(buf, ovfOffChunkLen)
		out = append(out, buf[ovfOffPayload:ovfOffPayload+int(chunkLen)]...)

		page := NewPageView(buf)
		id = page.GetNext()
	}
	return out, nil
}

// Free returns every page in the chain to the free list.
func (om *OverflowManager) Free(firstPageID PageID) error {
	id := firstPageID
	buf := make([]byte, om.disk.PageSize())

	for i := uint32(0); id != NonePage; i++ {
		if i > om.disk.Capacity() {
			return fmt.Errorf("storage: overflow free: chain exceeds disk capacity")
		}
		if err := om.disk.Read(id, buf); err != nil {
			return fmt.Errorf("storage: overflow free: %w", err)
		}
		page := NewPageView(buf)
		next := page.GetNext()
		om.disk.Free(id)
		id = next
	}
	return nil
}

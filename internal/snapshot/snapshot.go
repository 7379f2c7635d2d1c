// Package snapshot implements the read-only binary projections of engine
// state (C6): buffer pool, disk, page, and table snapshots, each a stable
// little-endian byte layout safe to hand to a display host.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/pageengine/pageengine/internal/bufferpool"
	"github.com/pageengine/pageengine/internal/storage"
	"github.com/pageengine/pageengine/internal/table"
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// readPageRaw copies a page's current bytes without pinning, touching the
// LRU list, or bumping hit/miss counters: from the resident frame buffer
// if cached, from the disk arena otherwise.
func readPageRaw(pool *bufferpool.Pool, id storage.PageID) ([]byte, error) {
	if idx, ok := pool.PageTable()[id]; ok {
		frame := pool.Frames()[idx]
		buf := make([]byte, len(frame.Buf))
		copy(buf, frame.Buf)
		return buf, nil
	}
	buf := make([]byte, pool.Disk().PageSize())
	if err := pool.Disk().Read(id, buf); err != nil {
		return nil, fmt.Errorf("snapshot: read page %d: %w", id, err)
	}
	return buf, nil
}

func walkChain(pool *bufferpool.Pool, first storage.PageID) ([]storage.PageID, error) {
	var ids []storage.PageID
	id := first
	for i := uint32(0); id != storage.NonePage; i++ {
		if i > pool.Disk().Capacity() {
			return nil, fmt.Errorf("snapshot: page chain exceeds disk capacity")
		}
		ids = append(ids, id)
		raw, err := readPageRaw(pool, id)
		if err != nil {
			return nil, err
		}
		id = storage.NewPageView(raw).GetNext()
	}
	return ids, nil
}

// BufferPool projects C3's frame array, page table, LRU order, and
// counters.
func BufferPool(pool *bufferpool.Pool) []byte {
	disk := pool.Disk()
	frames := pool.Frames()

	buf := make([]byte, 0, 64+len(frames)*10)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(frames)))
	buf = binary.LittleEndian.AppendUint32(buf, disk.PageSize())

	for _, f := range frames {
		pageID := storage.NonePage
		if f.Occupied {
			pageID = f.PageID
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(pageID))
		buf = binary.LittleEndian.AppendUint32(buf, f.PinCount)
		buf = append(buf, boolByte(f.Dirty))
		buf = append(buf, boolByte(f.Occupied))
	}

	pageTbl := pool.PageTable()
	ids := make([]storage.PageID, 0, len(pageTbl))
	for id := range pageTbl {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(pageTbl[id]))
	}

	// The LRU list is recorded by page id internally, but the wire format
	// names frame ids; translate through the page table before emitting.
	lru := pool.LRUOrder()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(lru)))
	for _, id := range lru {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(pageTbl[id]))
	}

	buf = binary.LittleEndian.AppendUint64(buf, pool.HitCount())
	buf = binary.LittleEndian.AppendUint64(buf, pool.MissCount())
	buf = binary.LittleEndian.AppendUint64(buf, pool.DiskReadCount())
	buf = binary.LittleEndian.AppendUint64(buf, pool.DiskWriteCount())
	buf = binary.LittleEndian.AppendUint32(buf, disk.NumAllocated())
	buf = binary.LittleEndian.AppendUint32(buf, disk.Capacity())
	buf = binary.LittleEndian.AppendUint32(buf, 0) // no meaningful base pointer in an in-memory arena
	return buf
}

// Disk projects C1's per-page allocation table.
func Disk(disk *storage.Disk) []byte {
	buf := make([]byte, 0, 16+int(disk.Capacity())*2)
	buf = binary.LittleEndian.AppendUint32(buf, disk.Capacity())
	buf = binary.LittleEndian.AppendUint32(buf, disk.PageSize())
	buf = binary.LittleEndian.AppendUint32(buf, disk.NumAllocated())
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	for id := storage.PageID(0); uint32(id) < disk.Capacity(); id++ {
		buf = append(buf, boolByte(disk.IsAllocated(id)), byte(disk.PageType(id)))
	}
	return buf
}

// Page projects one page's header, slot directory, and raw bytes,
// reading it through the non-recording path.
func Page(pool *bufferpool.Pool, id storage.PageID) ([]byte, error) {
	raw, err := readPageRaw(pool, id)
	if err != nil {
		return nil, err
	}
	p := storage.NewPageView(raw)

	buf := make([]byte, 0, 32+len(raw)+int(p.SlotCount())*4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(raw)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.PageID()))
	buf = append(buf, byte(p.PageType()))
	buf = binary.LittleEndian.AppendUint16(buf, p.SlotCount())
	buf = binary.LittleEndian.AppendUint16(buf, p.FreeStart())
	buf = binary.LittleEndian.AppendUint16(buf, p.FreeEnd())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.GetNext()))
	buf = binary.LittleEndian.AppendUint16(buf, p.FreeSpace())
	buf = binary.LittleEndian.AppendUint16(buf, p.SlotCount())

	for i := uint16(0); i < p.SlotCount(); i++ {
		offset, length := p.Slot(i)
		buf = binary.LittleEndian.AppendUint16(buf, offset)
		buf = binary.LittleEndian.AppendUint16(buf, length)
	}
	buf = append(buf, raw...)
	return buf, nil
}

// Table projects a table's schema and page chain.
func Table(mgr *table.Manager, name string) ([]byte, error) {
	info, err := mgr.Info(name)
	if err != nil {
		return nil, err
	}

	nameBytes := []byte(info.Name)
	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(nameBytes)))
	buf = append(buf, nameBytes...)
	buf = binary.LittleEndian.AppendUint32(buf, info.RowCount)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(info.FirstPageID))

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(info.Schema.Columns)))
	for _, c := range info.Schema.Columns {
		cn := []byte(c.Name)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(cn)))
		buf = append(buf, cn...)
		buf = append(buf, c.Type.TypeTag())
		buf = append(buf, boolByte(c.Nullable))
		buf = binary.LittleEndian.AppendUint16(buf, c.MaxLen)
	}

	pageIDs, err := walkChain(mgr.Pool(), info.FirstPageID)
	if err != nil {
		return nil, err
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pageIDs)))
	for _, id := range pageIDs {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	}
	return buf, nil
}

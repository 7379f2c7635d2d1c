package storage

import (
	"fmt"
	"log/slog"
)

// pageMeta is the per-page bookkeeping the disk manager keeps alongside the
// raw bytes: whether the slot is allocated and what it currently holds.
type pageMeta struct {
	allocated bool
	pageType  PageType
}

// Disk is the in-memory backing region for the engine: disk_capacity pages
// of page_size bytes each, addressed arithmetically. There is no file I/O;
// the region (and everything in it) disappears with the Disk value.
type Disk struct {
	pageSize uint32
	capacity uint32

	arena []byte
	meta  []pageMeta

	numAllocated uint32
}

// NewDisk allocates the backing arena for capacity pages of pageSize bytes.
func NewDisk(pageSize, capacity uint32) *Disk {
	return &Disk{
		pageSize: pageSize,
		capacity: capacity,
		arena:    make([]byte, uint64(pageSize)*uint64(capacity)),
		meta:     make([]pageMeta, capacity),
	}
}

func (d *Disk) PageSize() uint32 { return d.pageSize }
func (d *Disk) Capacity() uint32 { return d.capacity }
func (d *Disk) NumAllocated() uint32 { return d.numAllocated }

// Allocate returns the smallest-id free page, marks it allocated with the
// given type, and zeroes its bytes.
func (d *Disk) Allocate(pageType PageType) (PageID, error) {
	for i := range d.meta {
		if !d.meta[i].allocated {
			d.meta[i] = pageMeta{allocated: true, pageType: pageType}
			d.numAllocated++
			off := d.offset(PageID(i))
			clear(d.arena[off : off+uint64(d.pageSize)])
			slog.Debug("storage: allocate", "page_id", i, "page_type", pageType)
			return PageID(i), nil
		}
	}
	return NonePage, ErrDiskFull
}

// Free marks a page unallocated. Fails silently on already-free or
// out-of-range ids so that drop_table can be idempotent.
func (d *Disk) Free(id PageID) {
	if uint32(id) >= d.capacity || !d.meta[id].allocated {
		return
	}
	d.meta[id] = pageMeta{}
	d.numAllocated--
	slog.Debug("storage: free", "page_id", id)
}

// Read copies page_size bytes into buf.
func (d *Disk) Read(id PageID, buf []byte) error {
	if !d.IsAllocated(id) {
		return fmt.Errorf("storage: read page %d: %w", id, ErrInvalidPage)
	}
	off := d.offset(id)
	copy(buf, d.arena[off:off+uint64(d.pageSize)])
	return nil
}

// Write copies page_size bytes from buf into the page's backing region.
func (d *Disk) Write(id PageID, buf []byte) error {
	if !d.IsAllocated(id) {
		return fmt.Errorf("storage: write page %d: %w", id, ErrInvalidPage)
	}
	off := d.offset(id)
	copy(d.arena[off:off+uint64(d.pageSize)], buf)
	return nil
}

func (d *Disk) IsAllocated(id PageID) bool {
	return uint32(id) < d.capacity && d.meta[id].allocated
}

// PageType reports the logical type of a page; Free for unallocated ids.
func (d *Disk) PageType(id PageID) PageType {
	if uint32(id) >= d.capacity {
		return Free
	}
	return d.meta[id].pageType
}

func (d *Disk) offset(id PageID) uint64 {
	return uint64(id) * uint64(d.pageSize)
}

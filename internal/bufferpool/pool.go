// Package bufferpool implements the fixed-size buffer pool (C3): a bounded
// frame array, a page table, pin counts, dirty bits, and strict LRU
// eviction of unpinned frames.
package bufferpool

import (
	"fmt"
	"log/slog"

	"github.com/pageengine/pageengine/internal/storage"
)

const logPrefix = "bufferpool: "

// Frame is one cell of the pool: either empty or holding exactly one page.
type Frame struct {
	PageID   storage.PageID
	Buf      []byte
	PinCount uint32
	Dirty    bool
	Occupied bool
}

// FramePin is a scoped borrow of a frame's buffer. Callers MUST call
// Pool.Unpin on every exit path once they are done with Page.
type FramePin struct {
	frameIdx int
	Page     *storage.Page
}

// Pool owns pool_size frames backed by a single Disk and evicts strictly
// by least-recently-unpinned order.
type Pool struct {
	disk     *storage.Disk
	frames   []*Frame
	pageTbl  map[storage.PageID]int
	replacer *Replacer

	hitCount      uint64
	missCount     uint64
	diskReadCount uint64
	diskWriteCount uint64
}

func NewPool(disk *storage.Disk, poolSize int) *Pool {
	frames := make([]*Frame, poolSize)
	for i := range frames {
		frames[i] = &Frame{Buf: make([]byte, disk.PageSize())}
	}
	return &Pool{
		disk:     disk,
		frames:   frames,
		pageTbl:  make(map[storage.PageID]int),
		replacer: NewReplacer(),
	}
}

func (p *Pool) PoolSize() int          { return len(p.frames) }
func (p *Pool) HitCount() uint64       { return p.hitCount }
func (p *Pool) MissCount() uint64      { return p.missCount }
func (p *Pool) DiskReadCount() uint64  { return p.diskReadCount }
func (p *Pool) DiskWriteCount() uint64 { return p.diskWriteCount }

// Fetch returns a pinned handle to the frame holding page_id, loading it
// from disk and possibly evicting an unpinned victim if necessary.
func (p *Pool) Fetch(id storage.PageID) (*FramePin, error) {
	if idx, ok := p.pageTbl[id]; ok {
		p.hitCount++
		f := p.frames[idx]
		if f.PinCount == 0 {
			p.replacer.Pin(id)
		}
		f.PinCount++
		slog.Debug(logPrefix+"fetch hit", "page_id", id, "pin", f.PinCount)
		return &FramePin{frameIdx: idx, Page: storage.NewPageView(f.Buf)}, nil
	}

	p.missCount++

	idx, ok := p.freeFrameIndex()
	if !ok {
		victimID, ok := p.replacer.Victim()
		if !ok {
			return nil, storage.ErrPoolExhausted
		}
		vIdx := p.pageTbl[victimID]
		if err := p.evictLocked(vIdx, victimID); err != nil {
			return nil, err
		}
		idx = vIdx
	}

	f := p.frames[idx]
	if err := p.disk.Read(id, f.Buf); err != nil {
		return nil, fmt.Errorf("bufferpool: fetch page %d: %w", id, err)
	}
	p.diskReadCount++

	f.PageID = id
	f.Occupied = true
	f.Dirty = false
	f.PinCount = 1
	p.pageTbl[id] = idx

	slog.Debug(logPrefix+"fetch miss loaded", "page_id", id, "frame", idx)
	return &FramePin{frameIdx: idx, Page: storage.NewPageView(f.Buf)}, nil
}

func (p *Pool) freeFrameIndex() (int, bool) {
	for i, f := range p.frames {
		if !f.Occupied {
			return i, true
		}
	}
	return 0, false
}

// evictLocked writes the victim frame's buffer to disk if dirty and
// removes it from the page table, leaving the frame ready for reuse.
func (p *Pool) evictLocked(idx int, victimID storage.PageID) error {
	f := p.frames[idx]
	if f.Dirty {
		if err := p.disk.Write(victimID, f.Buf); err != nil {
			return fmt.Errorf("bufferpool: evict page %d: %w", victimID, err)
		}
		p.diskWriteCount++
		f.Dirty = false
	}
	delete(p.pageTbl, victimID)
	f.Occupied = false
	slog.Debug(logPrefix+"evicted", "page_id", victimID, "frame", idx)
	return nil
}

// Unpin decrements the pin count of the frame pin holds and ORs dirty
// into the frame's dirty bit. On transition to zero it becomes an
// eviction candidate again.
func (p *Pool) Unpin(pin *FramePin, dirty bool) {
	f := p.frames[pin.frameIdx]
	if dirty {
		f.Dirty = true
	}
	if f.PinCount > 0 {
		f.PinCount--
	}
	if f.PinCount == 0 {
		p.replacer.Unpin(f.PageID)
	}
	slog.Debug(logPrefix+"unpin", "page_id", f.PageID, "pin", f.PinCount, "dirty", f.Dirty)
}

// NewPage allocates a fresh page via the disk manager, fetches it, and
// initializes its header, returning it pinned.
func (p *Pool) NewPage(pageType storage.PageType) (storage.PageID, *FramePin, error) {
	id, err := p.disk.Allocate(pageType)
	if err != nil {
		return storage.NonePage, nil, err
	}
	pin, err := p.Fetch(id)
	if err != nil {
		p.disk.Free(id)
		return storage.NonePage, nil, err
	}
	pin.Page.Init(id, pageType)
	p.frames[pin.frameIdx].Dirty = true
	return id, pin, nil
}

// FlushPage writes the page to disk if it is resident and dirty. Returns
// whether the page was resident.
func (p *Pool) FlushPage(id storage.PageID) (bool, error) {
	idx, ok := p.pageTbl[id]
	if !ok {
		return false, nil
	}
	f := p.frames[idx]
	if f.Dirty {
		if err := p.disk.Write(id, f.Buf); err != nil {
			return true, fmt.Errorf("bufferpool: flush page %d: %w", id, err)
		}
		p.diskWriteCount++
		f.Dirty = false
	}
	return true, nil
}

// FlushAll flushes every dirty resident frame.
func (p *Pool) FlushAll() error {
	for id := range p.pageTbl {
		if _, err := p.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// DropPage evicts a resident, unpinned page without writing it back and
// returns it to the disk's free list. Fails if the page is pinned.
func (p *Pool) DropPage(id storage.PageID) error {
	idx, ok := p.pageTbl[id]
	if !ok {
		p.disk.Free(id)
		return nil
	}
	f := p.frames[idx]
	if f.PinCount > 0 {
		return storage.ErrPagePinned
	}
	p.replacer.Remove(id)
	delete(p.pageTbl, id)
	f.Occupied = false
	f.Dirty = false
	p.disk.Free(id)
	slog.Debug(logPrefix+"drop_page", "page_id", id)
	return nil
}

// Frames exposes the raw frame slice for the snapshot surface. Callers
// MUST NOT mutate pin counts or dirty bits through it.
func (p *Pool) Frames() []*Frame { return p.frames }

// PageTable exposes the page-id to frame-index mapping for the snapshot
// surface.
func (p *Pool) PageTable() map[storage.PageID]int { return p.pageTbl }

// LRUOrder exposes the replacer's current ordering for the snapshot
// surface, least to most recently used.
func (p *Pool) LRUOrder() []storage.PageID { return p.replacer.IDs() }

// Disk exposes the backing disk manager, used by the snapshot surface and
// the table manager's overflow handling.
func (p *Pool) Disk() *storage.Disk { return p.disk }

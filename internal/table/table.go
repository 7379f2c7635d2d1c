// Package table implements the table manager (C5): a catalog of named
// tables, each backed by a chain of data pages, dispatching inserts to the
// chain and forwarding oversized tuples to overflow chains.
package table

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pageengine/pageengine/internal/alias/bx"
	"github.com/pageengine/pageengine/internal/bufferpool"
	"github.com/pageengine/pageengine/internal/record"
	"github.com/pageengine/pageengine/internal/storage"
)

// forwardMarker prefixes the forwarding record: a data-page slot that
// names the head of an overflow chain instead of holding the tuple
// inline.
const forwardMarker = 0xFF

const forwardingRecordSize = 1 + 4 + 2 // marker + head page id + total length

// entry is the catalog's per-table bookkeeping.
type entry struct {
	name        string
	schema      record.Schema
	firstPageID storage.PageID
	rowCount    uint32
}

// Info is the read-only view of a table's catalog entry, exposed to
// callers that only need metadata (the engine facade, the snapshot
// surface).
type Info struct {
	Name        string
	Schema      record.Schema
	FirstPageID storage.PageID
	RowCount    uint32
}

// ScanRow is one result of Scan. Err is set (and Values left nil) when a
// row's bytes could not be decoded; a decoding failure is attached to its
// row rather than aborting the whole scan.
type ScanRow struct {
	RowID  RowID
	Values []any
	Err    error
}

// Manager is the table catalog and the entry point for row operations.
type Manager struct {
	pool              *bufferpool.Pool
	overflow          *storage.OverflowManager
	overflowThreshold int

	tables map[string]*entry
	order  []string
}

func NewManager(pool *bufferpool.Pool, overflowThreshold int) *Manager {
	return &Manager{
		pool:              pool,
		overflow:          storage.NewOverflowManager(pool.Disk()),
		overflowThreshold: overflowThreshold,
		tables:            make(map[string]*entry),
	}
}

// Pool exposes the backing buffer pool, used by the snapshot surface.
func (m *Manager) Pool() *bufferpool.Pool { return m.pool }

func (m *Manager) lookup(name string) (*entry, error) {
	e, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("table: %q: %w", name, storage.ErrUnknownTable)
	}
	return e, nil
}

// headerOverhead is the minimum per-row bookkeeping a page carries beyond
// tuple bytes: the page header plus one slot directory entry. Schema
// validation bounds VarChar/Blob max_len against page_size - this value.
func (m *Manager) headerOverhead() int {
	return storage.HeaderSize + storage.SlotSize
}

// CreateTable validates the schema, allocates the table's head data page,
// and records it in the catalog.
func (m *Manager) CreateTable(name string, schema record.Schema) error {
	if _, exists := m.tables[name]; exists {
		return fmt.Errorf("table: create %q: %w", name, storage.ErrAlreadyExists)
	}
	if err := schema.Validate(int(m.pool.Disk().PageSize()) - m.headerOverhead()); err != nil {
		return err
	}

	id, pin, err := m.pool.NewPage(storage.Data)
	if err != nil {
		return fmt.Errorf("table: create %q: %w", name, err)
	}
	m.pool.Unpin(pin, true)

	m.tables[name] = &entry{name: name, schema: schema, firstPageID: id}
	m.order = append(m.order, name)
	slog.Debug("table: created", "name", name, "first_page_id", id)
	return nil
}

// Insert encodes values, spills to an overflow chain if they exceed the
// configured threshold, and places the resulting tuple in the first
// chain page with enough free space, extending the chain if needed.
func (m *Manager) Insert(name string, values []any) (RowID, error) {
	e, err := m.lookup(name)
	if err != nil {
		return RowID{}, err
	}

	encoded, err := record.Encode(e.schema, values)
	if err != nil {
		return RowID{}, err
	}

	tuple := encoded
	var overflowHead storage.PageID = storage.NonePage
	if len(encoded) > m.overflowThreshold {
		ref, err := m.overflow.Write(encoded)
		if err != nil {
			return RowID{}, fmt.Errorf("table: insert into %q: %w", name, err)
		}
		overflowHead = ref.FirstPageID
		tuple = encodeForwardingRecord(ref)
	}

	rid, err := m.placeTuple(e, tuple)
	if err != nil {
		if overflowHead != storage.NonePage {
			_ = m.overflow.Free(overflowHead)
		}
		return RowID{}, fmt.Errorf("table: insert into %q: %w", name, err)
	}
	e.rowCount++
	return rid, nil
}

// placeTuple walks the chain from first_page_id in order, using the first
// page with enough free space; if none fits, it allocates a new tail page
// and splices it in.
func (m *Manager) placeTuple(e *entry, tuple []byte) (RowID, error) {
	pageID := e.firstPageID
	needed := uint16(len(tuple) + storage.SlotSize)

	for i := uint32(0); i <= m.pool.Disk().Capacity(); i++ {
		pin, err := m.pool.Fetch(pageID)
		if err != nil {
			return RowID{}, err
		}

		if pin.Page.FreeSpace() >= needed {
			slot, err := pin.Page.Insert(tuple)
			if err != nil {
				m.pool.Unpin(pin, false)
				return RowID{}, err
			}
			m.pool.Unpin(pin, true)
			return RowID{PageID: pageID, SlotIndex: slot}, nil
		}

		if next := pin.Page.GetNext(); next != storage.NonePage {
			m.pool.Unpin(pin, false)
			pageID = next
			continue
		}

		newID, newPin, err := m.pool.NewPage(storage.Data)
		if err != nil {
			m.pool.Unpin(pin, false)
			return RowID{}, err
		}
		pin.Page.SetNext(newID)
		m.pool.Unpin(pin, true)

		slot, err := newPin.Page.Insert(tuple)
		if err != nil {
			m.pool.Unpin(newPin, false)
			return RowID{}, err
		}
		m.pool.Unpin(newPin, true)
		return RowID{PageID: newID, SlotIndex: slot}, nil
	}
	return RowID{}, fmt.Errorf("table: page chain exceeds disk capacity: %w", storage.ErrDiskFull)
}

// Get fetches the page holding rid, reads its slot, and reassembles the
// value from an overflow chain if the slot holds a forwarding record.
func (m *Manager) Get(name string, rid RowID) ([]any, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	pin, err := m.pool.Fetch(rid.PageID)
	if err != nil {
		return nil, fmt.Errorf("table: get: page %d: %w", rid.PageID, storage.ErrBadPage)
	}
	raw, err := pin.Page.Read(rid.SlotIndex)
	if err != nil {
		m.pool.Unpin(pin, false)
		return nil, err
	}
	cp := append([]byte(nil), raw...)
	m.pool.Unpin(pin, false)

	if isForwardingRecord(cp) {
		full, err := m.overflow.Read(decodeForwardingRecord(cp))
		if err != nil {
			return nil, fmt.Errorf("table: get: %w", err)
		}
		return record.Decode(e.schema, full)
	}
	return record.Decode(e.schema, cp)
}

// Delete tombstones rid's slot, freeing its overflow chain if it forwarded
// and decrementing row_count. Returns whether a live slot was transitioned.
func (m *Manager) Delete(name string, rid RowID) (bool, error) {
	e, err := m.lookup(name)
	if err != nil {
		return false, err
	}

	pin, err := m.pool.Fetch(rid.PageID)
	if err != nil {
		return false, fmt.Errorf("table: delete: page %d: %w", rid.PageID, storage.ErrBadPage)
	}

	raw, readErr := pin.Page.Read(rid.SlotIndex)
	var forwardHead storage.PageID = storage.NonePage
	if readErr == nil && isForwardingRecord(raw) {
		forwardHead = decodeForwardingRecord(raw).FirstPageID
	}

	transitioned, err := pin.Page.Delete(rid.SlotIndex)
	if err != nil {
		m.pool.Unpin(pin, false)
		return false, err
	}
	m.pool.Unpin(pin, transitioned)

	if transitioned {
		if forwardHead != storage.NonePage {
			if err := m.overflow.Free(forwardHead); err != nil {
				slog.Warn("table: overflow free failed after delete", "table", name, "row_id", rid, "err", err)
			}
		}
		e.rowCount--
	}
	return transitioned, nil
}

// Scan walks the page chain in order, emitting every live slot's row in
// page-chain then slot-index order. It pins exactly one data page at a
// time.
func (m *Manager) Scan(name string) ([]ScanRow, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	var out []ScanRow
	pageID := e.firstPageID
	for pageID != storage.NonePage {
		pin, err := m.pool.Fetch(pageID)
		if err != nil {
			return nil, err
		}
		slotCount := pin.Page.SlotCount()
		next := pin.Page.GetNext()

		for slot := uint16(0); slot < slotCount; slot++ {
			raw, err := pin.Page.Read(slot)
			if errors.Is(err, storage.ErrTombstoned) {
				continue
			}
			rid := RowID{PageID: pageID, SlotIndex: slot}
			if err != nil {
				out = append(out, ScanRow{RowID: rid, Err: err})
				continue
			}
			cp := append([]byte(nil), raw...)
			out = append(out, m.decodeScanRow(e, rid, cp))
		}
		m.pool.Unpin(pin, false)
		pageID = next
	}
	return out, nil
}

func (m *Manager) decodeScanRow(e *entry, rid RowID, raw []byte) ScanRow {
	if isForwardingRecord(raw) {
		full, err := m.overflow.Read(decodeForwardingRecord(raw))
		if err != nil {
			return ScanRow{RowID: rid, Err: err}
		}
		values, err := record.Decode(e.schema, full)
		if err != nil {
			return ScanRow{RowID: rid, Err: err}
		}
		return ScanRow{RowID: rid, Values: values}
	}
	values, err := record.Decode(e.schema, raw)
	if err != nil {
		return ScanRow{RowID: rid, Err: err}
	}
	return ScanRow{RowID: rid, Values: values}
}

// DropTable frees every page the table owns (overflow chains first, then
// data pages) and removes it from the catalog. Idempotent for unknown
// names.
func (m *Manager) DropTable(name string) bool {
	e, ok := m.tables[name]
	if !ok {
		return false
	}

	pageID := e.firstPageID
	for pageID != storage.NonePage {
		pin, err := m.pool.Fetch(pageID)
		if err != nil {
			break
		}
		slotCount := pin.Page.SlotCount()
		next := pin.Page.GetNext()
		for slot := uint16(0); slot < slotCount; slot++ {
			raw, err := pin.Page.Read(slot)
			if err == nil && isForwardingRecord(raw) {
				_ = m.overflow.Free(decodeForwardingRecord(raw).FirstPageID)
			}
		}
		m.pool.Unpin(pin, false)
		_ = m.pool.DropPage(pageID)
		pageID = next
	}

	delete(m.tables, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// ListTables returns table names in creation order.
func (m *Manager) ListTables() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Info returns the catalog entry for name.
func (m *Manager) Info(name string) (Info, error) {
	e, err := m.lookup(name)
	if err != nil {
		return Info{}, err
	}
	return Info{Name: e.name, Schema: e.schema, FirstPageID: e.firstPageID, RowCount: e.rowCount}, nil
}

func encodeForwardingRecord(ref storage.OverflowRef) []byte {
	buf := make([]byte, forwardingRecordSize)
	buf[0] = forwardMarker
	bx.PutU32At(buf, 1, uint32(ref.FirstPageID))
	bx.PutU16At(buf, 5, uint16(ref.TotalLen))
	return buf
}

func isForwardingRecord(raw []byte) bool {
	return len(raw) == forwardingRecordSize && raw[0] == forwardMarker
}

func decodeForwardingRecord(raw []byte) storage.OverflowRef {
	return storage.OverflowRef{
		FirstPageID: storage.PageID(bx.U32At(raw, 1)),
		TotalLen:    uint32(bx.U16At(raw, 5)),
	}
}

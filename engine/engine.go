// Package engine wires the disk manager, buffer pool, table manager, and
// snapshot surface behind the single in-process interface a host consumes:
// typed method calls plus read-only binary snapshots.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/pageengine/pageengine/internal/bufferpool"
	"github.com/pageengine/pageengine/internal/record"
	"github.com/pageengine/pageengine/internal/snapshot"
	"github.com/pageengine/pageengine/internal/storage"
	"github.com/pageengine/pageengine/internal/table"
)

// Config is the engine's immutable post-construction configuration.
type Config struct {
	PageSize          uint32
	PoolSize          uint32
	DiskCapacity      uint32
	OverflowThreshold uint32
}

// Validate checks the configuration before construction. PoolSize >
// DiskCapacity is permitted but degenerate, so it only warns.
func (c Config) Validate() error {
	if c.PageSize == 0 || c.PoolSize == 0 || c.DiskCapacity == 0 || c.OverflowThreshold == 0 {
		return fmt.Errorf("engine: config fields must be positive: %w", storage.ErrInvalidConfig)
	}
	if c.OverflowThreshold > c.PageSize {
		return fmt.Errorf("engine: overflow_threshold %d exceeds page_size %d: %w", c.OverflowThreshold, c.PageSize, storage.ErrInvalidConfig)
	}
	if c.PoolSize > c.DiskCapacity {
		slog.Warn("engine: pool_size exceeds disk_capacity, every page could be cached at once", "pool_size", c.PoolSize, "disk_capacity", c.DiskCapacity)
	}
	return nil
}

// Engine is the top-level facade over C1-C6.
type Engine struct {
	cfg    Config
	disk   *storage.Disk
	pool   *bufferpool.Pool
	tables *table.Manager
}

// New constructs an engine from cfg, allocating its frame buffers and disk
// arena once.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	disk := storage.NewDisk(cfg.PageSize, cfg.DiskCapacity)
	pool := bufferpool.NewPool(disk, int(cfg.PoolSize))
	tables := table.NewManager(pool, int(cfg.OverflowThreshold))
	return &Engine{cfg: cfg, disk: disk, pool: pool, tables: tables}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// CreateTable validates schema and allocates the table's head page.
func (e *Engine) CreateTable(name string, schema record.Schema) error {
	return e.tables.CreateTable(name, schema)
}

// Insert encodes values and places them in name's page chain, returning
// the new row's "p:s" text identity.
func (e *Engine) Insert(name string, values []any) (string, error) {
	rid, err := e.tables.Insert(name, values)
	if err != nil {
		return "", err
	}
	return rid.String(), nil
}

// Get decodes and returns the row named by rowID.
func (e *Engine) Get(name, rowID string) ([]any, error) {
	rid, err := table.ParseRowID(rowID)
	if err != nil {
		return nil, err
	}
	return e.tables.Get(name, rid)
}

// Delete tombstones rowID's slot and reports whether a live row was
// removed.
func (e *Engine) Delete(name, rowID string) (bool, error) {
	rid, err := table.ParseRowID(rowID)
	if err != nil {
		return false, err
	}
	return e.tables.Delete(name, rid)
}

// Scan returns every live row of name in page-chain, then slot-index
// order. Per-row decode failures are attached to that row rather than
// aborting the scan.
func (e *Engine) Scan(name string) ([]table.ScanRow, error) {
	return e.tables.Scan(name)
}

// DropTable frees every page the table owns and removes it from the
// catalog.
func (e *Engine) DropTable(name string) bool {
	return e.tables.DropTable(name)
}

// ListTables returns table names in creation order.
func (e *Engine) ListTables() []string {
	return e.tables.ListTables()
}

// Flush writes every dirty resident page to disk.
func (e *Engine) Flush() error {
	return e.pool.FlushAll()
}

// SnapshotBufferPool returns the C6 buffer-pool projection.
func (e *Engine) SnapshotBufferPool() []byte {
	return snapshot.BufferPool(e.pool)
}

// SnapshotDisk returns the C6 disk projection.
func (e *Engine) SnapshotDisk() []byte {
	return snapshot.Disk(e.disk)
}

// SnapshotPage returns the C6 projection of one page's header, slot
// directory, and raw bytes.
func (e *Engine) SnapshotPage(pageID uint32) ([]byte, error) {
	return snapshot.Page(e.pool, storage.PageID(pageID))
}

// SnapshotTable returns the C6 projection of a table's schema and page
// chain.
func (e *Engine) SnapshotTable(name string) ([]byte, error) {
	return snapshot.Table(e.tables, name)
}

// DebugPage returns a human-readable dump of one page's header, slot
// directory, and tuple previews, for diagnostics rather than display.
func (e *Engine) DebugPage(pageID uint32) (string, error) {
	pin, err := e.pool.Fetch(storage.PageID(pageID))
	if err != nil {
		return "", err
	}
	s := pin.Page.DebugString()
	e.pool.Unpin(pin, false)
	return s, nil
}

package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pageengine/pageengine/internal/record"
	"github.com/pageengine/pageengine/internal/storage"
)

func scenarioConfig() Config {
	return Config{PageSize: 128, PoolSize: 4, DiskCapacity: 16, OverflowThreshold: 64}
}

func usersSchema() record.Schema {
	return record.Schema{Columns: []record.Column{
		{Name: "id", Type: record.Int32, Nullable: false},
		{Name: "name", Type: record.VarChar, Nullable: false, MaxLen: 32},
	}}
}

// Scenario 1: basic lifecycle.
func TestScenarioBasicLifecycle(t *testing.T) {
	eng, err := New(scenarioConfig())
	require.NoError(t, err)

	require.NoError(t, eng.CreateTable("users", usersSchema()))

	rid, err := eng.Insert("users", []any{int32(1), "Alice"})
	require.NoError(t, err)
	require.Equal(t, "0:0", rid)

	values, err := eng.Get("users", rid)
	require.NoError(t, err)
	require.Equal(t, []any{int32(1), "Alice"}, values)

	rows, err := eng.Scan("users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "0:0", rows[0].RowID.String())

	require.True(t, eng.DropTable("users"))
	require.Empty(t, eng.ListTables())
	require.Equal(t, uint32(0), eng.disk.NumAllocated())
}

// Scenario 2: page roll-over across 20 rows.
func TestScenarioPageRollOver(t *testing.T) {
	eng, err := New(scenarioConfig())
	require.NoError(t, err)
	require.NoError(t, eng.CreateTable("users", usersSchema()))

	name32 := "012345678901234567890123456789AB"
	require.Len(t, name32, 32)
	for i := int32(0); i < 20; i++ {
		_, err := eng.Insert("users", []any{i, name32})
		require.NoError(t, err)
	}

	snap, err := eng.SnapshotTable("users")
	require.NoError(t, err)
	// name_len+"users"(5) + row_count(4) + first_page_id(4) + num_cols(2)
	// + col "id" (2+2+1+1+2) + col "name" (2+4+1+1+2) = page_count offset.
	const pageCountOffset = 2 + 5 + 4 + 4 + 2 + 8 + 10
	pageCount := uint32(snap[pageCountOffset]) | uint32(snap[pageCountOffset+1])<<8 |
		uint32(snap[pageCountOffset+2])<<16 | uint32(snap[pageCountOffset+3])<<24
	require.Equal(t, uint32(10), pageCount)

	info, err := eng.tables.Info("users")
	require.NoError(t, err)
	require.Equal(t, uint32(20), info.RowCount)

	rows, err := eng.Scan("users")
	require.NoError(t, err)
	require.Len(t, rows, 20)
	for i, r := range rows {
		require.NoError(t, r.Err)
		require.Equal(t, int32(i), r.Values[0])
	}
}

// Scenario 3: LRU eviction picks the least-recently-unpinned frame.
func TestScenarioEvictionLRU(t *testing.T) {
	eng, err := New(scenarioConfig())
	require.NoError(t, err)

	schema := record.Schema{Columns: []record.Column{{Name: "v", Type: record.Int32, Nullable: false}}}
	for _, name := range []string{"A", "B", "C", "D"} {
		require.NoError(t, eng.CreateTable(name, schema))
		_, err := eng.Insert(name, []any{int32(1)})
		require.NoError(t, err)
	}

	dInfo, err := eng.tables.Info("D")
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C", "D", "A", "B", "C"} {
		rid, err := eng.Insert(name, []any{int32(2)})
		require.NoError(t, err)
		_, err = eng.Get(name, rid)
		require.NoError(t, err)
	}

	writesBefore := eng.pool.DiskWriteCount()

	require.NoError(t, eng.CreateTable("E", schema))

	_, resident := eng.pool.PageTable()[dInfo.FirstPageID]
	require.False(t, resident, "D's page should have been evicted as least recently used")
	require.Equal(t, writesBefore+1, eng.pool.DiskWriteCount(), "D's dirty page must be written back exactly once on eviction")
}

// Scenario 4: overflow chain round trip and cleanup.
//
// The scenario's own arithmetic (a 2,000-byte blob needs 1 data page plus
// 20 overflow pages) does not fit the shared disk_capacity=16 used by the
// other scenarios, so this test widens disk_capacity enough to hold the
// chain while keeping page_size, pool_size, and overflow_threshold fixed.
func TestScenarioOverflowChain(t *testing.T) {
	cfg := scenarioConfig()
	cfg.DiskCapacity = 32
	eng, err := New(cfg)
	require.NoError(t, err)

	allocatedBefore := eng.disk.NumAllocated()

	schema := record.Schema{Columns: []record.Column{
		{Name: "data", Type: record.Blob, Nullable: false, MaxLen: 8192},
	}}
	require.NoError(t, eng.CreateTable("blobs", schema))

	blob := make([]byte, 2000)
	for i := range blob {
		blob[i] = byte(i)
	}

	rid, err := eng.Insert("blobs", []any{blob})
	require.NoError(t, err)
	require.Equal(t, "0:0", rid)

	chunkCap := 128 - 16 - 8
	wantOverflowPages := (len(blob) + chunkCap - 1) / chunkCap
	require.Equal(t, allocatedBefore+uint32(1+wantOverflowPages), eng.disk.NumAllocated())

	values, err := eng.Get("blobs", rid)
	require.NoError(t, err)
	require.Equal(t, blob, values[0])

	deleted, err := eng.Delete("blobs", rid)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, allocatedBefore+1, eng.disk.NumAllocated(), "dropping the row frees every overflow page but keeps the data page")
}

// Scenario 5: tombstones persist and do not reclaim page space.
func TestScenarioTombstonePersistence(t *testing.T) {
	eng, err := New(scenarioConfig())
	require.NoError(t, err)
	require.NoError(t, eng.CreateTable("users", usersSchema()))

	var ids []string
	for i := int32(0); i < 3; i++ {
		rid, err := eng.Insert("users", []any{i, "x"})
		require.NoError(t, err)
		ids = append(ids, rid)
	}

	pageBefore, err := eng.SnapshotPage(0)
	require.NoError(t, err)

	deleted, err := eng.Delete("users", ids[1])
	require.NoError(t, err)
	require.True(t, deleted)

	rows, err := eng.Scan("users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "0:0", rows[0].RowID.String())
	require.Equal(t, "0:2", rows[1].RowID.String())

	_, err = eng.Get("users", ids[1])
	require.True(t, errors.Is(err, storage.ErrTombstoned))

	pageAfter, err := eng.SnapshotPage(0)
	require.NoError(t, err)
	require.Equal(t, freeSpaceField(pageBefore), freeSpaceField(pageAfter), "tombstoning must not change free_space")
}

// freeSpaceField reads the u16 free_space field out of a Page snapshot.
// It follows page_size, page_id, page_type, slot_count, free_start,
// free_end, and next_page_id, the first seven fixed fields.
func freeSpaceField(snap []byte) uint16 {
	const freeSpaceOffset = 4 + 4 + 1 + 2 + 2 + 2 + 4
	return uint16(snap[freeSpaceOffset]) | uint16(snap[freeSpaceOffset+1])<<8
}

// Scenario 6: pool exhaustion when every frame is pinned.
func TestScenarioPoolExhaustion(t *testing.T) {
	eng, err := New(Config{PageSize: 128, PoolSize: 1, DiskCapacity: 16, OverflowThreshold: 64})
	require.NoError(t, err)
	require.NoError(t, eng.CreateTable("users", usersSchema()))

	pin, err := eng.pool.Fetch(0)
	require.NoError(t, err)

	allocatedBefore := eng.disk.NumAllocated()

	err = eng.CreateTable("others", usersSchema())
	require.True(t, errors.Is(err, storage.ErrPoolExhausted))
	require.Equal(t, allocatedBefore, eng.disk.NumAllocated(), "the page allocated for the failed fetch must be freed again")

	eng.pool.Unpin(pin, false)
}

// Sanity check that Info/Table wiring exposed to the snapshot surface
// matches what the table manager records, independent of the scenarios.
func TestEngineSnapshotTableRoundTrip(t *testing.T) {
	eng, err := New(scenarioConfig())
	require.NoError(t, err)
	require.NoError(t, eng.CreateTable("users", usersSchema()))
	_, err = eng.Insert("users", []any{int32(1), "Alice"})
	require.NoError(t, err)

	snap, err := eng.SnapshotTable("users")
	require.NoError(t, err)
	require.NotEmpty(t, snap)

	info, err := eng.tables.Info("users")
	require.NoError(t, err)
	nameLen := int(snap[0]) | int(snap[1])<<8
	require.Equal(t, info.Name, string(snap[2:2+nameLen]))
	off := 2 + nameLen
	rowCount := uint32(snap[off]) | uint32(snap[off+1])<<8 | uint32(snap[off+2])<<16 | uint32(snap[off+3])<<24
	require.Equal(t, info.RowCount, rowCount)
	off += 4
	firstPageID := uint32(snap[off]) | uint32(snap[off+1])<<8 | uint32(snap[off+2])<<16 | uint32(snap[off+3])<<24
	require.Equal(t, uint32(info.FirstPageID), firstPageID)

	_, err = eng.SnapshotTable("missing")
	require.True(t, errors.Is(err, storage.ErrUnknownTable))
}

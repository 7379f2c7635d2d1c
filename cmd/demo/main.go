// Command demo exercises the engine end to end: create a table, insert a
// row, read it back, scan, and drop.
package main

import (
	"fmt"
	"log/slog"

	"github.com/pageengine/pageengine/engine"
	"github.com/pageengine/pageengine/internal/record"
)

func main() {
	eng, err := engine.New(engine.Config{
		PageSize:          128,
		PoolSize:          4,
		DiskCapacity:      16,
		OverflowThreshold: 64,
	})
	if err != nil {
		slog.Error("demo: construct engine", "err", err)
		return
	}

	schema := record.Schema{Columns: []record.Column{
		{Name: "id", Type: record.Int32, Nullable: false},
		{Name: "name", Type: record.VarChar, Nullable: false, MaxLen: 32},
	}}

	if err := eng.CreateTable("users", schema); err != nil {
		slog.Error("demo: create table", "err", err)
		return
	}

	rowID, err := eng.Insert("users", []any{int32(1), "Alice"})
	if err != nil {
		slog.Error("demo: insert", "err", err)
		return
	}
	fmt.Println("inserted row:", rowID)

	if dump, err := eng.DebugPage(0); err != nil {
		slog.Warn("demo: debug page", "err", err)
	} else {
		fmt.Println(dump)
	}

	values, err := eng.Get("users", rowID)
	if err != nil {
		slog.Error("demo: get", "err", err)
		return
	}
	fmt.Println("row:", values)

	rows, err := eng.Scan("users")
	if err != nil {
		slog.Error("demo: scan", "err", err)
		return
	}
	for _, r := range rows {
		fmt.Println("scanned:", r.RowID, r.Values)
	}

	eng.DropTable("users")
	fmt.Println("tables after drop:", eng.ListTables())
}

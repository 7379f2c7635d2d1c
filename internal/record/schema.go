// Package record implements the schema-driven binary row codec (C4): typed
// values encode to and decode from a compact little-endian tuple format
// with a leading null bitmap.
package record

import (
	"fmt"

	"github.com/pageengine/pageengine/internal/storage"
)

// ColumnType is the set of logical value types a column may hold.
type ColumnType uint8

const (
	Int32 ColumnType = iota
	UInt32
	Float64
	Bool
	VarChar
	Blob
)

// TypeTag matches the snapshot surface's encoding of ColumnType (spec
// §4.6: 0=Int32, 1=UInt32, 2=Float64, 3=Bool, 4=VarChar, 5=Blob).
func (t ColumnType) TypeTag() uint8 { return uint8(t) }

func (t ColumnType) String() string {
	switch t {
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Float64:
		return "Float64"
	case Bool:
		return "Bool"
	case VarChar:
		return "VarChar"
	case Blob:
		return "Blob"
	default:
		return "Unknown"
	}
}

func (t ColumnType) isVariable() bool {
	return t == VarChar || t == Blob
}

// Column describes one field of a row. MaxLen applies only to VarChar and
// Blob columns and bounds the encoded payload length in bytes.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	MaxLen   uint16
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column
}

func (s Schema) NumCols() int { return len(s.Columns) }

// Validate checks the schema-level invariants create_table requires: at
// least one column, unique names, and a sane MaxLen for variable-length
// columns. maxColumnLen is the largest payload a single column may
// declare — page_size minus the per-row bookkeeping a page must also
// carry.
func (s Schema) Validate(maxColumnLen int) error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("record: schema has no columns: %w", storage.ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("record: column with empty name: %w", storage.ErrInvalidSchema)
		}
		if seen[c.Name] {
			return fmt.Errorf("record: duplicate column name %q: %w", c.Name, storage.ErrInvalidSchema)
		}
		seen[c.Name] = true

		if c.Type.isVariable() {
			if c.MaxLen < 1 || int(c.MaxLen) > maxColumnLen {
				return fmt.Errorf("record: column %q has invalid max_len %d: %w", c.Name, c.MaxLen, storage.ErrInvalidSchema)
			}
		}
	}
	return nil
}

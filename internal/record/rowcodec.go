package record

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pageengine/pageengine/internal/alias/bx"
	"github.com/pageengine/pageengine/internal/storage"
)

// Encode turns a list of logical values into the tuple binary form: a
// null bitmap followed by the concatenated payloads of the non-null
// columns, in column order.
func Encode(s Schema, values []any) ([]byte, error) {
	if len(values) != s.NumCols() {
		return nil, fmt.Errorf("record: encode: got %d values for %d columns: %w", len(values), s.NumCols(), storage.ErrSchemaMismatch)
	}

	nbBytes := (s.NumCols() + 7) / 8
	out := make([]byte, nbBytes)

	for i, col := range s.Columns {
		v := values[i]
		if v == nil {
			if !col.Nullable {
				return nil, fmt.Errorf("record: encode: column %q is not nullable: %w", col.Name, storage.ErrInvalidValue)
			}
			out[i/8] |= 1 << uint(i%8)
			continue
		}

		switch col.Type {
		case Int32:
			x, ok := asInt32(v)
			if !ok {
				return nil, fmt.Errorf("record: encode: column %q expects Int32: %w", col.Name, storage.ErrInvalidValue)
			}
			var b [4]byte
			bx.PutU32(b[:], uint32(x))
			out = append(out, b[:]...)

		case UInt32:
			x, ok := asUInt32(v)
			if !ok {
				return nil, fmt.Errorf("record: encode: column %q expects UInt32: %w", col.Name, storage.ErrInvalidValue)
			}
			var b [4]byte
			bx.PutU32(b[:], x)
			out = append(out, b[:]...)

		case Float64:
			x, ok := asFloat64(v)
			if !ok {
				return nil, fmt.Errorf("record: encode: column %q expects Float64: %w", col.Name, storage.ErrInvalidValue)
			}
			var b [8]byte
			bx.PutU64(b[:], math.Float64bits(x))
			out = append(out, b[:]...)

		case Bool:
			x, ok := asBool(v)
			if !ok {
				return nil, fmt.Errorf("record: encode: column %q expects Bool: %w", col.Name, storage.ErrInvalidValue)
			}
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}

		case VarChar:
			str, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("record: encode: column %q expects VarChar text: %w", col.Name, storage.ErrInvalidValue)
			}
			bs := []byte(str)
			if len(bs) > int(col.MaxLen) || len(bs) > math.MaxUint16 {
				return nil, fmt.Errorf("record: encode: column %q exceeds max_len %d: %w", col.Name, col.MaxLen, storage.ErrOverflow)
			}
			out = appendVarlen(out, bs)

		case Blob:
			bs, ok := v.([]byte)
			if !ok {
				return nil, fmt.Errorf("record: encode: column %q expects Blob bytes: %w", col.Name, storage.ErrInvalidValue)
			}
			if len(bs) > int(col.MaxLen) || len(bs) > math.MaxUint16 {
				return nil, fmt.Errorf("record: encode: column %q exceeds max_len %d: %w", col.Name, col.MaxLen, storage.ErrOverflow)
			}
			out = appendVarlen(out, bs)

		default:
			return nil, fmt.Errorf("record: encode: column %q has unknown type: %w", col.Name, storage.ErrInvalidSchema)
		}
	}
	return out, nil
}

func appendVarlen(out, bs []byte) []byte {
	var l [2]byte
	bx.PutU16(l[:], uint16(len(bs)))
	out = append(out, l[:]...)
	return append(out, bs...)
}

// Decode reverses Encode, consuming the null bitmap then the payloads in
// column order.
func Decode(s Schema, buf []byte) ([]any, error) {
	nbBytes := (s.NumCols() + 7) / 8
	if len(buf) < nbBytes {
		return nil, fmt.Errorf("record: decode: buffer shorter than null bitmap: %w", storage.ErrTruncated)
	}
	nullmap := buf[:nbBytes]
	i := nbBytes

	out := make([]any, s.NumCols())
	for colIdx, col := range s.Columns {
		if nullmap[colIdx/8]>>(uint(colIdx)%8)&1 == 1 {
			out[colIdx] = nil
			continue
		}

		switch col.Type {
		case Int32:
			if i+4 > len(buf) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrTruncated)
			}
			out[colIdx] = int32(bx.U32(buf[i : i+4]))
			i += 4

		case UInt32:
			if i+4 > len(buf) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrTruncated)
			}
			out[colIdx] = bx.U32(buf[i : i+4])
			i += 4

		case Float64:
			if i+8 > len(buf) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrTruncated)
			}
			out[colIdx] = math.Float64frombits(bx.U64(buf[i : i+8]))
			i += 8

		case Bool:
			if i+1 > len(buf) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrTruncated)
			}
			out[colIdx] = buf[i] != 0
			i++

		case VarChar:
			l, newI, err := readVarlenHeader(buf, i, col.Name)
			if err != nil {
				return nil, err
			}
			i = newI
			if i+l > len(buf) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrTruncated)
			}
			bs := buf[i : i+l]
			if !utf8.Valid(bs) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrInvalidUtf8)
			}
			out[colIdx] = string(bs)
			i += l

		case Blob:
			l, newI, err := readVarlenHeader(buf, i, col.Name)
			if err != nil {
				return nil, err
			}
			i = newI
			if i+l > len(buf) {
				return nil, fmt.Errorf("record: decode: column %q: %w", col.Name, storage.ErrTruncated)
			}
			cp := make([]byte, l)
			copy(cp, buf[i:i+l])
			out[colIdx] = cp
			i += l

		default:
			return nil, fmt.Errorf("record: decode: column %q has unknown type: %w", col.Name, storage.ErrInvalidSchema)
		}
	}
	return out, nil
}

func readVarlenHeader(buf []byte, i int, colName string) (length, next int, err error) {
	if i+2 > len(buf) {
		return 0, 0, fmt.Errorf("record: decode: column %q: %w", colName, storage.ErrTruncated)
	}
	return int(bx.U16(buf[i : i+2])), i + 2, nil
}

// asInt32/asUInt32/asFloat64/asBool accept a small family of numeric Go
// types so callers can pass either the exact type or a convenient literal.
func asInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x), true
		}
	}
	return 0, false
}

func asUInt32(v any) (uint32, bool) {
	switch x := v.(type) {
	case uint32:
		return x, true
	case uint:
		if x <= math.MaxUint32 {
			return uint32(x), true
		}
	case int:
		if x >= 0 && x <= math.MaxUint32 {
			return uint32(x), true
		}
	case int64:
		if x >= 0 && x <= math.MaxUint32 {
			return uint32(x), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

// asBool accepts true/false directly, or 0/1 numeric values.
func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case int32:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case int64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	}
	return false, false
}

package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pageengine/pageengine/internal/storage"
)

func usersSchema() Schema {
	return Schema{Columns: []Column{
		{Name: "id", Type: Int32, Nullable: false},
		{Name: "name", Type: VarChar, Nullable: false, MaxLen: 32},
	}}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := usersSchema()
	bytes, err := Encode(s, []any{int32(1), "Alice"})
	require.NoError(t, err)

	values, err := Decode(s, bytes)
	require.NoError(t, err)
	require.Equal(t, []any{int32(1), "Alice"}, values)
}

func TestEncodeNullableColumn(t *testing.T) {
	s := Schema{Columns: []Column{
		{Name: "id", Type: Int32, Nullable: false},
		{Name: "nickname", Type: VarChar, Nullable: true, MaxLen: 16},
	}}
	bytes, err := Encode(s, []any{int32(2), nil})
	require.NoError(t, err)

	values, err := Decode(s, bytes)
	require.NoError(t, err)
	require.Equal(t, int32(2), values[0])
	require.Nil(t, values[1])
}

func TestEncodeNullInNonNullable(t *testing.T) {
	s := usersSchema()
	_, err := Encode(s, []any{nil, "Alice"})
	require.ErrorIs(t, err, storage.ErrInvalidValue)
}

func TestEncodeSchemaMismatch(t *testing.T) {
	s := usersSchema()
	_, err := Encode(s, []any{int32(1)})
	require.ErrorIs(t, err, storage.ErrSchemaMismatch)
}

func TestEncodeVarCharOverflow(t *testing.T) {
	s := usersSchema()
	_, err := Encode(s, []any{int32(1), "this name is far longer than the configured max_len"})
	require.ErrorIs(t, err, storage.ErrOverflow)
}

func TestEncodeBoolAcceptsNumeric(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "flag", Type: Bool, Nullable: false}}}
	bytes, err := Encode(s, []any{1})
	require.NoError(t, err)
	values, err := Decode(s, bytes)
	require.NoError(t, err)
	require.Equal(t, true, values[0])
}

func TestEncodeBlobAndFloat64(t *testing.T) {
	s := Schema{Columns: []Column{
		{Name: "data", Type: Blob, Nullable: false, MaxLen: 16},
		{Name: "score", Type: Float64, Nullable: false},
	}}
	bytes, err := Encode(s, []any{[]byte{1, 2, 3}, 3.5})
	require.NoError(t, err)

	values, err := Decode(s, bytes)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, values[0])
	require.Equal(t, 3.5, values[1])
}

func TestDecodeTruncated(t *testing.T) {
	s := usersSchema()
	_, err := Decode(s, []byte{0})
	require.ErrorIs(t, err, storage.ErrTruncated)
}

func TestSchemaValidate(t *testing.T) {
	s := usersSchema()
	require.NoError(t, s.Validate(128))

	empty := Schema{}
	require.ErrorIs(t, empty.Validate(128), storage.ErrInvalidSchema)

	dup := Schema{Columns: []Column{
		{Name: "id", Type: Int32},
		{Name: "id", Type: Int32},
	}}
	require.ErrorIs(t, dup.Validate(128), storage.ErrInvalidSchema)

	badMaxLen := Schema{Columns: []Column{
		{Name: "blob", Type: Blob, MaxLen: 0},
	}}
	require.ErrorIs(t, badMaxLen.Validate(128), storage.ErrInvalidSchema)
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, size int) *Page {
	t.Helper()
	buf := make([]byte, size)
	p := NewPageView(buf)
	p.Init(7, Data)
	return p
}

func TestPageInit(t *testing.T) {
	p := newTestPage(t, 128)
	require.Equal(t, PageID(7), p.PageID())
	require.Equal(t, Data, p.PageType())
	require.EqualValues(t, 0, p.SlotCount())
	require.EqualValues(t, HeaderSize, p.FreeStart())
	require.EqualValues(t, 128, p.FreeEnd())
	require.Equal(t, NonePage, p.GetNext())
}

func TestPageInsertReadRoundTrip(t *testing.T) {
	p := newTestPage(t, 128)

	idx, err := p.Insert([]byte("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 0, idx)

	got, err := p.Read(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	require.EqualValues(t, 1, p.SlotCount())
	require.EqualValues(t, HeaderSize+SlotSize, p.FreeStart())
	require.EqualValues(t, 128-5, p.FreeEnd())
	require.LessOrEqual(t, p.FreeStart(), p.FreeEnd())
}

func TestPageInsertNoSpace(t *testing.T) {
	p := newTestPage(t, 32)
	_, err := p.Insert(make([]byte, 40))
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestPageReadBadSlot(t *testing.T) {
	p := newTestPage(t, 128)
	_, err := p.Read(0)
	require.ErrorIs(t, err, ErrBadSlot)
}

func TestPageDeleteTombstone(t *testing.T) {
	p := newTestPage(t, 128)
	idx, err := p.Insert([]byte("x"))
	require.NoError(t, err)

	ok, err := p.Delete(idx)
	require.NoError(t, err)
	require.True(t, ok)

	// Second delete of the same slot reports no transition.
	ok, err = p.Delete(idx)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = p.Read(idx)
	require.ErrorIs(t, err, ErrTombstoned)
}

func TestPageTombstoneDoesNotReclaimSpace(t *testing.T) {
	p := newTestPage(t, 128)
	idx, err := p.Insert([]byte("abcdef"))
	require.NoError(t, err)

	before := p.FreeSpace()
	_, err = p.Delete(idx)
	require.NoError(t, err)
	require.Equal(t, before, p.FreeSpace())
}

func TestPageSlotsAppendOnly(t *testing.T) {
	p := newTestPage(t, 128)
	i0, err := p.Insert([]byte("aa"))
	require.NoError(t, err)
	_, err = p.Delete(i0)
	require.NoError(t, err)

	i1, err := p.Insert([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, i0+1, i1)
	require.EqualValues(t, 2, p.SlotCount())
}

func TestPageSetGetNext(t *testing.T) {
	p := newTestPage(t, 128)
	p.SetNext(PageID(3))
	require.Equal(t, PageID(3), p.GetNext())
}

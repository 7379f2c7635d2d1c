package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverflowWriteReadRoundTrip(t *testing.T) {
	disk := NewDisk(128, 32)
	om := NewOverflowManager(disk)

	value := bytes.Repeat([]byte{0xAB}, 2000)
	ref, err := om.Write(value)
	require.NoError(t, err)

	got, err := om.Read(ref)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestOverflowChunkCount(t *testing.T) {
	disk := NewDisk(128, 32)
	om := NewOverflowManager(disk)

	value := make([]byte, 2000)
	before := disk.NumAllocated()
	_, err := om.Write(value)
	require.NoError(t, err)

	capacity := 128 - HeaderSize - overflowHeaderSize
	wantPages := (len(value) + capacity - 1) / capacity
	require.EqualValues(t, wantPages, int(disk.NumAllocated()-before))
}

func TestOverflowFreeReleasesAllPages(t *testing.T) {
	disk := NewDisk(128, 32)
	om := NewOverflowManager(disk)

	ref, err := om.Write(make([]byte, 2000))
	require.NoError(t, err)
	require.Greater(t, disk.NumAllocated(), uint32(0))

	require.NoError(t, om.Free(ref.FirstPageID))
	require.EqualValues(t, 0, disk.NumAllocated())
}

func TestOverflowWriteFailsCleansUpOnDiskFull(t *testing.T) {
	disk := NewDisk(128, 2)
	om := NewOverflowManager(disk)

	_, err := om.Write(make([]byte, 1000))
	require.ErrorIs(t, err, ErrDiskFull)
	require.EqualValues(t, 0, disk.NumAllocated())
}

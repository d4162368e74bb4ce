package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegment(t *testing.T) {
	dir := t.TempDir()

	want := []byte("hello world")

	var c Config
	c.Segment.MaxStoreBytes = 1024
	c.Segment.MaxIndexEntries = 3

	s, err := newSegment(dir, 16, c)
	require.NoError(t, err)
	require.Equal(t, uint64(16), s.nextOffset)
	require.False(t, s.IsFull())

	for i := uint64(0); i < 3; i++ {
		off, err := s.Append(want)
		require.NoError(t, err)
		require.Equal(t, 16+i, off)

		got, err := s.Read(off)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err = s.Append(want)
	require.Error(t, err)
	require.IsType(t, ErrSegmentFull{}, err)
	require.True(t, s.IsFull())

	// Reopening with a tighter store cap, looser index cap: maxed
	// immediately because the existing records already exceed it.
	c.Segment.MaxStoreBytes = uint64(len(want) * 3)
	c.Segment.MaxIndexEntries = 1024
	s, err = newSegment(dir, 16, c)
	require.NoError(t, err)
	require.True(t, s.IsFull())

	require.NoError(t, s.Remove(localFileCleanup{}))

	s, err = newSegment(dir, 16, c)
	require.NoError(t, err)
	require.False(t, s.IsFull())
}

func TestSegmentOffsetOutOfRange(t *testing.T) {
	dir := t.TempDir()
	var c Config
	c.Segment.MaxStoreBytes = 1024
	c.Segment.MaxIndexEntries = 1024

	s, err := newSegment(dir, 10, c)
	require.NoError(t, err)

	_, err = s.Read(9)
	require.Error(t, err)
	require.IsType(t, ErrOffsetOutOfRange{}, err)

	_, err = s.Read(10)
	require.Error(t, err)
	require.IsType(t, ErrOffsetOutOfRange{}, err)
}

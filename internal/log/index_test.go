package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexWriteRead(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "test.idx"))
	require.NoError(t, err)
	defer idx.Close()

	entries := []struct {
		Offset   uint64
		Position uint64
	}{
		{Offset: 0, Position: 0},
		{Offset: 1, Position: 21},
		{Offset: 2, Position: 42},
	}

	for _, want := range entries {
		require.NoError(t, idx.Write(want.Offset, want.Position))
	}

	for _, want := range entries {
		got, err := idx.Read(want.Offset)
		require.NoError(t, err)
		require.Equal(t, want.Position, got)
	}

	require.Equal(t, uint64(len(entries)), idx.Len())
}

func TestIndexEntryWidth(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "width.idx"))
	require.NoError(t, err)
	defer idx.Close()

	for i := uint64(0); i < 5; i++ {
		require.NoError(t, idx.Write(i, i*10))
	}

	require.NoError(t, idx.Close())

	fi, err := os.Stat(filepath.Join(dir, "width.idx"))
	require.NoError(t, err)
	require.Equal(t, int64(5*entryWidth), fi.Size())
}

func TestIndexOffsetNotFound(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "missing.idx"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Write(5, 100))

	_, err = idx.Read(999)
	require.Error(t, err)
	require.IsType(t, ErrOffsetNotFound{}, err)
}

// TestIndexOutOfOrderInsertion exercises the linear-scan requirement:
// entries need not arrive sorted by offset for reads to stay correct.
func TestIndexOutOfOrderInsertion(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "ooo.idx"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Write(5, 500))
	require.NoError(t, idx.Write(2, 200))
	require.NoError(t, idx.Write(8, 800))

	pos, err := idx.Read(2)
	require.NoError(t, err)
	require.Equal(t, uint64(200), pos)

	pos, err = idx.Read(8)
	require.NoError(t, err)
	require.Equal(t, uint64(800), pos)
}

func TestIndexGrowsPastInitialCapacity(t *testing.T) {
	dir := t.TempDir()
	idx, err := newIndex(filepath.Join(dir, "grow.idx"))
	require.NoError(t, err)
	defer idx.Close()

	for i := uint64(0); i < initialIndexEntries+10; i++ {
		require.NoError(t, idx.Write(i, i))
	}

	pos, err := idx.Read(initialIndexEntries + 5)
	require.NoError(t, err)
	require.Equal(t, uint64(initialIndexEntries+5), pos)
}

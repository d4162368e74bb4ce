package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	storeWrite = []byte("hello world")
	storeWidth = uint64(len(storeWrite)) + lenWidth
)

func TestStoreAppendRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	s, err := newStore(path)
	require.NoError(t, err)

	testStoreAppend(t, s)
	testStoreRead(t, s)
	require.NoError(t, s.Close())

	// Reopening must see the same data (persistence).
	s, err = newStore(path)
	require.NoError(t, err)
	testStoreRead(t, s)
	require.NoError(t, s.Close())
}

func testStoreAppend(t *testing.T, s *store) {
	t.Helper()
	for i := uint64(1); i < 4; i++ {
		pos, n, err := s.Append(storeWrite)
		require.NoError(t, err)
		require.Equal(t, pos+n, storeWidth*i)
	}
}

func testStoreRead(t *testing.T, s *store) {
	t.Helper()
	var pos uint64
	for i := uint64(1); i < 4; i++ {
		data, n, err := s.Read(pos)
		require.NoError(t, err)
		require.Equal(t, storeWrite, data)
		require.Equal(t, storeWidth, n)
		pos += storeWidth
	}
}

func TestStoreSizeAccounting(t *testing.T) {
	dir := t.TempDir()
	s, err := newStore(filepath.Join(dir, "acct.log"))
	require.NoError(t, err)
	defer s.Close()

	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc"), {}}
	var want uint64
	for _, p := range payloads {
		_, _, err := s.Append(p)
		require.NoError(t, err)
		want += lenWidth + uint64(len(p))
	}
	require.Equal(t, want, s.Size())
}

func TestStoreReadBeyondEnd(t *testing.T) {
	dir := t.TempDir()
	s, err := newStore(filepath.Join(dir, "beyond.log"))
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Read(100)
	require.Error(t, err)
	require.IsType(t, ErrReadBeyondEnd{}, err)
}

func TestStoreGrowsPastInitialCapacity(t *testing.T) {
	dir := t.TempDir()
	s, err := newStore(filepath.Join(dir, "grow.log"))
	require.NoError(t, err)
	defer s.Close()

	big := make([]byte, initialStoreCapacity)
	_, _, err = s.Append(big)
	require.NoError(t, err)

	// A second big append forces another grow cycle.
	_, _, err = s.Append(big)
	require.NoError(t, err)

	data, _, err := s.Read(0)
	require.NoError(t, err)
	require.Len(t, data, len(big))
}

// TestStoreTornWriteRecovery simulates a crash mid-append by hand-writing
// a bogus length prefix with a truncated payload directly to the file,
// then reopening. spec.md §8 scenario S6.
func TestStoreTornWriteRecovery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "torn.log")

	s, err := newStore(path)
	require.NoError(t, err)

	first := []byte("First store record")
	second := []byte("Second store record")

	firstPos, firstN, err := s.Append(first)
	require.NoError(t, err)
	require.Equal(t, uint64(0), firstPos)

	secondPos, secondN, err := s.Append(second)
	require.NoError(t, err)
	require.Equal(t, firstN, secondPos)

	require.NoError(t, s.Close())

	// Hand-corrupt the tail: a declared length of 50 with only 10 bytes
	// of payload actually present.
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	validEnd := int64(firstN + secondN)
	lenPrefix := make([]byte, lenWidth)
	enc.PutUint64(lenPrefix, 50)
	_, err = f.WriteAt(lenPrefix, validEnd)
	require.NoError(t, err)
	_, err = f.WriteAt(make([]byte, 10), validEnd+lenWidth)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := newStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, _, err := reopened.Read(0)
	require.NoError(t, err)
	require.Equal(t, first, got)

	got, _, err = reopened.Read(firstN)
	require.NoError(t, err)
	require.Equal(t, second, got)

	require.Equal(t, uint64(validEnd), reopened.Size())

	_, _, err = reopened.Read(uint64(validEnd))
	require.Error(t, err)
	require.IsType(t, ErrReadBeyondEnd{}, err)
}

package log

import (
	"fmt"
	"path/filepath"
)

// segmentFilenameWidth is the zero-padded width spec.md §6 assigns to a
// segment's base offset in its filenames, e.g. 00000000000000000042.log.
const segmentFilenameWidth = 20

// segment pairs one store and one index sharing a base offset. Only the
// log's active (tail) segment is ever appended to; every other segment
// is read-only in practice, though nothing in segment itself enforces
// that — the log is the one that stops routing appends to it.
type segment struct {
	store      *store
	index      *index
	baseOffset uint64
	nextOffset uint64
	maxStoreBytes   uint64
	maxIndexEntries uint64
}

func segmentStorePath(dir string, baseOffset uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%0*d.log", segmentFilenameWidth, baseOffset))
}

func segmentIndexPath(dir string, baseOffset uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%0*d.idx", segmentFilenameWidth, baseOffset))
}

// newSegment opens (or creates) the store/index pair for baseOffset
// under dir, and computes nextOffset from the index's last entry.
func newSegment(dir string, baseOffset uint64, c Config) (*segment, error) {
	s := &segment{
		baseOffset:      baseOffset,
		maxStoreBytes:   c.Segment.MaxStoreBytes,
		maxIndexEntries: c.Segment.MaxIndexEntries,
	}

	var err error
	if s.store, err = newStore(segmentStorePath(dir, baseOffset)); err != nil {
		return nil, err
	}
	if s.index, err = newIndex(segmentIndexPath(dir, baseOffset)); err != nil {
		return nil, err
	}

	if last, ok := s.index.LastOffset(); ok {
		s.nextOffset = last + 1
	} else {
		s.nextOffset = baseOffset
	}

	return s, nil
}

// Append writes data to the store and records its offset in the index,
// returning the assigned offset. If the index write fails after the
// store write succeeds, the store holds an orphan record: it is simply
// unreachable (no index entry points at it) and the next append's
// position naturally lands after it. No rollback is attempted —
// spec.md §4.3 accepts this as the cost of not building a WAL.
func (s *segment) Append(data []byte) (uint64, error) {
	if s.IsFull() {
		return 0, ErrSegmentFull{Base: s.baseOffset, Max: s.maxCapMetric(), Current: s.currentCapMetric()}
	}

	offset := s.nextOffset
	position, _, err := s.store.Append(data)
	if err != nil {
		return 0, err
	}
	if err := s.index.Write(offset, position); err != nil {
		return 0, err
	}
	s.nextOffset++
	return offset, nil
}

// Read returns the record at offset.
func (s *segment) Read(offset uint64) ([]byte, error) {
	if offset < s.baseOffset || offset >= s.nextOffset {
		return nil, ErrOffsetOutOfRange{Offset: offset, Base: s.baseOffset, Next: s.nextOffset}
	}
	position, err := s.index.Read(offset)
	if err != nil {
		return nil, err
	}
	data, _, err := s.store.Read(position)
	return data, err
}

// ContainsOffset reports whether offset falls within [baseOffset, nextOffset).
func (s *segment) ContainsOffset(offset uint64) bool {
	return s.baseOffset <= offset && offset < s.nextOffset
}

// IsFull reports whether either cap has been reached.
func (s *segment) IsFull() bool {
	return s.store.Size() >= s.maxStoreBytes || s.index.Len() >= s.maxIndexEntries
}

func (s *segment) maxCapMetric() uint64 {
	if s.store.Size() >= s.maxStoreBytes {
		return s.maxStoreBytes
	}
	return s.maxIndexEntries
}

func (s *segment) currentCapMetric() uint64 {
	if s.store.Size() >= s.maxStoreBytes {
		return s.store.Size()
	}
	return s.index.Len()
}

// Close closes the segment's index and store.
func (s *segment) Close() error {
	if err := s.index.Close(); err != nil {
		return err
	}
	return s.store.Close()
}

// Remove closes the segment and deletes its files via cleanup.
func (s *segment) Remove(cleanup StorageCleanup) error {
	storePath := s.store.Name()
	indexPath := s.index.Name()
	if err := s.Close(); err != nil {
		return err
	}
	if err := cleanup.CleanupSegment(storePath, indexPath); err != nil {
		return ErrCleanupError{BaseOffset: s.baseOffset, Err: err}
	}
	return nil
}

package log

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Log is the top-level manager: it discovers and loads segments from
// disk on open, routes appends to the active (tail) segment, dispatches
// reads to whichever segment's range contains the requested offset, and
// rotates or truncates whole segments. Mutating calls (Append, Truncate)
// must be serialized by the caller — see spec.md §5; Log itself only
// takes an RWMutex so concurrent reads can proceed while no writer runs.
type Log struct {
	mu sync.RWMutex

	dir     string
	config  Config
	cleanup StorageCleanup

	segments      []*segment
	activeSegment *segment
}

// NewLog opens (or creates) a log rooted at dir. Zero-valued cap fields
// in c are filled with their documented defaults.
func NewLog(dir string, c Config) (*Log, error) {
	if c.Segment.MaxStoreBytes == 0 {
		c.Segment.MaxStoreBytes = defaultMaxStoreBytes
	}
	if c.Segment.MaxIndexEntries == 0 {
		c.Segment.MaxIndexEntries = defaultMaxIndexEntries
	}

	l := &Log{
		dir:     dir,
		config:  c,
		cleanup: localFileCleanup{},
	}
	return l, l.setup()
}

func (l *Log) setup() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return ErrDirectoryError{Path: l.dir, Err: err}
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return ErrDirectoryError{Path: l.dir, Err: err}
	}

	var baseOffsets []uint64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		off, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			// Not a segment file stem; coexists peacefully per spec.md §9.
			continue
		}
		baseOffsets = append(baseOffsets, off)
	}

	sort.Slice(baseOffsets, func(i, j int) bool { return baseOffsets[i] < baseOffsets[j] })

	for _, off := range baseOffsets {
		if err := l.openSegment(off); err != nil {
			return err
		}
	}

	if len(l.segments) == 0 {
		if err := l.openSegment(l.config.Segment.InitialOffset); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) openSegment(baseOffset uint64) error {
	s, err := newSegment(l.dir, baseOffset, l.config)
	if err != nil {
		return err
	}
	l.segments = append(l.segments, s)
	l.activeSegment = s
	return nil
}

// Append writes data to the active segment, rotating to a fresh segment
// first if the active one is already full.
func (l *Log) Append(data []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeSegment.IsFull() {
		if err := l.rotate(); err != nil {
			return 0, err
		}
	}
	return l.activeSegment.Append(data)
}

// rotate creates a new segment at the current next offset and makes it
// active. The caller must hold l.mu for writing.
func (l *Log) rotate() error {
	return l.openSegment(l.activeSegment.nextOffset)
}

// Read dispatches to whichever segment's range contains offset.
func (l *Log) Read(offset uint64) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, s := range l.segments {
		if s.ContainsOffset(offset) {
			return s.Read(offset)
		}
	}
	return nil, ErrLogOffsetNotFound{
		Offset: offset,
		Base:   l.segments[0].baseOffset,
		Next:   l.activeSegment.nextOffset,
	}
}

// Truncate removes every segment whose base offset is at or above
// cutoff. This is whole-segment truncation: a segment whose range only
// partially exceeds cutoff is kept intact, matching the Kafka
// convention spec.md §9 calls for. If every segment is removed, a fresh
// one is created at cutoff so the log stays writable.
func (l *Log) Truncate(cutoff uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var kept []*segment
	for _, s := range l.segments {
		if s.baseOffset >= cutoff {
			if err := s.Remove(l.cleanup); err != nil {
				return err
			}
			continue
		}
		kept = append(kept, s)
	}
	l.segments = kept

	if len(l.segments) == 0 {
		return l.openSegment(cutoff)
	}
	l.activeSegment = l.segments[len(l.segments)-1]
	return nil
}

// Close closes every segment without removing any files.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.segments {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Remove closes the log and deletes its entire directory.
func (l *Log) Remove() error {
	if err := l.Close(); err != nil {
		return err
	}
	return os.RemoveAll(l.dir)
}

// BaseOffset is the lowest offset the log holds.
func (l *Log) BaseOffset() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.segments[0].baseOffset
}

// NextOffset is the offset the next successful Append will return.
func (l *Log) NextOffset() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeSegment.nextOffset
}

// LatestOffset is NextOffset-1, or false if the log is empty.
func (l *Log) LatestOffset() (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	next := l.activeSegment.nextOffset
	base := l.segments[0].baseOffset
	if next == base {
		return 0, false
	}
	return next - 1, true
}

// SegmentCount reports how many segments currently make up the log.
func (l *Log) SegmentCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.segments)
}

// IsEmpty reports whether the log holds no records.
func (l *Log) IsEmpty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeSegment.nextOffset == l.segments[0].baseOffset
}

// TotalSize sums the on-disk store size across every segment.
func (l *Log) TotalSize() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for _, s := range l.segments {
		total += s.store.Size()
	}
	return total
}

// Dir returns the directory the log is rooted at.
func (l *Log) Dir() string { return l.dir }

// Config returns the log's effective configuration.
func (l *Log) Config() Config { return l.config }

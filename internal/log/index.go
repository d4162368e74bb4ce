package log

import (
	"os"
	"sync"

	"github.com/tysonmote/gommap"
	"go.uber.org/zap"
)

const (
	offWidth = 8
	posWidth = 8
	// entryWidth is the width of a single (offset, position) pair:
	// spec.md §3 fixes both fields at the full 64 bits, unlike schemes
	// that pack a segment-relative 32-bit offset.
	entryWidth = offWidth + posWidth

	initialIndexEntries  = 1000
	initialIndexCapacity = initialIndexEntries * entryWidth
	indexGrowEntries     = 1000
)

// index maps logical offsets to byte positions in the paired store.
// Entries are appended in insertion order, not sorted by offset, so
// read performs a linear scan — out-of-order offset insertion (e.g.
// from a future replicated writer) is still correct, just not O(log n).
type index struct {
	mu   sync.Mutex
	file *os.File
	mmap gommap.MMap
	size uint64 // number of entries, not bytes
}

// newIndex opens or creates the index file at path. A file length that
// isn't a clean multiple of entryWidth (a torn index write) is
// truncated down to the largest valid multiple and a warning is logged.
func newIndex(path string) (*index, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ErrIndexOpenFailed{Path: path, Err: err}
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ErrIndexOpenFailed{Path: path, Err: err}
	}
	fileLen := uint64(fi.Size())

	validLen := fileLen - (fileLen % entryWidth)
	if validLen != fileLen {
		zap.L().Named("index").Warn(
			"discarding torn index write on open",
			zap.String("path", path),
			zap.Uint64("valid_len", validLen),
			zap.Uint64("file_len", fileLen),
		)
		if err := file.Truncate(int64(validLen)); err != nil {
			file.Close()
			return nil, ErrIndexOpenFailed{Path: path, Err: err}
		}
	}

	capacity := validLen
	if capacity < initialIndexCapacity {
		capacity = initialIndexCapacity
	}
	if err := file.Truncate(int64(capacity)); err != nil {
		file.Close()
		return nil, ErrIndexGrowFailed{CurrentCapacity: fileLen, TargetCapacity: capacity, Err: err}
	}

	m, err := gommap.Map(file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, ErrIndexMmapFailed{Size: capacity, Err: err}
	}

	return &index{
		file: file,
		mmap: m,
		size: validLen / entryWidth,
	}, nil
}

// Write appends an (offset, position) entry.
func (idx *index) Write(offset, position uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	needed := (idx.size + 1) * entryWidth
	if needed > uint64(len(idx.mmap)) {
		if err := idx.grow(); err != nil {
			return err
		}
	}

	start := idx.size * entryWidth
	enc.PutUint64(idx.mmap[start:start+offWidth], offset)
	enc.PutUint64(idx.mmap[start+offWidth:start+entryWidth], position)

	if err := idx.mmap[start : start+entryWidth].Sync(gommap.MS_SYNC); err != nil {
		return ErrIndexWriteFailed{Position: start, Err: err}
	}

	idx.size++
	return nil
}

// Read returns the position paired with offset. Entries are not sorted,
// so every lookup is a full linear scan of the entries written so far.
func (idx *index) Read(offset uint64) (uint64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := uint64(0); i < idx.size; i++ {
		start := i * entryWidth
		entryOffset := enc.Uint64(idx.mmap[start : start+offWidth])
		if entryOffset == offset {
			return enc.Uint64(idx.mmap[start+offWidth : start+entryWidth]), nil
		}
	}
	return 0, ErrOffsetNotFound{Offset: offset}
}

// LastOffset returns the offset field of the most recently written
// entry and true, or (0, false) if the index is empty.
func (idx *index) LastOffset() (uint64, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.size == 0 {
		return 0, false
	}
	start := (idx.size - 1) * entryWidth
	return enc.Uint64(idx.mmap[start : start+offWidth]), true
}

// Len reports the number of entries currently written.
func (idx *index) Len() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.size
}

// grow doubles the mapping's capacity, or grows by indexGrowEntries
// entries, whichever is larger. The caller must hold idx.mu.
func (idx *index) grow() error {
	currentCapacity := uint64(len(idx.mmap))
	targetCapacity := currentCapacity * 2
	if floor := currentCapacity + indexGrowEntries*entryWidth; floor > targetCapacity {
		targetCapacity = floor
	}

	if err := idx.file.Truncate(int64(targetCapacity)); err != nil {
		return ErrIndexGrowFailed{CurrentCapacity: currentCapacity, TargetCapacity: targetCapacity, Err: err}
	}
	if err := idx.file.Sync(); err != nil {
		return ErrIndexGrowFailed{CurrentCapacity: currentCapacity, TargetCapacity: targetCapacity, Err: err}
	}

	if err := idx.mmap.UnsafeUnmap(); err != nil {
		return ErrIndexMmapFailed{Size: targetCapacity, Err: err}
	}

	m, err := gommap.MapRegion(idx.file.Fd(), int(targetCapacity), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED, 0)
	if err != nil {
		return ErrIndexMmapFailed{Size: targetCapacity, Err: err}
	}
	idx.mmap = m
	return nil
}

// Close flushes the mapping and truncates the file to size*entryWidth.
func (idx *index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_ = idx.mmap.Sync(gommap.MS_SYNC)
	_ = idx.mmap.UnsafeUnmap()
	if err := idx.file.Truncate(int64(idx.size * entryWidth)); err != nil {
		return err
	}
	return idx.file.Close()
}

// Name returns the path of the index's backing file.
func (idx *index) Name() string {
	return idx.file.Name()
}

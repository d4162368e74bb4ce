package log

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/tysonmote/gommap"
	"go.uber.org/zap"
)

var enc = binary.LittleEndian

const (
	lenWidth             = 8
	initialStoreCapacity = 1024 * 1024
	storeGrowMargin      = 1024 * 1024
	// maxRecordLen bounds how large a declared record length may be
	// before the recovery scan treats it as corrupt framing rather than
	// a torn write; spec.md §4.1 calls this the "sanity bound".
	maxRecordLen = 100 * 1024 * 1024
)

// store is an append-only, length-prefixed record file backed by a
// growable memory mapping. Every record is framed as an 8-byte
// little-endian length followed by that many bytes of payload; size
// tracks the byte extent of well-formed records, which is typically
// smaller than the backing file's pre-allocated capacity.
type store struct {
	mu   sync.Mutex
	file *os.File
	mmap gommap.MMap
	size uint64
}

// newStore opens or creates the store file at path. If the file already
// holds data, it is repaired via the recovery scan before mapping: any
// torn tail left by a crash mid-append is discarded and the file is
// truncated to the last fully-framed record.
func newStore(path string) (*store, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ErrOpenFailed{Path: path, Err: err}
	}

	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ErrOpenFailed{Path: path, Err: err}
	}
	fileLen := uint64(fi.Size())

	var validSize uint64
	if fileLen > 0 {
		validSize, err = recoverStore(file, fileLen)
		if err != nil {
			file.Close()
			return nil, err
		}
		if validSize < fileLen {
			zap.L().Named("store").Warn(
				"discarding torn write on open",
				zap.String("path", path),
				zap.Uint64("valid_size", validSize),
				zap.Uint64("file_size", fileLen),
			)
			if err := file.Truncate(int64(validSize)); err != nil {
				file.Close()
				return nil, ErrOpenFailed{Path: path, Err: err}
			}
		}
	}

	capacity := validSize
	if capacity < initialStoreCapacity {
		capacity = initialStoreCapacity
	}
	if err := file.Truncate(int64(capacity)); err != nil {
		file.Close()
		return nil, ErrGrowFailed{CurrentCapacity: fileLen, TargetCapacity: capacity, Err: err}
	}

	m, err := gommap.Map(file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, ErrMmapFailed{Size: capacity, Err: err}
	}

	return &store{
		file: file,
		mmap: m,
		size: validSize,
	}, nil
}

// recoverStore walks the file from position 0, skipping fully-framed
// records, and stops at the first sign of a torn or malformed record:
// fewer than lenWidth bytes remaining for a length prefix, a declared
// record that would extend past the file's end, or a declared length
// past the sanity bound. It never touches the file; the caller
// truncates.
func recoverStore(file *os.File, fileLen uint64) (uint64, error) {
	var pos uint64
	lenBuf := make([]byte, lenWidth)

	for {
		if pos+lenWidth > fileLen {
			break
		}
		if _, err := file.ReadAt(lenBuf, int64(pos)); err != nil {
			return 0, ErrReadFailed{Position: pos, Err: err}
		}
		recLen := enc.Uint64(lenBuf)
		if recLen > maxRecordLen {
			break
		}
		end := pos + lenWidth + recLen
		if end > fileLen {
			break
		}
		pos = end
	}
	return pos, nil
}

// Append writes data as a length-prefixed record, growing the backing
// mapping first if needed, and returns the position the record starts
// at along with the total bytes written (lenWidth + len(data)).
func (s *store) Append(data []byte) (position uint64, total uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordLen := uint64(len(data))
	total = lenWidth + recordLen

	if s.size+total > uint64(len(s.mmap)) {
		if err := s.grow(total); err != nil {
			return 0, 0, err
		}
	}

	position = s.size
	enc.PutUint64(s.mmap[position:position+lenWidth], recordLen)
	copy(s.mmap[position+lenWidth:position+total], data)

	if err := s.mmap[position : position+total].Sync(gommap.MS_SYNC); err != nil {
		return 0, 0, ErrWriteFailed{Position: position, Err: err}
	}

	s.size += total
	return position, total, nil
}

// Read returns the record whose length prefix begins at position.
func (s *store) Read(position uint64) ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position >= s.size {
		return nil, 0, ErrReadBeyondEnd{Position: position, Size: s.size}
	}
	if position+lenWidth > s.size {
		return nil, 0, ErrCorruptedRecord{Position: position, Reason: "short length prefix"}
	}

	recordLen := enc.Uint64(s.mmap[position : position+lenWidth])
	if position+lenWidth+recordLen > s.size {
		return nil, 0, ErrCorruptedRecord{Position: position, Reason: "record extends past store"}
	}

	data := make([]byte, recordLen)
	copy(data, s.mmap[position+lenWidth:position+lenWidth+recordLen])
	return data, lenWidth + recordLen, nil
}

// Size reports the byte extent of well-formed records currently held.
func (s *store) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// grow doubles the mapping's capacity (or grows to fit needed plus a
// 1 MiB margin, whichever is larger), re-establishing the file and the
// mapping. The caller must hold s.mu.
func (s *store) grow(needed uint64) error {
	currentCapacity := uint64(len(s.mmap))
	targetCapacity := currentCapacity * 2
	if floor := s.size + needed + storeGrowMargin; floor > targetCapacity {
		targetCapacity = floor
	}

	if err := s.file.Truncate(int64(targetCapacity)); err != nil {
		return ErrGrowFailed{CurrentCapacity: currentCapacity, TargetCapacity: targetCapacity, Err: err}
	}
	if err := s.file.Sync(); err != nil {
		return ErrGrowFailed{CurrentCapacity: currentCapacity, TargetCapacity: targetCapacity, Err: err}
	}

	if err := s.mmap.UnsafeUnmap(); err != nil {
		return ErrMmapFailed{Size: targetCapacity, Err: err}
	}

	m, err := gommap.MapRegion(s.file.Fd(), int(targetCapacity), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED, 0)
	if err != nil {
		return ErrMmapFailed{Size: targetCapacity, Err: err}
	}
	s.mmap = m
	return nil
}

// Close flushes the mapping and truncates the file to the logical size
// so a later recovery scan isn't confused by stale capacity padding.
func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mmap.Sync(gommap.MS_SYNC)
	_ = s.mmap.UnsafeUnmap()
	if err := s.file.Truncate(int64(s.size)); err != nil {
		return err
	}
	return s.file.Close()
}

// Name returns the path of the store's backing file.
func (s *store) Name() string {
	return s.file.Name()
}

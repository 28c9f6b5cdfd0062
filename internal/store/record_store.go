// Package store implements RecordStore, the append-only, memory-mapped,
// content-addressed record database described by the core spec: it
// ties a MappedFile data file to a StructuredLog of offsets and owns
// the in-memory id/uuid -> offset indexes rebuilt from that log on
// every open.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cantine/internal/mmap"
	"cantine/internal/record"
	"cantine/internal/storeerr"
)

const (
	dataFileName    = "data.bin"
	offsetsFileName = "offsets.bin"
)

// RecordStore is single-writer, multi-reader: Add must be called from
// one goroutine at a time (or externally serialized), while GetByID
// and GetByUUID are safe for concurrent use and safe to call
// concurrently with Add so long as they go through the store's own
// lock, which guards the two in-memory maps.
type RecordStore struct {
	mu sync.RWMutex

	dir  string
	data *mmap.File
	log  *mmap.StructuredLog

	idIndex   map[uint64]uint64
	uuidIndex map[[16]byte]uint64

	full bool
}

// Create makes a fresh store directory containing data.bin
// (pre-allocated to initialSize bytes) and an empty offsets.bin. It
// fails with storeerr.ErrAlreadyExists if either file is already
// present, leaving them untouched.
func Create(dir string, initialSize int64) (*RecordStore, error) {
	dataPath := filepath.Join(dir, dataFileName)
	offsetsPath := filepath.Join(dir, offsetsFileName)

	if _, err := os.Stat(dataPath); err == nil {
		return nil, storeerr.ErrAlreadyExists
	}
	if _, err := os.Stat(offsetsPath); err == nil {
		return nil, storeerr.ErrAlreadyExists
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	df, err := mmap.Create(dataPath, initialSize)
	if err != nil {
		return nil, err
	}
	df.Close()

	lg, err := mmap.CreateLog(offsetsPath)
	if err != nil {
		return nil, err
	}
	lg.Close()

	return Open(dir)
}

// Open opens an existing store directory, replaying offsets.bin to
// rebuild the in-memory indexes and re-deriving the mapped file's
// append cursor from the on-disk header.
func Open(dir string) (*RecordStore, error) {
	dataPath := filepath.Join(dir, dataFileName)
	offsetsPath := filepath.Join(dir, offsetsFileName)

	lg, err := mmap.OpenLog(offsetsPath)
	if err != nil {
		return nil, err
	}

	numEntries, err := lg.Len()
	if err != nil {
		lg.Close()
		return nil, err
	}

	idIndex := make(map[uint64]uint64, numEntries)
	uuidIndex := make(map[[16]byte]uint64, numEntries)
	var maxOffset uint64

	if err := lg.ForEach(func(e mmap.LogEntry) error {
		maxOffset = e.Offset
		idIndex[e.ID] = e.Offset
		uuidIndex[e.UUID] = e.Offset
		return nil
	}); err != nil {
		lg.Close()
		return nil, err
	}

	df, err := mmap.Open(dataPath)
	if err != nil {
		lg.Close()
		return nil, err
	}

	if numEntries > 0 && maxOffset > uint64(df.Len()) {
		df.Close()
		lg.Close()
		return nil, fmt.Errorf("%w: offsets log points at unreachable offset %d (mapped length %d)", storeerr.ErrCorrupt, maxOffset, df.Len())
	}

	if df.Offset() < mmap.HeaderSize {
		df.Close()
		lg.Close()
		return nil, fmt.Errorf("%w: data file header corrupt, append offset %d", storeerr.ErrCorrupt, df.Offset())
	}

	return &RecordStore{
		dir:       dir,
		data:      df,
		log:       lg,
		idIndex:   idIndex,
		uuidIndex: uuidIndex,
	}, nil
}

// Add serializes r via the record codec, appends it to the mapped
// data file, logs the resulting (uuid, id, offset) entry, updates both
// in-memory indexes, and finally commits the new append offset into
// the data file's header word. This ordering — data, then log, then
// maps, then header — is chosen for crash recovery: a crash before the
// header commit leaves the previous (smaller) offset on disk, so the
// next Open treats the just-appended bytes as free, unreferenced
// space rather than a half-visible record.
func (s *RecordStore) Add(r *record.Record) error {
	encoded, err := record.Serialize(r)
	if err != nil {
		return fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full {
		return storeerr.ErrFull
	}

	offset, err := s.data.Append(encoded)
	if err != nil {
		if err == storeerr.ErrFull {
			s.full = true
		}
		return err
	}

	entry := mmap.LogEntry{UUID: r.UUID, ID: r.ID, Offset: offset}
	if err := s.log.Append(entry); err != nil {
		return err
	}

	s.idIndex[r.ID] = offset
	s.uuidIndex[r.UUID] = offset
	s.data.CommitOffset()
	return nil
}

// GetByID looks up a record by its application-assigned id.
func (s *RecordStore) GetByID(id uint64) (*record.Record, bool, error) {
	s.mu.RLock()
	offset, ok := s.idIndex[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	r, err := s.decodeAt(offset)
	return r, err == nil, err
}

// GetByUUID looks up a record by its external UUID.
func (s *RecordStore) GetByUUID(uuid [16]byte) (*record.Record, bool, error) {
	s.mu.RLock()
	offset, ok := s.uuidIndex[uuid]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	r, err := s.decodeAt(offset)
	return r, err == nil, err
}

func (s *RecordStore) decodeAt(offset uint64) (*record.Record, error) {
	s.mu.RLock()
	suffix := s.data.Slice(offset, uint64(s.data.Len()))
	s.mu.RUnlock()
	return record.Deserialize(suffix)
}

// Len returns the number of records currently indexed.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idIndex)
}

// ForEachID calls fn once for every id currently indexed, in
// unspecified order. Used by repair tooling to enumerate the store's
// id set without decoding every record.
func (s *RecordStore) ForEachID(fn func(id uint64)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.idIndex {
		fn(id)
	}
	return nil
}

// IsFull reports whether the store has hit its pre-allocated size.
func (s *RecordStore) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.full
}

// Sync flushes the mapped data file to disk. The ingest pipeline calls
// this at each checkpoint in strict sync mode; async mode relies on OS
// writeback.
func (s *RecordStore) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Sync()
}

// Close unmaps the data file and closes the offsets log.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if err := s.data.Close(); err != nil {
		firstErr = err
	}
	if err := s.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

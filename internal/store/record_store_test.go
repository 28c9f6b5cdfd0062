package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cantine/internal/features"
	"cantine/internal/record"
	"cantine/internal/storeerr"
)

func newRecord(id uint64, uuidByte byte) *record.Record {
	r := &record.Record{
		ID:       id,
		Name:     "test recipe",
		Features: features.NewFeatures(),
	}
	for i := range r.UUID {
		r.UUID[i] = uuidByte
	}
	return r
}

func TestCreateAndRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Create(dir, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	one := newRecord(1, 0x11)
	two := newRecord(2, 0x22)
	three := newRecord(3, 0x33)

	for _, r := range []*record.Record{one, two, three} {
		if err := s.Add(r); err != nil {
			t.Fatalf("Add(%d): %v", r.ID, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	four := newRecord(4, 0x44)
	if err := s.Add(four); err != nil {
		t.Fatalf("Add(4): %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("second reopen: %v", err)
	}
	defer s.Close()

	for _, id := range []uint64{1, 2, 3, 4} {
		byID, ok, err := s.GetByID(id)
		if err != nil || !ok {
			t.Fatalf("GetByID(%d) = (_, %v, %v)", id, ok, err)
		}
		byUUID, ok, err := s.GetByUUID(byID.UUID)
		if err != nil || !ok {
			t.Fatalf("GetByUUID for id %d = (_, %v, %v)", id, ok, err)
		}
		if byUUID.ID != byID.ID {
			t.Fatalf("GetByID(%d).ID=%d != GetByUUID(...).ID=%d", id, byID.ID, byUUID.ID)
		}
	}

	info, err := os.Stat(filepath.Join(dir, dataFileName))
	if err != nil {
		t.Fatalf("stat data file: %v", err)
	}
	if info.Size() != 1000 {
		t.Fatalf("data.bin size = %d, want 1000 (no growth)", info.Size())
	}
}

func TestCreateAlreadyExists(t *testing.T) {
	dir := t.TempDir()

	s, err := Create(dir, 1)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	s.Close()

	_, err = Create(dir, 1)
	if !errors.Is(err, storeerr.ErrAlreadyExists) {
		t.Fatalf("second Create err = %v, want ErrAlreadyExists", err)
	}
}

func TestOpenCorruptOffsetsLog(t *testing.T) {
	dir := t.TempDir()

	s, err := Create(dir, 1000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Add(newRecord(1, 0xAA)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Close()

	offsetsPath := filepath.Join(dir, offsetsFileName)
	f, err := os.OpenFile(offsetsPath, os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open offsets: %v", err)
	}
	if err := f.Truncate(17); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()

	_, err = Open(dir)
	if !errors.Is(err, storeerr.ErrCorrupt) {
		t.Fatalf("Open err = %v, want ErrCorrupt", err)
	}
}

func TestAddFailsWhenFull(t *testing.T) {
	dir := t.TempDir()

	s, err := Create(dir, 8+4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	r := newRecord(1, 0x01)
	err = s.Add(r)
	if !errors.Is(err, storeerr.ErrFull) {
		t.Fatalf("expected ErrFull for an oversized record, got %v", err)
	}
	if !s.IsFull() {
		t.Fatalf("expected store to record Full state after a failing Add")
	}
}

package ingest

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"cantine/internal/record"
)

// recoveryMagic identifies a pipeline recovery log file. Adapted from
// the teacher's WAL header magic/version check in internal/storage/wal.go.
const recoveryMagic uint32 = 0x43414e00 // "CAN\0"

// RecoveryLog records every submitted record's framed codec bytes
// before the ingest pipeline's consumer goroutine has durably applied
// it to the RecordStore, so a crash mid-batch can be replayed on the
// next startup. Checkpoint (called after every successful commit)
// truncates the log back to empty, mirroring the teacher's
// WAL.Checkpoint.
type RecoveryLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenRecoveryLog opens or creates the recovery log at path, writing
// a fresh header if the file is new and validating it otherwise.
func OpenRecoveryLog(path string) (*RecoveryLog, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening recovery log: %w", err)
	}

	if fresh {
		if err := binary.Write(f, binary.BigEndian, recoveryMagic); err != nil {
			f.Close()
			return nil, fmt.Errorf("ingest: writing recovery log header: %w", err)
		}
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
		var magic uint32
		if err := binary.Read(f, binary.BigEndian, &magic); err != nil {
			f.Close()
			return nil, fmt.Errorf("ingest: reading recovery log header: %w", err)
		}
		if magic != recoveryMagic {
			f.Close()
			return nil, fmt.Errorf("ingest: recovery log at %s has the wrong magic header", path)
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &RecoveryLog{path: path, f: f}, nil
}

// LogPending appends r's framed, self-delimiting codec bytes and
// fsyncs, so the entry survives a crash even if the batch it belongs
// to never commits.
func (w *RecoveryLog) LogPending(r *record.Record) error {
	encoded, err := record.Serialize(r)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Write(encoded); err != nil {
		return fmt.Errorf("ingest: appending to recovery log: %w", err)
	}
	return w.f.Sync()
}

// frameHeaderSize mirrors the record codec's frame header
// ([compressedLen u32][crc32 u32]) so Replay can walk entries without
// re-serializing them to learn their length.
const frameHeaderSize = 8

// Replay reads every record logged since the last Checkpoint, in
// append order. A truncated trailing entry (a crash mid-write) is
// silently dropped, since it was never acknowledged to a caller.
func (w *RecoveryLog) Replay() ([]*record.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Seek(4, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(w.f)
	if err != nil {
		return nil, err
	}
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}

	var out []*record.Record
	for len(data) >= frameHeaderSize {
		compressedLen := binary.BigEndian.Uint32(data[0:4])
		total := frameHeaderSize + int(compressedLen)
		if total > len(data) {
			break
		}
		rec, err := record.Deserialize(data[:total])
		if err != nil {
			break
		}
		out = append(out, rec)
		data = data[total:]
	}
	return out, nil
}

// Checkpoint truncates the log back to just its header, discarding
// every entry replayed (or superseded) by a successful commit.
func (w *RecoveryLog) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Truncate(0); err != nil {
		return err
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.BigEndian, recoveryMagic); err != nil {
		return err
	}
	_, err := w.f.Seek(0, io.SeekEnd)
	return err
}

// Close closes the recovery log file.
func (w *RecoveryLog) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Package mmap provides the append-only memory-mapped data file and
// the fixed-record structured log that sit underneath the record
// store.
package mmap

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"cantine/internal/storeerr"
)

// HeaderSize is the number of bytes reserved at the front of a mapped
// file for the in-map append-offset header word.
const HeaderSize = 8

// File owns an OS file handle plus a read/write memory mapping of its
// full length. It never grows the underlying file; appends beyond the
// mapped length fail with storeerr.ErrFull.
type File struct {
	f      *os.File
	data   []byte
	offset uint64
}

// Open maps the full length of the already-sized file at path.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: mapped file %s is empty", storeerr.ErrCorrupt, path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	mf := &File{f: f, data: data}
	mf.offset = binary.NativeEndian.Uint64(mf.data[0:HeaderSize])
	return mf, nil
}

// Create pre-allocates a new file of size bytes and writes the initial
// header (append_offset = HeaderSize), then opens it.
func Create(path string, size int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	header := make([]byte, HeaderSize)
	binary.NativeEndian.PutUint64(header, uint64(HeaderSize))
	if _, err := f.WriteAt(header, 0); err != nil {
		f.Close()
		return nil, err
	}
	f.Close()

	return Open(path)
}

// Len returns the current mapping length in bytes.
func (mf *File) Len() int { return len(mf.data) }

// Offset returns the current append cursor.
func (mf *File) Offset() uint64 { return mf.offset }

// SetAppendOffset sets the in-memory append cursor without touching
// the header word on disk. Open itself takes the cursor from the
// header word and does not call this.
func (mf *File) SetAppendOffset(n uint64) error {
	if n > uint64(mf.Len()) {
		return fmt.Errorf("%w: append offset %d exceeds mapped length %d", storeerr.ErrCorrupt, n, mf.Len())
	}
	mf.offset = n
	return nil
}

// Append copies data into the map at the current cursor and advances
// the in-memory cursor. It does not touch the on-disk header word —
// callers that need the append durably visible call CommitOffset once
// the record is also safely logged, per the data -> log -> header
// commit ordering. It returns the pre-write offset, the record's
// canonical location.
func (mf *File) Append(data []byte) (uint64, error) {
	if mf.offset+uint64(len(data)) > uint64(mf.Len()) {
		return 0, storeerr.ErrFull
	}

	writeAt := mf.offset
	copy(mf.data[writeAt:writeAt+uint64(len(data))], data)
	mf.offset += uint64(len(data))

	return writeAt, nil
}

// CommitOffset persists the in-memory append cursor into the header
// word. This is the commit point: a crash before this call leaves the
// appended bytes unreferenced and the next Open sees the old cursor.
func (mf *File) CommitOffset() {
	binary.NativeEndian.PutUint64(mf.data[0:HeaderSize], mf.offset)
}

// Slice returns a view into the map spanning [a, b).
func (mf *File) Slice(a, b uint64) []byte {
	return mf.data[a:b]
}

// Sync flushes the mapping to disk. Callers gate this on strict sync
// mode; the OS page cache otherwise handles writeback on its own
// schedule.
func (mf *File) Sync() error {
	return unix.Msync(mf.data, unix.MS_SYNC)
}

// Close unmaps the file and closes the handle.
func (mf *File) Close() error {
	if err := unix.Munmap(mf.data); err != nil {
		mf.f.Close()
		return err
	}
	return mf.f.Close()
}

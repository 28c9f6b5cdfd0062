package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"

	"cantine/internal/features"
	"cantine/internal/storeerr"
)

// frameHeaderSize is [compressedLen u32][crc32 u32], the prefix that
// makes a record self-delimiting: a reader only needs the byte slice
// starting at a record's offset, never its length.
const frameHeaderSize = 8

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Serialize packs a Record into its on-disk framed, zstd-compressed
// representation. Grounded on the teacher's entry.go length-prefixed
// field encoding and compress.go's zstd wrapper, generalized from a
// single opaque payload to the recipe record's structured fields.
func Serialize(r *Record) ([]byte, error) {
	var raw bytes.Buffer

	raw.Write(r.UUID[:])
	binary.Write(&raw, binary.BigEndian, r.ID)
	writeString(&raw, r.Name)
	writeString(&raw, r.CrawlURL)
	writeStrings(&raw, r.Ingredients)
	writeStrings(&raw, r.Instructions)
	writeStrings(&raw, r.Images)

	binary.Write(&raw, binary.BigEndian, uint32(len(r.SimilarRecipeIDs)))
	for _, id := range r.SimilarRecipeIDs {
		binary.Write(&raw, binary.BigEndian, id)
	}

	if r.Features == nil {
		r.Features = features.NewFeatures()
	}
	raw.Write(r.Features.Bytes())

	compressed := zstdEncoder.EncodeAll(raw.Bytes(), make([]byte, 0, raw.Len()))

	framed := make([]byte, frameHeaderSize+len(compressed))
	binary.BigEndian.PutUint32(framed[0:4], uint32(len(compressed)))
	copy(framed[frameHeaderSize:], compressed)
	checksum := crc32.ChecksumIEEE(framed[frameHeaderSize:])
	binary.BigEndian.PutUint32(framed[4:8], checksum)

	return framed, nil
}

// Deserialize reads one record starting at the front of src. src may
// be (and in production always is) a suffix of the mapped data file
// rather than an exact-length slice: Deserialize reads only the bytes
// it owns, per the frame header's declared length.
func Deserialize(src []byte) (*Record, error) {
	if len(src) < frameHeaderSize {
		return nil, fmt.Errorf("%w: record header truncated", storeerr.ErrCodec)
	}
	compressedLen := binary.BigEndian.Uint32(src[0:4])
	wantCRC := binary.BigEndian.Uint32(src[4:8])

	end := frameHeaderSize + uint64(compressedLen)
	if end > uint64(len(src)) {
		return nil, fmt.Errorf("%w: record body truncated", storeerr.ErrCodec)
	}
	compressed := src[frameHeaderSize:end]

	if crc32.ChecksumIEEE(compressed) != wantCRC {
		return nil, fmt.Errorf("%w: record checksum mismatch", storeerr.ErrCodec)
	}

	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}

	r := &Record{}
	buf := bytes.NewReader(raw)

	if _, err := io.ReadFull(buf, r.UUID[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}
	if err := binary.Read(buf, binary.BigEndian, &r.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}

	var readErr error
	r.Name, readErr = readString(buf)
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, readErr)
	}
	r.CrawlURL, readErr = readString(buf)
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, readErr)
	}
	if r.Ingredients, readErr = readStrings(buf); readErr != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, readErr)
	}
	if r.Instructions, readErr = readStrings(buf); readErr != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, readErr)
	}
	if r.Images, readErr = readStrings(buf); readErr != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, readErr)
	}

	var simCount uint32
	if err := binary.Read(buf, binary.BigEndian, &simCount); err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}
	r.SimilarRecipeIDs = make([]uint64, simCount)
	for i := range r.SimilarRecipeIDs {
		if err := binary.Read(buf, binary.BigEndian, &r.SimilarRecipeIDs[i]); err != nil {
			return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
		}
	}

	featBytes := make([]byte, features.NumFeatures*4)
	if _, err := io.ReadFull(buf, featBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}
	r.Features, err = features.ParseFeatures(featBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storeerr.ErrCodec, err)
	}

	return r, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(buf *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(buf, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeStrings(buf *bytes.Buffer, ss []string) {
	binary.Write(buf, binary.BigEndian, uint32(len(ss)))
	for _, s := range ss {
		writeString(buf, s)
	}
}

func readStrings(buf *bytes.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(buf)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

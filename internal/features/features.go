// Package features implements the fixed-width packed numeric vector
// attached to every record, and the recipe-domain feature schema built
// on top of it.
package features

import (
	"encoding/binary"
	"fmt"
	"math"

	"cantine/internal/storeerr"
)

// Numeric is the set of primitive widths a Vector can be parameterized
// over. f32/f64 are not listed here: they are carried as uint32/uint64
// bit patterns and reinterpreted by callers that know a slot holds a
// float (see Features below).
type Numeric interface {
	~uint16 | ~uint32 | ~uint64 | ~int16 | ~int32 | ~int64
}

// Vector wraps a byte buffer of exactly N*sizeof(T) bytes, one T-wide
// slot per feature position. A slot reads as absent iff its raw bytes
// equal the sentinel supplied at Parse time.
type Vector[T Numeric] struct {
	buf   []byte
	n     int
	unset T
}

func sizeOf[T Numeric]() int {
	var z T
	switch any(z).(type) {
	case uint16, int16:
		return 2
	case uint32, int32:
		return 4
	default:
		return 8
	}
}

// New allocates a fresh Vector with every slot set to unset (absent).
func New[T Numeric](n int, unset T) *Vector[T] {
	width := sizeOf[T]()
	buf := make([]byte, n*width)
	v := &Vector[T]{buf: buf, n: n, unset: unset}
	for i := 0; i < n; i++ {
		v.putRaw(i, unset)
	}
	return v
}

// Parse wraps an existing byte buffer as a Vector, failing if its
// length isn't exactly n*sizeof(T).
func Parse[T Numeric](buf []byte, n int, unset T) (*Vector[T], error) {
	width := sizeOf[T]()
	if len(buf) != n*width {
		return nil, fmt.Errorf("%w: feature vector length %d, want %d", storeerr.ErrCorrupt, len(buf), n*width)
	}
	return &Vector[T]{buf: buf, n: n, unset: unset}, nil
}

func (v *Vector[T]) putRaw(i int, val T) {
	width := sizeOf[T]()
	off := i * width
	switch width {
	case 2:
		binary.NativeEndian.PutUint16(v.buf[off:off+2], uint16(val))
	case 4:
		binary.NativeEndian.PutUint32(v.buf[off:off+4], uint32(val))
	default:
		binary.NativeEndian.PutUint64(v.buf[off:off+8], uint64(val))
	}
}

func (v *Vector[T]) getRaw(i int) T {
	width := sizeOf[T]()
	off := i * width
	switch width {
	case 2:
		return T(binary.NativeEndian.Uint16(v.buf[off : off+2]))
	case 4:
		return T(binary.NativeEndian.Uint32(v.buf[off : off+4]))
	default:
		return T(binary.NativeEndian.Uint64(v.buf[off : off+8]))
	}
}

// Get reads slot i, returning (value, true) if present or (zero, false)
// if the slot holds the sentinel.
func (v *Vector[T]) Get(i int) (T, bool) {
	raw := v.getRaw(i)
	if raw == v.unset {
		var zero T
		return zero, false
	}
	return raw, true
}

// Set stores v at slot i. It fails if i is out of range or if val
// equals the sentinel, since that value would be indistinguishable
// from absent.
func (v *Vector[T]) Set(i int, val T) error {
	if i < 0 || i >= v.n {
		return fmt.Errorf("%w: feature index %d out of range [0,%d)", storeerr.ErrCorrupt, i, v.n)
	}
	if val == v.unset {
		return fmt.Errorf("%w: value equals sentinel, would be indistinguishable from absent", storeerr.ErrCorrupt)
	}
	v.putRaw(i, val)
	return nil
}

// Len returns the number of feature slots.
func (v *Vector[T]) Len() int { return v.n }

// Bytes borrows the underlying buffer for persistence.
func (v *Vector[T]) Bytes() []byte { return v.buf }

// Recipe feature schema: nine sortable features plus five dietary
// scores carried over from the original implementation for
// aggregation (they have no sort key and no indexed column of their
// own, so they cannot be sorted or filtered on). All fourteen slots
// are packed as uint32 bit patterns in a single Vector[uint32]; the
// three content features and the five dietary scores reinterpret
// their slot as a float32 bit pattern via
// math.Float32bits/Float32frombits.
const (
	IdxNumIngredients = iota
	IdxInstructionsLength
	IdxTotalTime
	IdxCookTime
	IdxPrepTime
	IdxCalories
	IdxFatContent
	IdxCarbContent
	IdxProteinContent
	IdxDietLowcarb
	IdxDietVegetarian
	IdxDietVegan
	IdxDietKeto
	IdxDietPaleo

	NumFeatures
)

// Sentinel is the all-ones bit pattern marking an absent uint32 slot.
const Sentinel uint32 = math.MaxUint32

// FeatureNames maps a slot index to its domain name, used by the
// aggregation and query-interpretation layers to resolve a caller's
// named filter/agg request to a slot.
var FeatureNames = [NumFeatures]string{
	IdxNumIngredients:     "num_ingredients",
	IdxInstructionsLength: "instructions_length",
	IdxTotalTime:          "total_time",
	IdxCookTime:           "cook_time",
	IdxPrepTime:           "prep_time",
	IdxCalories:           "calories",
	IdxFatContent:         "fat_content",
	IdxCarbContent:        "carbohydrate_content",
	IdxProteinContent:     "protein_content",
	IdxDietLowcarb:        "diet_lowcarb",
	IdxDietVegetarian:     "diet_vegetarian",
	IdxDietVegan:          "diet_vegan",
	IdxDietKeto:           "diet_keto",
	IdxDietPaleo:          "diet_paleo",
}

// floatSlots marks which indices store a float32 bit pattern rather
// than a plain integer.
var floatSlots = map[int]bool{
	IdxFatContent:     true,
	IdxCarbContent:    true,
	IdxProteinContent: true,
	IdxDietLowcarb:    true,
	IdxDietVegetarian: true,
	IdxDietVegan:      true,
	IdxDietKeto:       true,
	IdxDietPaleo:      true,
}

// IsFloat reports whether slot i is a float32-bits feature.
func IsFloat(i int) bool { return floatSlots[i] }

// ParseName resolves a domain feature name (as used in query JSON) to
// its slot index.
func ParseName(name string) (int, bool) {
	for i, n := range FeatureNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Features is the domain-specific wrapper around a Vector[uint32]
// matching the recipe schema above.
type Features struct {
	v *Vector[uint32]
}

// NewFeatures allocates an all-absent Features vector.
func NewFeatures() *Features {
	return &Features{v: New[uint32](NumFeatures, Sentinel)}
}

// ParseFeatures wraps an existing packed byte buffer.
func ParseFeatures(buf []byte) (*Features, error) {
	v, err := Parse[uint32](buf, NumFeatures, Sentinel)
	if err != nil {
		return nil, err
	}
	return &Features{v: v}, nil
}

// Bytes returns the packed byte representation for storage.
func (f *Features) Bytes() []byte { return f.v.Bytes() }

// SetUint stores an integer-valued feature.
func (f *Features) SetUint(i int, val uint32) error {
	if val == Sentinel {
		return fmt.Errorf("%w: value equals sentinel", storeerr.ErrCorrupt)
	}
	return f.v.Set(i, val)
}

// GetUint reads an integer-valued feature.
func (f *Features) GetUint(i int) (uint32, bool) { return f.v.Get(i) }

// SetFloat stores a float32-valued feature as its bit pattern.
func (f *Features) SetFloat(i int, val float32) error {
	bits := math.Float32bits(val)
	if bits == Sentinel {
		return fmt.Errorf("%w: value equals sentinel", storeerr.ErrCorrupt)
	}
	return f.v.Set(i, bits)
}

// GetFloat reads a float32-valued feature, reinterpreting its bit
// pattern.
func (f *Features) GetFloat(i int) (float32, bool) {
	bits, ok := f.v.Get(i)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(bits), true
}

// AsFloat64 reads any feature as a float64, promoting integer slots
// and reinterpreting float slots, for use by the sort layer where a
// single numeric column type is required regardless of the feature's
// native width.
func (f *Features) AsFloat64(i int) (float64, bool) {
	if IsFloat(i) {
		v, ok := f.GetFloat(i)
		return float64(v), ok
	}
	v, ok := f.GetUint(i)
	return float64(v), ok
}

package search

import (
	"fmt"
	"math"

	"github.com/blevesearch/bleve/v2/numeric"
)

// Cursor is the stateless pagination token: the (score, id) pair of
// the last document returned to the caller. Grounded on
// original_source's index.rs After type.
type Cursor struct {
	ScoreBits uint64
	ID        uint64
}

// Start is the sentinel meaning "beginning of results".
var Start = Cursor{ScoreBits: 0, ID: 0}

// IsStart reports whether c is the starting sentinel.
func (c Cursor) IsStart() bool { return c == Start }

// FromFloat64 builds a Cursor carrying an f64 score's raw bit pattern.
func FromFloat64(score float64, id uint64) Cursor {
	return Cursor{ScoreBits: math.Float64bits(score), ID: id}
}

// ScoreF64 reinterprets ScoreBits as an f64.
func (c Cursor) ScoreF64() float64 { return math.Float64frombits(c.ScoreBits) }

// Continues reports whether the document (score, id) belongs on the
// page that resumes after c, under the documented total order "larger
// score first, smaller id tie-break": strictly smaller score sorts
// after c, or equal score with a strictly larger id.
func (c Cursor) Continues(score float64, id uint64) bool {
	if c.IsStart() {
		return true
	}
	last := c.ScoreF64()
	if score < last {
		return true
	}
	return score == last && id > c.ID
}

// bleve stores every DocValues-backed numeric sort value — including
// "_score", which bleve also routes through this encoding so that
// SearchAfter's byte-wise comparison works uniformly across sort
// kinds — as an order-preserving prefix-coded int64 term, not a
// human-decimal string. sortTerm/parseSortTerm reproduce that encoding
// with bleve's own numeric package (the same one bleve's indexer and
// query-range construction use) rather than strconv, so a Cursor
// round-trips correctly through SearchAfter even across process
// boundaries, where only the wire (score_bits, id) pair is available.
func sortTerm(v float64) (string, error) {
	pc, err := numeric.NewPrefixCodedInt64(numeric.Float64ToInt64(v), 0)
	if err != nil {
		return "", fmt.Errorf("search: encoding cursor sort term: %w", err)
	}
	return string(pc), nil
}

func parseSortTerm(s string) (float64, error) {
	i64, err := numeric.PrefixCoded(s).Int64()
	if err != nil {
		return 0, fmt.Errorf("search: decoding cursor sort term: %w", err)
	}
	return numeric.Int64ToFloat64(i64), nil
}

// sortAfterValues renders c as the two bleve SearchAfter sort-value
// terms matching a Sort's sortSpec: the primary field's term and the
// secondary "id" tie-break term.
func (c Cursor) sortAfterValues() ([]string, error) {
	if c.IsStart() {
		return nil, nil
	}
	scoreTerm, err := sortTerm(c.ScoreF64())
	if err != nil {
		return nil, err
	}
	idTerm, err := sortTerm(float64(c.ID))
	if err != nil {
		return nil, err
	}
	return []string{scoreTerm, idTerm}, nil
}

// parseCursor decodes the Cursor encoded in a hit's raw Sort terms,
// used to build the next_cursor returned alongside a page of results.
func parseCursor(sortValues []string) (Cursor, error) {
	if len(sortValues) < 2 {
		return Cursor{}, fmt.Errorf("search: hit missing sort values for cursor")
	}
	score, err := parseSortTerm(sortValues[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("search: parsing cursor score: %w", err)
	}
	id, err := parseSortTerm(sortValues[1])
	if err != nil {
		return Cursor{}, fmt.Errorf("search: parsing cursor id: %w", err)
	}
	return FromFloat64(score, uint64(id)), nil
}

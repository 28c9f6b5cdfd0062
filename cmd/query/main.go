// Command query reads one JSON search query per line from stdin and
// writes one JSON result per line to stdout, resolving each result's
// ids against the record store. Grounded on original_source's
// bin/query.rs line-oriented protocol.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"cantine/internal/features"
	"cantine/internal/logger"
	"cantine/internal/record"
	"cantine/internal/search"
	"cantine/internal/store"
)

type rangeJSON struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type queryRequest struct {
	Fulltext string               `json:"fulltext,omitempty"`
	Sort     string               `json:"sort,omitempty"`
	NumItems int                  `json:"num_items,omitempty"`
	Filter   map[string]rangeJSON `json:"filter,omitempty"`
	Agg      map[string][]rangeJSON `json:"agg,omitempty"`
	After    *[2]uint64           `json:"after,omitempty"`
}

type queryResult struct {
	Items      []record.Card        `json:"items"`
	TotalFound uint64                `json:"total_found"`
	After      *[2]uint64            `json:"after,omitempty"`
	Agg        map[string][]uint64   `json:"agg,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func toRange(r rangeJSON) search.Range {
	rng := search.Range{Min: -(1 << 62), Max: 1 << 62}
	if r.Min != nil {
		rng.Min = *r.Min
	}
	if r.Max != nil {
		rng.Max = *r.Max
	}
	return rng
}

func buildRequest(q *queryRequest) (*search.SearchRequest, error) {
	sortKey, ok := search.ParseSortName(q.Sort)
	if !ok {
		return nil, fmt.Errorf("unknown sort %q", q.Sort)
	}

	req := &search.SearchRequest{
		Fulltext: q.Fulltext,
		Sort:     sortKey,
		NumItems: q.NumItems,
	}
	if q.After != nil {
		req.After = search.Cursor{ScoreBits: q.After[0], ID: q.After[1]}
	}
	for name, r := range q.Filter {
		idx, ok := features.ParseName(name)
		if !ok {
			return nil, fmt.Errorf("unknown filter feature %q", name)
		}
		req.Filter = append(req.Filter, search.FeatureFilter{FeatureIndex: idx, Range: toRange(r)})
	}
	for name, ranges := range q.Agg {
		idx, ok := features.ParseName(name)
		if !ok {
			return nil, fmt.Errorf("unknown aggregation feature %q", name)
		}
		fq := search.FeatureRequest{FeatureIndex: idx}
		for _, r := range ranges {
			fq.Ranges = append(fq.Ranges, toRange(r))
		}
		req.Agg = append(req.Agg, fq)
	}
	return req, nil
}

func resolveCards(s *store.RecordStore, ids []uint64) ([]record.Card, error) {
	cards := make([]record.Card, 0, len(ids))
	for _, id := range ids {
		r, ok, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cards = append(cards, record.ToCard(r, uuid.UUID(r.UUID).String()))
	}
	return cards, nil
}

func main() {
	dataDir := flag.String("data-dir", "./data", "store directory")
	indexDir := flag.String("index-dir", "./index", "search index directory")
	flag.Parse()

	logger.Setup(os.Stderr)

	s, err := store.Open(*dataDir)
	if err != nil {
		logger.Fatal("opening record store", "err", err)
	}
	defer s.Close()

	idx, err := search.Open(*indexDir)
	if err != nil {
		logger.Fatal("opening search index", "err", err)
	}
	defer idx.Close()

	ctx := context.Background()
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for in.Scan() {
		line := in.Bytes()
		if len(line) == 0 {
			continue
		}

		var q queryRequest
		var res queryResult
		if err := json.Unmarshal(line, &q); err != nil {
			res.Error = err.Error()
			writeResult(out, &res)
			continue
		}

		sreq, err := buildRequest(&q)
		if err != nil {
			res.Error = err.Error()
			writeResult(out, &res)
			continue
		}

		sres, err := idx.Search(ctx, sreq)
		if err != nil {
			res.Error = err.Error()
			writeResult(out, &res)
			continue
		}

		cards, err := resolveCards(s, sres.Items)
		if err != nil {
			res.Error = err.Error()
			writeResult(out, &res)
			continue
		}

		res.Items = cards
		res.TotalFound = sres.TotalFound
		if sres.After != nil {
			res.After = &[2]uint64{sres.After.ScoreBits, sres.After.ID}
		}
		if len(sres.Agg) > 0 {
			res.Agg = make(map[string][]uint64, len(sres.Agg))
			for idx, rv := range sres.Agg {
				res.Agg[features.FeatureNames[idx]] = []uint64(rv)
			}
		}
		writeResult(out, &res)
	}
}

func writeResult(out *bufio.Writer, res *queryResult) {
	enc, err := json.Marshal(res)
	if err != nil {
		logger.Error("marshaling result", "err", err)
		return
	}
	out.Write(enc)
	out.WriteByte('\n')
	out.Flush()
}

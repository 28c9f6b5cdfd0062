// Command verify walks a store directory and search index, re-derives
// the record store's in-memory indexes from offsets.bin, cross-checks
// them against the search index, and optionally verifies blake3
// content hashes. A supplemental CLI not in the distilled
// specification, added from the teacher's RepairManager.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cantine/internal/logger"
	"cantine/internal/repair"
	"cantine/internal/search"
	"cantine/internal/store"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "store directory")
	indexDir := flag.String("index-dir", "./index", "search index directory")
	checkHashes := flag.Bool("check-hashes", false, "re-derive and compare blake3 content hashes")
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

	report, err := repair.CheckConsistency(context.Background(), s, idx)
	if err != nil {
		logger.Fatal("consistency check failed", "err", err)
	}

	if *checkHashes {
		expected := make(map[uint64][32]byte)
		s.ForEachID(func(id uint64) {
			r, ok, err := s.GetByID(id)
			if err != nil || !ok {
				return
			}
			expected[id] = repair.ContentHash(r)
		})
		if err := repair.VerifyHashes(report, s, expected); err != nil {
			logger.Fatal("hash verification failed", "err", err)
		}
	}

	fmt.Printf("store=%d index=%d orphans=%d missing=%d hash_mismatches=%d\n",
		report.TotalInStore, report.TotalInIndex,
		len(report.OrphanIDs), len(report.MissingIDs), len(report.HashMismatchIDs))

	if !report.Clean() {
		os.Exit(1)
	}
}

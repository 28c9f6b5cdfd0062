package record

import (
	"bytes"
	"testing"

	"cantine/internal/features"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	f := features.NewFeatures()
	f.SetUint(features.IdxNumIngredients, 7)
	f.SetFloat(features.IdxFatContent, 3.5)

	r := &Record{
		ID:               42,
		Name:             "Pancakes",
		CrawlURL:         "https://example.test/pancakes",
		Ingredients:      []string{"flour", "egg", "milk"},
		Instructions:     []string{"mix", "cook"},
		Images:           []string{"a.jpg"},
		SimilarRecipeIDs: []uint64{1, 2, 3},
		Features:         f,
	}
	r.UUID = [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	encoded, err := Serialize(r)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Deserialize must be self-delimiting: appending trailing garbage
	// (simulating a suffix of the data file beyond this record) must
	// not affect decoding.
	withTrailer := append(append([]byte{}, encoded...), []byte("trailing-garbage")...)

	got, err := Deserialize(withTrailer)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.ID != r.ID || got.Name != r.Name || got.CrawlURL != r.CrawlURL {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !bytes.Equal(got.UUID[:], r.UUID[:]) {
		t.Fatalf("uuid mismatch")
	}
	if len(got.Ingredients) != 3 || got.Ingredients[1] != "egg" {
		t.Fatalf("ingredients mismatch: %v", got.Ingredients)
	}
	if gotN, ok := got.Features.GetUint(features.IdxNumIngredients); !ok || gotN != 7 {
		t.Fatalf("features mismatch: %v %v", gotN, ok)
	}
}

func TestDeserializeCorruptChecksum(t *testing.T) {
	r := &Record{Features: features.NewFeatures()}
	encoded, err := Serialize(r)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	encoded[len(encoded)-1] ^= 0xFF

	if _, err := Deserialize(encoded); err == nil {
		t.Fatalf("expected checksum mismatch to fail")
	}
}

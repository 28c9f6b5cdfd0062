// Package record defines the Record type stored by the record store
// and the self-delimiting codec used to serialize it to the mapped
// data file.
package record

import "cantine/internal/features"

// Record is the unit of storage. The core treats everything beyond
// ID/UUID as opaque payload; this is the concrete recipe-domain record
// this implementation stores.
type Record struct {
	ID               uint64
	UUID             [16]byte
	Name             string
	CrawlURL         string
	Ingredients      []string
	Instructions     []string
	Images           []string
	SimilarRecipeIDs []uint64
	Features         *features.Features
}

// GetID satisfies the record contract's id() accessor.
func (r *Record) GetID() uint64 { return r.ID }

// GetUUID satisfies the record contract's uuid() accessor.
func (r *Record) GetUUID() [16]byte { return r.UUID }

// Card is the lightweight projection returned in search results,
// mirroring the original implementation's RecipeCard: the full
// ingredient/instruction text is dropped, only browse-friendly fields
// and a handful of headline features remain.
type Card struct {
	Name       string  `json:"name"`
	UUID       string  `json:"uuid"`
	CrawlURL   string  `json:"crawl_url"`
	NumIngred  uint32  `json:"num_ingredients"`
	InstrLen   uint32  `json:"instructions_length"`
	TotalTime  *uint32 `json:"total_time,omitempty"`
	Calories   *uint32 `json:"calories,omitempty"`
}

// ToCard projects a Record down to its Card.
func ToCard(r *Record, uuidString string) Card {
	c := Card{
		Name:     r.Name,
		UUID:     uuidString,
		CrawlURL: r.CrawlURL,
	}
	if v, ok := r.Features.GetUint(features.IdxNumIngredients); ok {
		c.NumIngred = v
	}
	if v, ok := r.Features.GetUint(features.IdxInstructionsLength); ok {
		c.InstrLen = v
	}
	if v, ok := r.Features.GetUint(features.IdxTotalTime); ok {
		c.TotalTime = &v
	}
	if v, ok := r.Features.GetUint(features.IdxCalories); ok {
		c.Calories = &v
	}
	return c
}

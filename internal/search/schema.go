package search

import (
	"github.com/blevesearch/bleve/v2/mapping"

	"cantine/internal/features"
)

// BuildMapping constructs the document mapping backing every record:
// a tokenized "fulltext" field, a stored-only opaque "features_bincode"
// bytes column the aggregation collector re-parses, an "id" numeric
// field with doc values for sort/SearchAfter, and one fast-access
// numeric "features.<name>" column per sortable feature so each can be
// sorted on without touching the packed block.
func BuildMapping() mapping.IndexMapping {
	indexMapping := mapping.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "standard"

	doc := mapping.NewDocumentMapping()

	fulltext := mapping.NewTextFieldMapping()
	fulltext.Analyzer = "standard"
	fulltext.Store = false
	fulltext.IncludeInAll = false
	doc.AddFieldMappingsAt("fulltext", fulltext)

	idField := mapping.NewNumericFieldMapping()
	idField.Store = true
	idField.DocValues = true
	idField.IncludeInAll = false
	doc.AddFieldMappingsAt("id", idField)

	bincode := mapping.NewTextFieldMapping()
	bincode.Index = false
	bincode.Store = true
	bincode.IncludeInAll = false
	bincode.Analyzer = ""
	doc.AddFieldMappingsAt("features_bincode", bincode)

	featuresDoc := mapping.NewDocumentMapping()
	for i := 0; i < features.NumFeatures; i++ {
		if !isSortable(i) {
			continue
		}
		nf := mapping.NewNumericFieldMapping()
		nf.Store = false
		nf.DocValues = true
		nf.IncludeInAll = false
		featuresDoc.AddFieldMappingsAt(features.FeatureNames[i], nf)
	}
	doc.AddSubDocumentMapping("features", featuresDoc)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// isSortable reports whether feature slot i backs one of the ten
// documented sort keys. The five supplemental diet_* slots get no
// numeric column, so they are usable for aggregation only.
func isSortable(i int) bool {
	switch i {
	case features.IdxNumIngredients, features.IdxInstructionsLength, features.IdxTotalTime,
		features.IdxCookTime, features.IdxPrepTime, features.IdxCalories,
		features.IdxFatContent, features.IdxCarbContent, features.IdxProteinContent:
		return true
	default:
		return false
	}
}

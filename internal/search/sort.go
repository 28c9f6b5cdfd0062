package search

import "cantine/internal/features"

// Sort names one of the ten supported orderings: text relevance or one
// of the nine sortable features.
type Sort int

const (
	SortRelevance Sort = iota
	SortNumIngredients
	SortInstructionsLength
	SortTotalTime
	SortCookTime
	SortPrepTime
	SortCalories
	SortFatContent
	SortCarbContent
	SortProteinContent

	numSorts
)

// featureOf maps a feature-backed Sort to its slot in the features
// package. SortRelevance has no corresponding slot.
var featureOf = [numSorts]int{
	SortRelevance:          -1,
	SortNumIngredients:     features.IdxNumIngredients,
	SortInstructionsLength: features.IdxInstructionsLength,
	SortTotalTime:          features.IdxTotalTime,
	SortCookTime:           features.IdxCookTime,
	SortPrepTime:           features.IdxPrepTime,
	SortCalories:           features.IdxCalories,
	SortFatContent:         features.IdxFatContent,
	SortCarbContent:        features.IdxCarbContent,
	SortProteinContent:     features.IdxProteinContent,
}

// FeatureIndex returns the features package slot backing s, or -1 for
// SortRelevance.
func (s Sort) FeatureIndex() int { return featureOf[s] }

// IsFloat reports whether s sorts by a float32-bits feature.
func (s Sort) IsFloat() bool {
	idx := s.FeatureIndex()
	return idx >= 0 && features.IsFloat(idx)
}

// fieldName returns the bleve document field this sort order reads,
// one fast-access numeric column per sortable feature (see schema.go),
// or the reserved "_score" pseudo-field for relevance.
func (s Sort) fieldName() string {
	if s == SortRelevance {
		return "_score"
	}
	return "features." + features.FeatureNames[s.FeatureIndex()]
}

// sortNames is the JSON-facing name for each Sort, matching the
// conceptual query schema's `sort` enum.
var sortNames = [numSorts]string{
	SortRelevance:          "Relevance",
	SortNumIngredients:     "NumIngredients",
	SortInstructionsLength: "InstructionsLength",
	SortTotalTime:          "TotalTime",
	SortCookTime:           "CookTime",
	SortPrepTime:           "PrepTime",
	SortCalories:           "Calories",
	SortFatContent:         "FatContent",
	SortCarbContent:        "CarbContent",
	SortProteinContent:     "ProteinContent",
}

// Name returns s's JSON-facing name.
func (s Sort) Name() string { return sortNames[s] }

// ParseSortName resolves a JSON-facing sort name to a Sort.
func ParseSortName(name string) (Sort, bool) {
	if name == "" {
		return SortRelevance, true
	}
	for i, n := range sortNames {
		if n == name {
			return Sort(i), true
		}
	}
	return 0, false
}

// sortSpec returns the two-level bleve sort spec (primary field
// descending, "id" ascending as the tie-break) backing cursor
// pagination's documented total order: larger score first, smaller id
// second.
func (s Sort) sortSpec() []string {
	return []string{"-" + s.fieldName(), "id"}
}

package pipeline

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/xsell-cli/internal/model"
)

// Aggregate deduplicates recs by product name and ranks them by confidence,
// then estimated value, then input order. topN > 0 truncates the ranked list.
// The input slice is not modified.
func Aggregate(recs []model.ScoredRecommendation, topN int) []model.ScoredRecommendation {
	type ranked struct {
		rec model.ScoredRecommendation
		idx int
	}

	fold := cases.Fold()
	byKey := make(map[string]int, len(recs))
	kept := make([]ranked, 0, len(recs))
	for i, r := range recs {
		key := productKey(fold, r.ProductName)
		j, seen := byKey[key]
		if !seen {
			byKey[key] = len(kept)
			kept = append(kept, ranked{rec: r, idx: i})
			continue
		}
		if outranks(r, kept[j].rec) {
			kept[j] = ranked{rec: r, idx: i}
		}
	}

	slices.SortStableFunc(kept, func(a, b ranked) int {
		if c := cmp.Compare(b.rec.ConfidenceScore, a.rec.ConfidenceScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.rec.EstimatedValue, a.rec.EstimatedValue); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})

	out := make([]model.ScoredRecommendation, len(kept))
	for i, k := range kept {
		out[i] = k.rec
	}
	return TopN(out, topN)
}

// outranks reports whether a beats b as the survivor of a duplicate pair.
// Equal candidates keep the first one seen.
func outranks(a, b model.ScoredRecommendation) bool {
	if a.ConfidenceScore != b.ConfidenceScore {
		return a.ConfidenceScore > b.ConfidenceScore
	}
	return a.EstimatedValue > b.EstimatedValue
}

// TopN truncates an already ranked list. n <= 0 keeps everything.
func TopN(recs []model.ScoredRecommendation, n int) []model.ScoredRecommendation {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[:n]
}

// productKey normalizes a product name for duplicate detection. fold is not
// safe for concurrent use, so callers create one per operation.
func productKey(fold cases.Caser, name string) string {
	return fold.String(strings.Join(strings.Fields(name), " "))
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Min(1, math.Max(0, c))
}

func clampValue(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

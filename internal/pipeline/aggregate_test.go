package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xsell-cli/internal/model"
)

func rec(name string, conf, value float64) model.ScoredRecommendation {
	return model.ScoredRecommendation{
		ProductName:     name,
		Type:            model.RecommendationCrossSell,
		ConfidenceScore: conf,
		EstimatedValue:  value,
	}
}

func TestAggregate_DedupKeepsHigherConfidence(t *testing.T) {
	t.Parallel()
	got := Aggregate([]model.ScoredRecommendation{
		rec("Advanced Security Suite", 0.6, 1000),
		rec("Advanced Security Suite", 0.85, 500),
	}, 0)

	require.Len(t, got, 1)
	assert.InDelta(t, 0.85, got[0].ConfidenceScore, 1e-9)
	assert.InDelta(t, 500.0, got[0].EstimatedValue, 1e-9)
}

func TestAggregate_DedupTieBreaks(t *testing.T) {
	t.Parallel()

	t.Run("higher value wins on equal confidence", func(t *testing.T) {
		t.Parallel()
		got := Aggregate([]model.ScoredRecommendation{
			rec("Premium Support", 0.7, 100),
			rec("Premium Support", 0.7, 300),
		}, 0)
		require.Len(t, got, 1)
		assert.InDelta(t, 300.0, got[0].EstimatedValue, 1e-9)
	})

	t.Run("first seen wins on full tie", func(t *testing.T) {
		t.Parallel()
		first := rec("Premium Support", 0.7, 100)
		first.Rationale = "first"
		second := rec("Premium Support", 0.7, 100)
		second.Rationale = "second"

		got := Aggregate([]model.ScoredRecommendation{first, second}, 0)
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Rationale)
	})
}

func TestAggregate_DedupIgnoresCaseAndSpacing(t *testing.T) {
	t.Parallel()
	got := Aggregate([]model.ScoredRecommendation{
		rec("Cloud  Backup Pro", 0.4, 10),
		rec("cloud backup pro ", 0.9, 10),
		rec("Analytics Dashboard", 0.5, 10),
	}, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "cloud backup pro ", got[0].ProductName)
	assert.Equal(t, "Analytics Dashboard", got[1].ProductName)
}

func TestAggregate_Ordering(t *testing.T) {
	t.Parallel()
	got := Aggregate([]model.ScoredRecommendation{
		rec("A", 0.4, 100),
		rec("B", 0.9, 50),
		rec("C", 0.9, 200),
	}, 0)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"C", "B", "A"}, names(got))
	assert.InDelta(t, 200.0, got[0].EstimatedValue, 1e-9)
	assert.InDelta(t, 50.0, got[1].EstimatedValue, 1e-9)
	assert.InDelta(t, 100.0, got[2].EstimatedValue, 1e-9)
}

func TestAggregate_FullTieKeepsInputOrder(t *testing.T) {
	t.Parallel()
	got := Aggregate([]model.ScoredRecommendation{
		rec("X", 0.5, 10),
		rec("Y", 0.5, 10),
		rec("Z", 0.5, 10),
	}, 0)
	assert.Equal(t, []string{"X", "Y", "Z"}, names(got))
}

func TestAggregate_TopN(t *testing.T) {
	t.Parallel()
	in := []model.ScoredRecommendation{
		rec("A", 0.1, 0),
		rec("B", 0.2, 0),
		rec("C", 0.3, 0),
	}

	assert.Equal(t, []string{"C", "B"}, names(Aggregate(in, 2)))
	assert.Len(t, Aggregate(in, 0), 3)
	assert.Len(t, Aggregate(in, 10), 3)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := []model.ScoredRecommendation{
		rec("A", 0.1, 0),
		rec("B", 0.9, 0),
		rec("A", 0.5, 0),
	}
	orig := append([]model.ScoredRecommendation(nil), in...)

	_ = Aggregate(in, 1)
	assert.Equal(t, orig, in)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()
	got := Aggregate(nil, 3)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAggregate_Deterministic(t *testing.T) {
	t.Parallel()
	in := []model.ScoredRecommendation{
		rec("A", 0.5, 10), rec("B", 0.5, 20), rec("a", 0.5, 20), rec("C", 0.7, 5),
	}
	assert.Equal(t, Aggregate(in, 0), Aggregate(in, 0))
}

func TestClamp(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, clampConfidence(1.7), 1e-9)
	assert.InDelta(t, 0.0, clampConfidence(-0.2), 1e-9)
	assert.InDelta(t, 0.0, clampConfidence(math.NaN()), 1e-9)
	assert.InDelta(t, 0.42, clampConfidence(0.42), 1e-9)
	assert.InDelta(t, 0.0, clampValue(-5), 1e-9)
	assert.InDelta(t, 0.0, clampValue(math.NaN()), 1e-9)
	assert.InDelta(t, 1500.0, clampValue(1500), 1e-9)
}

func names(recs []model.ScoredRecommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ProductName
	}
	return out
}

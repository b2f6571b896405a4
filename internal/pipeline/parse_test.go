package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xsell-cli/internal/model"
)

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var se *StageError
	require.True(t, errors.As(err, &se), "expected StageError, got %T", err)
	assert.Equal(t, kind, se.Kind)
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose around", "Here you go:\n{\"a\":{\"b\":2}}\nThanks", `{"a":{"b":2}}`, true},
		{"no object", "1. Premium Support", "", false},
		{"reversed braces", "} nope {", "", false},
		{"bare array", `[{"a":1},{"a":2}]`, `[{"a":1},{"a":2}]`, true},
		{"fenced array", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`, true},
		{"array in prose", "Candidates:\n[{\"a\":1}]", `[{"a":1}]`, true},
		{"braces inside bullets", "- Suite {premium tier}\n- Support", "", false},
		{"brackets inside bullets", "- Suite [beta]\n- Support", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := extractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCandidates_JSON(t *testing.T) {
	t.Parallel()
	text := `{"candidates":[
		{"product_name":"Advanced Security Suite","recommendation_type":"Cross-Sell","rationale":"gap","estimated_value_hint":"$20,000"},
		{"product_name":"Premium Support","recommendation_type":"upsell","estimated_value_hint":15000},
		{"product_name":"Mystery","recommendation_type":"bundle"}
	]}`

	got, err := parseCandidates(text, 7)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, model.RawCandidate{
		ProductName: "Advanced Security Suite",
		Type:        model.RecommendationCrossSell,
		Rationale:   "gap",
		ValueHint:   "$20,000",
	}, got[0])
	assert.Equal(t, model.RecommendationUpsell, got[1].Type)
	assert.Equal(t, "15000", got[1].ValueHint)
	assert.Equal(t, model.RecommendationCrossSell, got[2].Type)
}

func TestParseCandidates_BareArray(t *testing.T) {
	t.Parallel()
	text := `[
		{"product_name":"Advanced Security Suite","recommendation_type":"cross-sell","rationale":"gap"},
		{"product_name":"Premium Support","recommendation_type":"upsell"}
	]`

	got, err := parseCandidates(text, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Advanced Security Suite", got[0].ProductName)
	assert.Equal(t, "gap", got[0].Rationale)
	assert.Equal(t, model.RecommendationUpsell, got[1].Type)

	got, err = parseCandidates(`[{"product_name":"Analytics Dashboard"}]`, 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Analytics Dashboard", got[0].ProductName)
}

func TestParseCandidates_BulletsWithBraces(t *testing.T) {
	t.Parallel()
	got, err := parseCandidates("- Advanced Security Suite {premium tier}\n- Premium Support", 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Advanced Security Suite {premium tier}", got[0].ProductName)
	assert.Equal(t, "Premium Support", got[1].ProductName)
}

func TestParseCandidates_SchemaViolation(t *testing.T) {
	t.Parallel()
	_, err := parseCandidates(`{"candidates":[{"recommendation_type":"upsell"}]}`, 7)
	requireKind(t, err, KindMalformedOutput)

	_, err = parseCandidates(`{"items":[]}`, 7)
	requireKind(t, err, KindMalformedOutput)
}

func TestParseCandidates_Empty(t *testing.T) {
	t.Parallel()
	_, err := parseCandidates(`{"candidates":[]}`, 7)
	requireKind(t, err, KindEmptyResult)

	_, err = parseCandidates("   ", 7)
	requireKind(t, err, KindEmptyResult)
}

func TestParseCandidates_LineFallback(t *testing.T) {
	t.Parallel()
	text := `Based on the analysis, here is the list.
Here are the products:
1. Advanced Security Suite
- Analytics Dashboard
• Premium Support

* Data Integration Hub`

	got, err := parseCandidates(text, 7)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "Advanced Security Suite", got[0].ProductName)
	assert.Equal(t, "Analytics Dashboard", got[1].ProductName)
	assert.Equal(t, "Premium Support", got[2].ProductName)
	assert.Equal(t, "Data Integration Hub", got[3].ProductName)
	for _, c := range got {
		assert.Equal(t, model.RecommendationCrossSell, c.Type)
		assert.Empty(t, c.Rationale)
	}
}

func TestParseBulletLines_KeepsLeadingDigits(t *testing.T) {
	t.Parallel()
	text := "1. 365 Analytics Cloud\n2) 24/7 Premium Support\n- 3D Design Studio\n10. Data Hub\nSecurity Suite"

	assert.Equal(t, []string{
		"365 Analytics Cloud",
		"24/7 Premium Support",
		"3D Design Studio",
		"Data Hub",
		"Security Suite",
	}, parseBulletLines(text))
}

func TestParseCandidates_Cap(t *testing.T) {
	t.Parallel()
	text := "- A\n- B\n- C\n- D"

	got, err := parseCandidates(text, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = parseCandidates(text, 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestParseScores_JSON(t *testing.T) {
	t.Parallel()
	p := sampleProfile()
	text := `{"scores":[
		{"product_name":"premium support","recommendation_type":"upsell","confidence_score":0.72,"estimated_value":"$12,500","rationale":"usage"},
		{"product_name":"Advanced Security Suite","confidence_score":1.4,"estimated_value":-3}
	]}`

	got, err := parseScores(text, twoCandidates(), p, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// aligned to candidate order, original spelling kept
	assert.Equal(t, "Advanced Security Suite", got[0].ProductName)
	assert.InDelta(t, 1.0, got[0].ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.0, got[0].EstimatedValue, 1e-9)
	assert.Equal(t, "security gap", got[0].Rationale)

	assert.Equal(t, "Premium Support", got[1].ProductName)
	assert.InDelta(t, 0.72, got[1].ConfidenceScore, 1e-9)
	assert.InDelta(t, 12500.0, got[1].EstimatedValue, 1e-9)
	assert.Equal(t, "usage", got[1].Rationale)
}

func TestParseScores_StringConfidence(t *testing.T) {
	t.Parallel()
	p := sampleProfile()
	text := `{"scores":[
		{"product_name":"Advanced Security Suite","confidence_score":"0.85","estimated_value":45000},
		{"product_name":"Premium Support","confidence_score":"72%","estimated_value":"$9,000"}
	]}`

	got, err := parseScores(text, twoCandidates(), p, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.85, got[0].ConfidenceScore, 1e-9)
	assert.InDelta(t, 45000.0, got[0].EstimatedValue, 1e-9)
	assert.InDelta(t, 0.72, got[1].ConfidenceScore, 1e-9)
	assert.InDelta(t, 9000.0, got[1].EstimatedValue, 1e-9)
}

func TestParseScores_UncoercibleConfidenceIsNeutralForThatEntry(t *testing.T) {
	t.Parallel()
	p := sampleProfile()
	text := `{"scores":[
		{"product_name":"Advanced Security Suite","confidence_score":"high","estimated_value":45000},
		{"product_name":"Premium Support","confidence_score":0.9,"estimated_value":5000}
	]}`

	got, err := parseScores(text, twoCandidates(), p, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0].ConfidenceScore, 1e-9)
	assert.InDelta(t, 45000.0, got[0].EstimatedValue, 1e-9)
	assert.InDelta(t, 0.9, got[1].ConfidenceScore, 1e-9)
}

func TestParseScores_BareArray(t *testing.T) {
	t.Parallel()
	text := `[{"product_name":"Premium Support","confidence_score":0.7,"estimated_value":8000}]`

	got, err := parseScores(text, twoCandidates(), sampleProfile(), 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got[1].ConfidenceScore, 1e-9)
}

func TestParseConfidence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.85, 0.85, true},
		{"0.85", 0.85, true},
		{" 85% ", 0.85, true},
		{"high", 0, false},
		{"", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseConfidence(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}
}

func TestParseScores_MissingCandidateIsNeutral(t *testing.T) {
	t.Parallel()
	p := sampleProfile()
	text := `{"scores":[{"product_name":"Premium Support","confidence_score":0.9,"estimated_value":5000}]}`

	got, err := parseScores(text, twoCandidates(), p, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0].ConfidenceScore, 1e-9)
	assert.InDelta(t, float64(p.OpportunityAmount), got[0].EstimatedValue, 1e-9)
	assert.InDelta(t, 0.9, got[1].ConfidenceScore, 1e-9)
}

func TestParseScores_NoMatchIsMalformed(t *testing.T) {
	t.Parallel()
	_, err := parseScores(`{"scores":[{"product_name":"Unknown","confidence_score":0.9}]}`, twoCandidates(), sampleProfile(), 0.5)
	requireKind(t, err, KindMalformedOutput)

	_, err = parseScores(`{"scores":[]}`, twoCandidates(), sampleProfile(), 0.5)
	requireKind(t, err, KindMalformedOutput)
}

func TestParseScores_BlockFallback(t *testing.T) {
	t.Parallel()
	p := sampleProfile()
	text := `Product: Advanced Security Suite
Type: Cross-Sell
Score: 85
Rationale: strong fit
Value: $40,000
---
Product: Premium Support
Type: Upsell
Score: high
Value: call us
---
Product: Orphan
Score: 99`

	got, err := parseScores(text, twoCandidates(), p, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.InDelta(t, 0.85, got[0].ConfidenceScore, 1e-9)
	assert.InDelta(t, 40000.0, got[0].EstimatedValue, 1e-9)
	assert.Equal(t, "strong fit", got[0].Rationale)

	// unparsable score and value fall back
	assert.InDelta(t, 0.5, got[1].ConfidenceScore, 1e-9)
	assert.InDelta(t, float64(p.OpportunityAmount), got[1].EstimatedValue, 1e-9)
	assert.Equal(t, model.RecommendationUpsell, got[1].Type)
}

func TestParseScores_NoBlocks(t *testing.T) {
	t.Parallel()
	_, err := parseScores("I could not score these.", twoCandidates(), sampleProfile(), 0.5)
	requireKind(t, err, KindMalformedOutput)
}

func TestParseMoney(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1500.5, 1500.5, true},
		{42, 42, true},
		{int64(7), 7, true},
		{json.Number("12.5"), 12.5, true},
		{"$25,000", 25000, true},
		{"25000 USD", 25000, true},
		{"lots", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseMoney(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}
}

package model

import "strings"

// RecommendationType tags a candidate as cross-sell or upsell.
type RecommendationType string

const (
	RecommendationCrossSell RecommendationType = "cross-sell"
	RecommendationUpsell    RecommendationType = "upsell"
)

// ParseRecommendationType normalizes free-form type labels. Anything that
// is not recognizably an upsell is treated as a cross-sell.
func ParseRecommendationType(s string) (RecommendationType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cross-sell", "crosssell", "cross sell":
		return RecommendationCrossSell, true
	case "upsell", "up-sell", "up sell":
		return RecommendationUpsell, true
	default:
		return RecommendationCrossSell, false
	}
}

// RawCandidate is an unscored suggestion produced by product affinity.
type RawCandidate struct {
	ProductName string             `json:"product_name"`
	Type        RecommendationType `json:"recommendation_type"`
	Rationale   string             `json:"rationale"`
	ValueHint   string             `json:"estimated_value_hint,omitempty"`
}

// ScoredRecommendation is a fully qualified recommendation.
type ScoredRecommendation struct {
	ProductName     string             `json:"product_name"`
	Type            RecommendationType `json:"recommendation_type"`
	ConfidenceScore float64            `json:"confidence_score"`
	Rationale       string             `json:"rationale"`
	EstimatedValue  float64            `json:"estimated_value"`
}

// Outcome classifies how a pipeline run ended.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeDegraded        Outcome = "degraded"
	OutcomePipelineFailure Outcome = "pipeline_failure"
)

// RecommendationResult is the response returned for one customer.
type RecommendationResult struct {
	CustomerID      string                 `json:"customer_id"`
	Success         bool                   `json:"success"`
	Outcome         Outcome                `json:"outcome"`
	ResearchReport  string                 `json:"research_report"`
	Recommendations []ScoredRecommendation `json:"recommendations"`
	StageErrors     map[string]string      `json:"stage_errors,omitempty"`
}

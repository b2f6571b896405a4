package pipeline

import (
	"github.com/sells-group/xsell-cli/internal/model"
)

// Assemble packages the final state into the caller-facing result. ranked is
// the aggregated recommendation list; it is ignored when success is false.
func Assemble(customerID string, state AnalysisState, success bool, ranked []model.ScoredRecommendation) model.RecommendationResult {
	res := model.RecommendationResult{
		CustomerID:      customerID,
		Success:         success,
		ResearchReport:  state.ReportText.OrElse(""),
		Recommendations: []model.ScoredRecommendation{},
	}

	switch {
	case !success:
		res.Outcome = model.OutcomePipelineFailure
	case len(state.StageErrors) > 0:
		res.Outcome = model.OutcomeDegraded
	default:
		res.Outcome = model.OutcomeSuccess
	}

	if success && len(ranked) > 0 {
		res.Recommendations = append(res.Recommendations, ranked...)
	}

	if len(state.StageErrors) > 0 {
		res.StageErrors = make(map[string]string, len(state.StageErrors))
		for stage, msg := range state.StageErrors {
			res.StageErrors[string(stage)] = msg
		}
	}
	return res
}

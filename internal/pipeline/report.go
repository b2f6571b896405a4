package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/reasoning"
)

// ReportStage writes the narrative research report.
type ReportStage struct {
	caller
	topN   int
	filter *Filter
}

// NewReportStage creates the report stage. topN limits how many ranked
// recommendations the report covers.
func NewReportStage(svc reasoning.Service, prompt Prompt, temperature float64, topN int) *ReportStage {
	return &ReportStage{
		caller: caller{svc: svc, prompt: prompt, temperature: temperature},
		topN:   topN,
	}
}

func (s *ReportStage) Name() StageName { return StageReportGeneration }

func (s *ReportStage) setFilter(f *Filter) { s.filter = f }

func (s *ReportStage) Run(ctx context.Context, state AnalysisState) (PartialUpdate, error) {
	recs := TopN(eligible(zap.L().With(zap.String("customer_id", state.Profile.CustomerID)), s.filter, state), s.topN)

	var b strings.Builder
	writeProfile(&b, state.Profile)
	writeFindings(&b, state.PatternFindings)
	writeRecommendations(&b, recs)
	if len(state.StageErrors) > 0 {
		fmt.Fprintf(&b, "\nNote: some analysis steps were unavailable; scores may be estimates.\n")
	}

	resp, err := s.complete(ctx, StageReportGeneration, b.String())
	if err != nil {
		return PartialUpdate{}, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return PartialUpdate{Usage: resp.Usage}, emptyf("empty report")
	}
	return PartialUpdate{ReportText: Some(text), Usage: resp.Usage}, nil
}

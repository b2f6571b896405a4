package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/xsell-cli/internal/reasoning"
)

// PatternStage describes usage gaps and engagement patterns as free text.
type PatternStage struct {
	caller
	underutilized float64
	now           clock
}

// NewPatternStage creates the pattern analysis stage.
func NewPatternStage(svc reasoning.Service, prompt Prompt, temperature, underutilizedThreshold float64) *PatternStage {
	return &PatternStage{
		caller:        caller{svc: svc, prompt: prompt, temperature: temperature},
		underutilized: underutilizedThreshold,
		now:           time.Now,
	}
}

func (s *PatternStage) Name() StageName { return StagePatternAnalysis }

func (s *PatternStage) Run(ctx context.Context, state AnalysisState) (PartialUpdate, error) {
	var b strings.Builder
	writeProfile(&b, state.Profile)
	writeUsageSignals(&b, state.Profile, s.underutilized, s.now())

	resp, err := s.complete(ctx, StagePatternAnalysis, b.String())
	if err != nil {
		return PartialUpdate{}, err
	}

	findings := strings.TrimSpace(resp.Text)
	if findings == "" {
		return PartialUpdate{Usage: resp.Usage}, emptyf("no findings returned")
	}
	return PartialUpdate{PatternFindings: Some(findings), Usage: resp.Usage}, nil
}

package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/reasoning"
)

// Stage is one reasoning step. It reads a snapshot of the accumulated state
// and returns a partial update for its own output field, or an error.
type Stage interface {
	Name() StageName
	Run(ctx context.Context, state AnalysisState) (PartialUpdate, error)
}

// Stages is the fixed set of stages the orchestrator runs, in order.
type Stages struct {
	Pattern  Stage
	Affinity Stage
	Scoring  Stage
	Report   Stage
}

// caller holds what every service-backed stage needs.
type caller struct {
	svc         reasoning.Service
	prompt      Prompt
	temperature float64
	maxTokens   int64
}

func (c caller) complete(ctx context.Context, stage StageName, input string) (*reasoning.Response, error) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.prompt.Instructions))
	b.WriteString("\n\n")
	b.WriteString(input)

	return c.svc.Complete(ctx, reasoning.Request{
		Stage:       string(stage),
		System:      strings.TrimSpace(c.prompt.System),
		Prompt:      b.String(),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
}

// clock is swapped in tests.
type clock func() time.Time

// NewStages builds the four service-backed stages from prompts and cfg.
func NewStages(svc reasoning.Service, prompts Prompts, cfg config.PipelineConfig) Stages {
	return Stages{
		Pattern:  NewPatternStage(svc, prompts.PatternAnalysis, cfg.Temperature.Pattern, cfg.UnderutilizedThreshold),
		Affinity: NewAffinityStage(svc, prompts.ProductAffinity, cfg.Temperature.Affinity, cfg.MaxCandidates),
		Scoring:  NewScoringStage(svc, prompts.OpportunityScoring, cfg.Temperature.Scoring, cfg.NeutralConfidence),
		Report:   NewReportStage(svc, prompts.ReportGeneration, cfg.Temperature.Report, cfg.ReportTopN),
	}
}

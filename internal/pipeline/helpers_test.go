package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/model"
)

// stageOrder is the order Run executes stages in.
var stageOrder = []StageName{
	StagePatternAnalysis,
	StageProductAffinity,
	StageOpportunityScoring,
	StageReportGeneration,
}

func (s Stages) byName(name StageName) Stage {
	switch name {
	case StagePatternAnalysis:
		return s.Pattern
	case StageProductAffinity:
		return s.Affinity
	case StageOpportunityScoring:
		return s.Scoring
	case StageReportGeneration:
		return s.Report
	default:
		return nil
	}
}

func sampleProfile() model.CustomerProfile {
	return model.CustomerProfile{
		CustomerID:        "C001",
		CustomerName:      "Acme Manufacturing",
		Industry:          "Manufacturing",
		AnnualRevenue:     50000000,
		Employees:         250,
		PriorityRating:    "High",
		AccountType:       "Enterprise",
		Location:          "Chicago, IL",
		CurrentProducts:   []string{"Cloud Backup Pro", "Basic Support"},
		ProductUsage:      45,
		CrossSellSynergy:  []string{"Advanced Security Suite", "Analytics Dashboard"},
		LastActivityDate:  "2024-01-15",
		OpportunityStage:  "Proposal",
		OpportunityAmount: 75000,
		OpportunityType:   "Upsell",
		Competitors:       []string{"Globex", "Initech"},
		ActivityStatus:    "Completed",
		ActivityPriority:  "High",
		ActivityType:      "Meeting",
		ProductSKU:        "CBP-100",
	}
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		StageTimeout:           5 * time.Second,
		NeutralConfidence:      0.5,
		ReportTopN:             5,
		UnderutilizedThreshold: 70,
		MaxCandidates:          7,
		Temperature: config.TemperatureConfig{
			Pattern:  0.3,
			Affinity: 0.3,
			Scoring:  0.2,
			Report:   0.4,
		},
	}
}

// stageFunc adapts a function to Stage.
type stageFunc struct {
	name  StageName
	fn    func(ctx context.Context, state AnalysisState) (PartialUpdate, error)
	calls int
}

func (s *stageFunc) Name() StageName { return s.name }

func (s *stageFunc) Run(ctx context.Context, state AnalysisState) (PartialUpdate, error) {
	s.calls++
	return s.fn(ctx, state)
}

func twoCandidates() []model.RawCandidate {
	return []model.RawCandidate{
		{ProductName: "Advanced Security Suite", Type: model.RecommendationCrossSell, Rationale: "security gap"},
		{ProductName: "Premium Support", Type: model.RecommendationUpsell, Rationale: "low usage"},
	}
}

// happyStages returns fake stages that all succeed.
func happyStages() (pattern, affinity, scoring, report *stageFunc) {
	pattern = &stageFunc{name: StagePatternAnalysis, fn: func(context.Context, AnalysisState) (PartialUpdate, error) {
		return PartialUpdate{PatternFindings: Some("usage is low"), Usage: model.TokenUsage{InputTokens: 10, OutputTokens: 5}}, nil
	}}
	affinity = &stageFunc{name: StageProductAffinity, fn: func(context.Context, AnalysisState) (PartialUpdate, error) {
		return PartialUpdate{AffinityCandidates: Some(twoCandidates())}, nil
	}}
	scoring = &stageFunc{name: StageOpportunityScoring, fn: func(_ context.Context, s AnalysisState) (PartialUpdate, error) {
		cands, _ := s.AffinityCandidates.Get()
		out := make([]model.ScoredRecommendation, len(cands))
		for i, c := range cands {
			out[i] = model.ScoredRecommendation{
				ProductName:     c.ProductName,
				Type:            c.Type,
				ConfidenceScore: 0.6 + 0.2*float64(i),
				Rationale:       c.Rationale,
				EstimatedValue:  float64(10000 * (i + 1)),
			}
		}
		return PartialUpdate{ScoredCandidates: Some(out)}, nil
	}}
	report = &stageFunc{name: StageReportGeneration, fn: func(context.Context, AnalysisState) (PartialUpdate, error) {
		return PartialUpdate{ReportText: Some("# Report\n\nnarrative")}, nil
	}}
	return pattern, affinity, scoring, report
}

func stagesOf(pattern, affinity, scoring, report Stage) Stages {
	return Stages{Pattern: pattern, Affinity: affinity, Scoring: scoring, Report: report}
}

package pipeline

import (
	"slices"

	"github.com/sells-group/xsell-cli/internal/model"
)

// StageName identifies a reasoning stage.
type StageName string

const (
	StagePatternAnalysis    StageName = "pattern_analysis"
	StageProductAffinity    StageName = "product_affinity"
	StageOpportunityScoring StageName = "opportunity_scoring"
	StageReportGeneration   StageName = "report_generation"
)

// Optional is a value that may be absent.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Optional[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// AnalysisState accumulates stage outputs for one run. It is owned by the
// orchestrator; stages only ever see a Snapshot.
//
// Absent fields mean:
//   - PatternFindings: no pattern context available (stage failed or has not run).
//   - AffinityCandidates: affinity has not produced candidates; the run cannot succeed.
//   - ScoredCandidates: scoring has not run yet.
//   - ReportText: no report yet.
type AnalysisState struct {
	Profile            model.CustomerProfile
	PatternFindings    Optional[string]
	AffinityCandidates Optional[[]model.RawCandidate]
	ScoredCandidates   Optional[[]model.ScoredRecommendation]
	ReportText         Optional[string]
	StageErrors        map[StageName]string
}

// NewAnalysisState starts a state for profile with empty accumulators.
func NewAnalysisState(profile model.CustomerProfile) AnalysisState {
	return AnalysisState{
		Profile:     profile,
		StageErrors: make(map[StageName]string),
	}
}

// Snapshot returns a deep copy safe to hand to a stage.
func (s AnalysisState) Snapshot() AnalysisState {
	out := s
	out.Profile.CurrentProducts = slices.Clone(s.Profile.CurrentProducts)
	out.Profile.CrossSellSynergy = slices.Clone(s.Profile.CrossSellSynergy)
	out.Profile.Competitors = slices.Clone(s.Profile.Competitors)
	if c, ok := s.AffinityCandidates.Get(); ok {
		out.AffinityCandidates = Some(slices.Clone(c))
	}
	if c, ok := s.ScoredCandidates.Get(); ok {
		out.ScoredCandidates = Some(slices.Clone(c))
	}
	out.StageErrors = make(map[StageName]string, len(s.StageErrors))
	for k, v := range s.StageErrors {
		out.StageErrors[k] = v
	}
	return out
}

// PartialUpdate is what a stage returns. Only the field owned by the
// producing stage may be set.
type PartialUpdate struct {
	PatternFindings    Optional[string]
	AffinityCandidates Optional[[]model.RawCandidate]
	ScoredCandidates   Optional[[]model.ScoredRecommendation]
	ReportText         Optional[string]

	Usage    model.TokenUsage
	Metadata map[string]any
}

// setFields lists which stage-owned fields an update writes.
func (u PartialUpdate) setFields() []StageName {
	var out []StageName
	if u.PatternFindings.IsSet() {
		out = append(out, StagePatternAnalysis)
	}
	if u.AffinityCandidates.IsSet() {
		out = append(out, StageProductAffinity)
	}
	if u.ScoredCandidates.IsSet() {
		out = append(out, StageOpportunityScoring)
	}
	if u.ReportText.IsSet() {
		out = append(out, StageReportGeneration)
	}
	return out
}

// merge applies an update produced by (or on behalf of) owner. Each field is
// written at most once and only by its owner.
func (s *AnalysisState) merge(owner StageName, u PartialUpdate) error {
	fields := u.setFields()
	if len(fields) != 1 || fields[0] != owner {
		return malformedf("stage %s must set exactly its own output field, set %v", owner, fields)
	}

	switch owner {
	case StagePatternAnalysis:
		if s.PatternFindings.IsSet() {
			return errFieldWritten(owner)
		}
		s.PatternFindings = u.PatternFindings
	case StageProductAffinity:
		if s.AffinityCandidates.IsSet() {
			return errFieldWritten(owner)
		}
		s.AffinityCandidates = u.AffinityCandidates
	case StageOpportunityScoring:
		if s.ScoredCandidates.IsSet() {
			return errFieldWritten(owner)
		}
		s.ScoredCandidates = u.ScoredCandidates
	case StageReportGeneration:
		if s.ReportText.IsSet() {
			return errFieldWritten(owner)
		}
		s.ReportText = u.ReportText
	}
	return nil
}

// recordError appends a stage failure. Existing entries are kept.
func (s *AnalysisState) recordError(se *StageError) {
	if _, exists := s.StageErrors[se.Stage]; exists {
		return
	}
	s.StageErrors[se.Stage] = se.Describe()
}

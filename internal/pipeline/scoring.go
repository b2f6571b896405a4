package pipeline

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/reasoning"
)

// ScoringStage assigns confidence and estimated value to every candidate.
type ScoringStage struct {
	caller
	neutral float64
}

// NewScoringStage creates the opportunity scoring stage. neutral is used for
// candidates the service leaves unscored.
func NewScoringStage(svc reasoning.Service, prompt Prompt, temperature, neutral float64) *ScoringStage {
	return &ScoringStage{
		caller:  caller{svc: svc, prompt: prompt, temperature: temperature},
		neutral: neutral,
	}
}

func (s *ScoringStage) Name() StageName { return StageOpportunityScoring }

func (s *ScoringStage) Run(ctx context.Context, state AnalysisState) (PartialUpdate, error) {
	cands, ok := state.AffinityCandidates.Get()
	if !ok || len(cands) == 0 {
		return PartialUpdate{}, emptyf("no candidates to score")
	}

	var b strings.Builder
	writeProfile(&b, state.Profile)
	writeCandidates(&b, cands)

	resp, err := s.complete(ctx, StageOpportunityScoring, b.String())
	if err != nil {
		return PartialUpdate{}, err
	}

	scored, err := parseScores(resp.Text, cands, state.Profile, s.neutral)
	if err != nil {
		return PartialUpdate{Usage: resp.Usage}, err
	}
	return PartialUpdate{ScoredCandidates: Some(scored), Usage: resp.Usage}, nil
}

type scoreEntry struct {
	name       string
	typ        string
	confidence float64
	confOK     bool
	value      float64
	valueOK    bool
	rationale  string
}

type scoringOutput struct {
	Scores []struct {
		ProductName     string  `json:"product_name"`
		Type            string  `json:"recommendation_type"`
		ConfidenceScore any     `json:"confidence_score"`
		EstimatedValue  any     `json:"estimated_value"`
		Rationale       string  `json:"rationale"`
	} `json:"scores"`
}

// parseScores maps the service's scores back onto cands, in cands order.
// Candidates without a score get neutral scoring; a response that scores
// none of them is malformed.
func parseScores(text string, cands []model.RawCandidate, profile model.CustomerProfile, neutral float64) ([]model.ScoredRecommendation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, emptyf("empty response")
	}

	entries, err := scoreEntries(text)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	byName := make(map[string]scoreEntry, len(entries))
	for _, e := range entries {
		key := productKey(fold, e.name)
		if _, dup := byName[key]; !dup {
			byName[key] = e
		}
	}

	out := make([]model.ScoredRecommendation, len(cands))
	matched := 0
	for i, c := range cands {
		e, ok := byName[productKey(fold, c.ProductName)]
		if !ok {
			out[i] = neutralScore(c, profile, neutral)
			continue
		}
		matched++

		rec := neutralScore(c, profile, neutral)
		if typ, ok := model.ParseRecommendationType(e.typ); ok {
			rec.Type = typ
		}
		if e.confOK {
			rec.ConfidenceScore = clampConfidence(e.confidence)
		}
		if e.valueOK {
			rec.EstimatedValue = clampValue(e.value)
		}
		if r := strings.TrimSpace(e.rationale); r != "" {
			rec.Rationale = r
		}
		out[i] = rec
	}

	if matched == 0 {
		return nil, malformedf("scores matched none of %d candidates", len(cands))
	}
	return out, nil
}

func scoreEntries(text string) ([]scoreEntry, error) {
	if doc, ok := extractJSON(text); ok {
		var out scoringOutput
		if err := decodeValidated(scoringSchema, wrapArray(doc, "scores"), &out); err != nil {
			return nil, err
		}
		entries := make([]scoreEntry, 0, len(out.Scores))
		for _, s := range out.Scores {
			value, valueOK := parseMoney(s.EstimatedValue)
			confidence, confOK := parseConfidence(s.ConfidenceScore)
			entries = append(entries, scoreEntry{
				name:       s.ProductName,
				typ:        s.Type,
				confidence: confidence,
				confOK:     confOK,
				value:      value,
				valueOK:    valueOK,
				rationale:  s.Rationale,
			})
		}
		return entries, nil
	}

	blocks := parseScoreBlocks(text)
	if len(blocks) == 0 {
		return nil, malformedf("no score blocks in response")
	}
	entries := make([]scoreEntry, 0, len(blocks))
	for _, b := range blocks {
		e := scoreEntry{name: b.Product, typ: b.Type, rationale: b.Rationale}
		if score, err := strconv.ParseFloat(strings.TrimSuffix(b.Score, "%"), 64); err == nil {
			e.confidence, e.confOK = score/100, true
		}
		e.value, e.valueOK = parseMoney(b.Value)
		entries = append(entries, e)
	}
	return entries, nil
}

// neutralScore is the degraded scoring for one candidate: neutral confidence
// and the profile's open opportunity amount as value.
func neutralScore(c model.RawCandidate, profile model.CustomerProfile, neutral float64) model.ScoredRecommendation {
	return model.ScoredRecommendation{
		ProductName:     c.ProductName,
		Type:            c.Type,
		ConfidenceScore: clampConfidence(neutral),
		Rationale:       c.Rationale,
		EstimatedValue:  clampValue(float64(profile.OpportunityAmount)),
	}
}

func neutralScores(cands []model.RawCandidate, profile model.CustomerProfile, neutral float64) []model.ScoredRecommendation {
	out := make([]model.ScoredRecommendation, len(cands))
	for i, c := range cands {
		out[i] = neutralScore(c, profile, neutral)
	}
	return out
}

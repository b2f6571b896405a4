package pipeline

import (
	"context"
	"strings"

	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/reasoning"
)

// AffinityStage proposes cross-sell and upsell candidates.
type AffinityStage struct {
	caller
	maxCandidates int
}

// NewAffinityStage creates the product affinity stage. maxCandidates <= 0
// keeps every candidate.
func NewAffinityStage(svc reasoning.Service, prompt Prompt, temperature float64, maxCandidates int) *AffinityStage {
	return &AffinityStage{
		caller:        caller{svc: svc, prompt: prompt, temperature: temperature},
		maxCandidates: maxCandidates,
	}
}

func (s *AffinityStage) Name() StageName { return StageProductAffinity }

func (s *AffinityStage) Run(ctx context.Context, state AnalysisState) (PartialUpdate, error) {
	var b strings.Builder
	writeProfile(&b, state.Profile)
	writeFindings(&b, state.PatternFindings)

	resp, err := s.complete(ctx, StageProductAffinity, b.String())
	if err != nil {
		return PartialUpdate{}, err
	}

	cands, err := parseCandidates(resp.Text, s.maxCandidates)
	if err != nil {
		return PartialUpdate{Usage: resp.Usage}, err
	}
	return PartialUpdate{AffinityCandidates: Some(cands), Usage: resp.Usage}, nil
}

type affinityOutput struct {
	Candidates []struct {
		ProductName string `json:"product_name"`
		Type        string `json:"recommendation_type"`
		Rationale   string `json:"rationale"`
		ValueHint   any    `json:"estimated_value_hint"`
	} `json:"candidates"`
}

// parseCandidates accepts the JSON contract (an object with "candidates" or
// a bare array of candidates), or a plain bulleted list of product names when
// the response holds no JSON document.
func parseCandidates(text string, max int) ([]model.RawCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, emptyf("empty response")
	}

	var cands []model.RawCandidate
	if doc, ok := extractJSON(text); ok {
		var out affinityOutput
		if err := decodeValidated(affinitySchema, wrapArray(doc, "candidates"), &out); err != nil {
			return nil, err
		}
		for _, c := range out.Candidates {
			name := strings.TrimSpace(c.ProductName)
			if name == "" {
				continue
			}
			typ, _ := model.ParseRecommendationType(c.Type)
			cands = append(cands, model.RawCandidate{
				ProductName: name,
				Type:        typ,
				Rationale:   strings.TrimSpace(c.Rationale),
				ValueHint:   hintString(c.ValueHint),
			})
		}
	} else {
		for _, name := range parseBulletLines(text) {
			cands = append(cands, model.RawCandidate{ProductName: name, Type: model.RecommendationCrossSell})
		}
	}

	if len(cands) == 0 {
		return nil, emptyf("no candidates proposed")
	}
	if max > 0 && len(cands) > max {
		cands = cands[:max]
	}
	return cands, nil
}

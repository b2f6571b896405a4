package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/reasoning"
)

// Compile-time interface check.
var _ reasoning.Service = (*StubService)(nil)

// stubCatalog is the product list offered by StubService.
var stubCatalog = []struct {
	name string
	typ  model.RecommendationType
}{
	{"Advanced Security Suite", model.RecommendationCrossSell},
	{"Cloud Backup Pro", model.RecommendationCrossSell},
	{"Analytics Dashboard", model.RecommendationCrossSell},
	{"Premium Support", model.RecommendationUpsell},
	{"Enterprise License Tier", model.RecommendationUpsell},
}

// StubService implements reasoning.Service with deterministic responses, so
// the pipeline can run without an API key. Identical prompts produce
// identical output.
type StubService struct{}

// Complete implements reasoning.Service.
func (s *StubService) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var text string
	switch StageName(req.Stage) {
	case StagePatternAnalysis:
		text = stubPattern(req.Prompt)
	case StageProductAffinity:
		text = stubAffinity(req.Prompt)
	case StageOpportunityScoring:
		text = stubScoring(req.Prompt)
	case StageReportGeneration:
		text = stubReport(req.Prompt)
	default:
		return nil, fmt.Errorf("stub: unknown stage %q", req.Stage)
	}

	return &reasoning.Response{
		Text:  text,
		Model: "stub",
		Usage: model.TokenUsage{
			InputTokens:  len(req.Prompt) / 4,
			OutputTokens: len(text) / 4,
		},
	}, nil
}

// promptValue returns the value of the first "- label: value" line.
func promptValue(prompt, label string) string {
	prefix := "- " + label + ": "
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), prefix); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func stubPattern(prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage pattern summary for %s.\n", promptValue(prompt, "Name"))
	fmt.Fprintf(&b, "- Product usage is %s with products: %s.\n", promptValue(prompt, "Product usage"), promptValue(prompt, "Current products"))
	if strings.Contains(prompt, "): true") {
		b.WriteString("- The account is underutilized; adoption support should come first.\n")
	}
	if days := promptValue(prompt, "Days since last activity"); days != "" {
		fmt.Fprintf(&b, "- Last engagement was %s days ago.\n", days)
	}
	return b.String()
}

func stubAffinity(prompt string) string {
	owned := strings.ToLower(promptValue(prompt, "Current products"))

	type candidate struct {
		ProductName string `json:"product_name"`
		Type        string `json:"recommendation_type"`
		Rationale   string `json:"rationale"`
		ValueHint   string `json:"estimated_value_hint"`
	}
	var out struct {
		Candidates []candidate `json:"candidates"`
	}
	out.Candidates = []candidate{}
	for _, p := range stubCatalog {
		if strings.Contains(owned, strings.ToLower(p.name)) {
			continue
		}
		out.Candidates = append(out.Candidates, candidate{
			ProductName: p.name,
			Type:        string(p.typ),
			Rationale:   fmt.Sprintf("%s complements the current product set.", p.name),
			ValueHint:   "medium",
		})
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func stubScoring(prompt string) string {
	type score struct {
		ProductName     string  `json:"product_name"`
		Type            string  `json:"recommendation_type"`
		ConfidenceScore float64 `json:"confidence_score"`
		EstimatedValue  float64 `json:"estimated_value"`
		Rationale       string  `json:"rationale"`
	}
	var out struct {
		Scores []score `json:"scores"`
	}
	out.Scores = []score{}
	for _, line := range strings.Split(prompt, "\n") {
		rest, ok := strings.CutPrefix(line, candidateLinePrefix)
		if !ok {
			continue
		}
		fields := strings.Split(rest, " | ")
		name := strings.TrimSpace(fields[0])
		typ := string(model.RecommendationCrossSell)
		if len(fields) > 1 {
			typ = strings.TrimSpace(strings.TrimPrefix(fields[1], "type: "))
		}

		h := fnv.New32a()
		_, _ = h.Write([]byte(name))
		sum := h.Sum32()
		out.Scores = append(out.Scores, score{
			ProductName:     name,
			Type:            typ,
			ConfidenceScore: 0.5 + float64(sum%45)/100,
			EstimatedValue:  float64(10000 + (sum%9)*5000),
			Rationale:       fmt.Sprintf("Deterministic offline score for %s.", name),
		})
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func stubReport(prompt string) string {
	var recs []string
	inRecs := false
	for _, line := range strings.Split(prompt, "\n") {
		switch {
		case strings.HasPrefix(line, "## Recommendations"):
			inRecs = true
		case strings.HasPrefix(line, "## "):
			inRecs = false
		case inRecs && strings.TrimSpace(line) != "":
			recs = append(recs, strings.TrimSpace(line))
		}
	}

	name := promptValue(prompt, "Name")
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", name)
	fmt.Fprintf(&b, "## Executive Summary\n\nOffline analysis for %s.\n\n", name)
	fmt.Fprintf(&b, "## Customer Overview\n\nIndustry: %s. Location: %s.\n\n", promptValue(prompt, "Industry"), promptValue(prompt, "Location"))
	fmt.Fprintf(&b, "## Current State Analysis\n\nCurrent products: %s.\n\n", promptValue(prompt, "Current products"))
	fmt.Fprintf(&b, "## Market Context\n\nCompetitors: %s.\n\n", promptValue(prompt, "Competitors"))
	fmt.Fprintf(&b, "## Opportunity Analysis\n\nOpen opportunity of $%s.\n\n", promptValue(prompt, "Amount (USD)"))
	b.WriteString("## Recommendations\n\n")
	for _, r := range recs {
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("\n## Implementation Strategy\n\nSequence the recommendations by confidence.\n\n")
	b.WriteString("## Conclusion\n\nGenerated by the offline reasoning service.\n")
	return b.String()
}

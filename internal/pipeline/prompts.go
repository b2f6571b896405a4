package pipeline

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// Prompt is the instruction pair sent to the reasoning service for a stage.
type Prompt struct {
	System       string `yaml:"system"`
	Instructions string `yaml:"instructions"`
}

// Prompts holds the prompt for every stage.
type Prompts struct {
	PatternAnalysis    Prompt `yaml:"pattern_analysis"`
	ProductAffinity    Prompt `yaml:"product_affinity"`
	OpportunityScoring Prompt `yaml:"opportunity_scoring"`
	ReportGeneration   Prompt `yaml:"report_generation"`
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	var p Prompts
	if err := yaml.Unmarshal(defaultPromptsYAML, &p); err != nil {
		panic("pipeline: embedded prompts.yaml is invalid: " + err.Error())
	}
	return p
}

// LoadPrompts returns the default prompts overlaid with any non-empty
// entries from the YAML file at path. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, eris.Wrapf(err, "pipeline: read prompts %s", path)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Prompts{}, eris.Wrapf(err, "pipeline: parse prompts %s", path)
	}

	overlay(&p.PatternAnalysis, override.PatternAnalysis)
	overlay(&p.ProductAffinity, override.ProductAffinity)
	overlay(&p.OpportunityScoring, override.OpportunityScoring)
	overlay(&p.ReportGeneration, override.ReportGeneration)
	return p, nil
}

func overlay(dst *Prompt, src Prompt) {
	if src.System != "" {
		dst.System = src.System
	}
	if src.Instructions != "" {
		dst.Instructions = src.Instructions
	}
}

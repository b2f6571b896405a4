package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrompts(t *testing.T) {
	t.Parallel()
	p := DefaultPrompts()
	for name, prompt := range map[string]Prompt{
		"pattern":  p.PatternAnalysis,
		"affinity": p.ProductAffinity,
		"scoring":  p.OpportunityScoring,
		"report":   p.ReportGeneration,
	} {
		assert.NotEmpty(t, prompt.System, name)
		assert.NotEmpty(t, prompt.Instructions, name)
	}
	assert.Contains(t, p.ProductAffinity.Instructions, "candidates")
	assert.Contains(t, p.OpportunityScoring.Instructions, "confidence_score")
}

func TestLoadPrompts_Overlay(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
report_generation:
  instructions: Write a short memo.
`), 0644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)

	def := DefaultPrompts()
	assert.Equal(t, "Write a short memo.", p.ReportGeneration.Instructions)
	assert.Equal(t, def.ReportGeneration.System, p.ReportGeneration.System)
	assert.Equal(t, def.PatternAnalysis, p.PatternAnalysis)
}

func TestLoadPrompts_EmptyPath(t *testing.T) {
	t.Parallel()
	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), p)
}

func TestLoadPrompts_Errors(t *testing.T) {
	t.Parallel()
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report_generation: [unclosed"), 0644))
	_, err = LoadPrompts(path)
	assert.Error(t, err)
}

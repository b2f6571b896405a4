package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusQueued, "queued"},
		{RunStatusRunning, "running"},
		{RunStatusComplete, "complete"},
		{RunStatusDegraded, "degraded"},
		{RunStatusFailed, "failed"},
		{RunStatusCancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestRunStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RunStatusComplete, RunStatusFor(OutcomeSuccess))
	assert.Equal(t, RunStatusDegraded, RunStatusFor(OutcomeDegraded))
	assert.Equal(t, RunStatusFailed, RunStatusFor(OutcomePipelineFailure))
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 100, OutputTokens: 20, Cost: 0.01}
	u.Add(TokenUsage{InputTokens: 50, OutputTokens: 5, CacheReadTokens: 7, Cost: 0.02})

	assert.Equal(t, 150, u.InputTokens)
	assert.Equal(t, 25, u.OutputTokens)
	assert.Equal(t, 7, u.CacheReadTokens)
	assert.InDelta(t, 0.03, u.Cost, 1e-9)
}

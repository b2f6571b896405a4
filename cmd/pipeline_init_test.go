//go:build !integration

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/pipeline"
	"github.com/sells-group/xsell-cli/internal/reasoning"
	"github.com/sells-group/xsell-cli/internal/store"
)

func TestInitPipeline_Offline(t *testing.T) {
	cfg = testConfig(t)
	ctx := context.Background()

	env, err := initPipeline(ctx, true)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Loader)
	require.NotNil(t, env.Store)
	require.NotNil(t, env.Pipeline)
	assert.Nil(t, env.Cache)
	assert.True(t, env.Offline)

	res, err := env.Pipeline.RunCustomer(ctx, env.Loader, "C001")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	for _, rec := range res.Recommendations {
		assert.NotEqual(t, "Cloud Backup Pro", rec.ProductName)
	}

	runs, err := env.Store.ListRuns(ctx, store.RunFilter{CustomerID: "C001"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestInitPipeline_FilterApplied(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "none"
	cfg.Pipeline.Filter = `rec.recommendation_type == "upsell"`

	env, err := initPipeline(context.Background(), true)
	require.NoError(t, err)
	defer env.Close()

	res, err := env.Pipeline.RunCustomer(context.Background(), env.Loader, "C002")
	require.NoError(t, err)
	require.NotEmpty(t, res.Recommendations)
	for _, rec := range res.Recommendations {
		assert.Equal(t, model.RecommendationUpsell, rec.Type)
	}
}

func TestInitPipeline_MissingKey(t *testing.T) {
	cfg = testConfig(t)
	cfg.Anthropic.Key = ""

	_, err := initPipeline(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")
}

func TestInitPipeline_BadFilter(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "none"
	cfg.Pipeline.Filter = "rec.confidence_score >"

	_, err := initPipeline(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter")
}

func TestInitPipeline_UnknownCustomer(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "none"

	env, err := initPipeline(context.Background(), true)
	require.NoError(t, err)
	defer env.Close()

	_, err = env.Pipeline.RunCustomer(context.Background(), env.Loader, "C999")
	require.Error(t, err)
}

func TestNewReasoningService(t *testing.T) {
	cfg = testConfig(t)

	_, ok := newReasoningService(true).(*pipeline.StubService)
	assert.True(t, ok)

	_, ok = newReasoningService(false).(*reasoning.AnthropicService)
	assert.True(t, ok)
}

func TestInitLoader_CSV(t *testing.T) {
	cfg = testConfig(t)

	loader, err := initLoader(context.Background(), &pipelineEnv{})
	require.NoError(t, err)

	customers, err := loader.List(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "C001", customers[0].CustomerID)
}

func TestInitLoader_Unsupported(t *testing.T) {
	cfg = testConfig(t)
	cfg.Profile.Source = "s3"

	_, err := initLoader(context.Background(), &pipelineEnv{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported profile source")
}

func TestPipelineEnv_CloseOrder(t *testing.T) {
	var order []int
	env := &pipelineEnv{}
	env.onClose(func() { order = append(order, 1) })
	env.onClose(func() { order = append(order, 2) })
	env.onClose(func() { order = append(order, 3) })

	env.Close()
	env.Close()
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestFormatCustomers(t *testing.T) {
	var buf bytes.Buffer
	formatCustomers(&buf, []model.CustomerSummary{
		{CustomerID: "C001", CustomerName: "Acme Manufacturing", Industry: "Manufacturing"},
		{CustomerID: "C002", CustomerName: "Beta Retail", Industry: "Retail"},
	})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Acme Manufacturing")
	assert.Contains(t, out, "2 customers")
}

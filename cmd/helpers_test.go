//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/pipeline"
	"github.com/sells-group/xsell-cli/internal/profile"
)

const testCSV = `Customer ID,Customer Name,Industry,Annual Revenue (USD),Number of Employees,Customer Priority Rating,Account Type,Location,Current Products,Product Usage (%),Cross-Sell Synergy,Last Activity Date,Opportunity Stage,Opportunity Amount (USD),Opportunity Type,Competitors,Activity Status,Activity Priority,Activity Type,Product SKU
C001,Acme Manufacturing,Manufacturing,50000000,250,High,Enterprise,Chicago,"Cloud Backup Pro, Basic Support",45,,2024-01-15,Negotiation,75000,Cross-Sell,"Globex, Initech",Completed,High,Meeting,SKU-100
C002,Beta Retail,Retail,1200000,40,Medium,SMB,Austin,Basic Support,82,,2024-03-01,Prospecting,12000,Upsell,,Open,Low,Call,SKU-200
`

func writeTestCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customer_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Anthropic: config.AnthropicConfig{Key: "sk-ant-test-1234567890", Model: "claude-sonnet-4-5-20250929"},
		Pipeline: config.PipelineConfig{
			StageTimeout:           5 * time.Second,
			NeutralConfidence:      0.5,
			ReportTopN:             5,
			UnderutilizedThreshold: 70,
			MaxCandidates:          7,
		},
		Profile: config.ProfileConfig{Source: "csv", CSVPath: writeTestCSV(t)},
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "runs.db")},
		Cache:   config.CacheConfig{TTL: time.Hour},
		Server:  config.ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
		Batch:   config.BatchConfig{MaxConcurrent: 2},
		Log:     config.LogConfig{Level: "error", Format: "json"},
	}
}

// offlineServer builds a server over the CSV loader and the stub-backed pipeline.
func offlineServer(t *testing.T) *server {
	t.Helper()
	c := testConfig(t)
	loader, err := profile.NewCSVLoader(c.Profile.CSVPath)
	require.NoError(t, err)

	stages := pipeline.NewStages(&pipeline.StubService{}, pipeline.DefaultPrompts(), c.Pipeline)
	return &server{
		cfg:     c,
		loader:  loader,
		runner:  pipeline.New(c.Pipeline, stages),
		offline: true,
	}
}

// fakeRunner returns a fixed result or error and counts calls.
type fakeRunner struct {
	res   *model.RecommendationResult
	err   error
	calls atomic.Int32
}

func (f *fakeRunner) RunCustomer(_ context.Context, _ pipeline.ProfileSource, customerID string) (*model.RecommendationResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.CustomerID = customerID
	return &res, nil
}

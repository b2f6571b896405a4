package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/cache"
	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/db"
	"github.com/sells-group/xsell-cli/internal/pipeline"
	"github.com/sells-group/xsell-cli/internal/profile"
	"github.com/sells-group/xsell-cli/internal/reasoning"
	"github.com/sells-group/xsell-cli/internal/resilience"
	"github.com/sells-group/xsell-cli/internal/store"
	"github.com/sells-group/xsell-cli/internal/telemetry"
	anthropicpkg "github.com/sells-group/xsell-cli/pkg/anthropic"
)

// pipelineEnv holds the loader, store, cache and pipeline used by the
// run/batch/serve commands.
type pipelineEnv struct {
	Loader   profile.Loader
	Store    store.Store // may be nil
	Cache    *cache.ResultCache
	Pipeline *pipeline.Pipeline
	Offline  bool

	closers []func()
}

// Close releases resources held by the pipeline environment in reverse
// order of acquisition.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		pe.closers[i]()
	}
	pe.closers = nil
}

func (pe *pipelineEnv) onClose(fn func()) {
	pe.closers = append(pe.closers, fn)
}

// initPipeline validates configuration, then builds the reasoning service,
// profile loader, run store, result cache and Pipeline. Callers should
// defer env.Close().
func initPipeline(ctx context.Context, offline bool) (*pipelineEnv, error) {
	mode := config.ModePipeline
	if offline {
		mode = config.ModeOffline
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &pipelineEnv{Offline: offline}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		zap.L().Warn("tracing disabled", zap.Error(err))
	}
	env.onClose(func() { _ = shutdown(context.Background()) })

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	if st != nil {
		env.Store = st
		env.onClose(func() { _ = st.Close() })
	}

	loader, err := initLoader(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Loader = loader

	if cfg.Cache.RedisURL != "" {
		rc, err := cache.New(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			zap.L().Warn("result cache disabled", zap.Error(err))
		} else {
			env.Cache = rc
			env.onClose(func() { _ = rc.Close() })
		}
	}

	prompts, err := pipeline.LoadPrompts(cfg.Pipeline.PromptsFile)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load prompts")
	}

	filter, err := pipeline.NewFilter(cfg.Pipeline.Filter)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "compile recommendation filter")
	}

	svc := newReasoningService(offline)
	stages := pipeline.NewStages(svc, prompts, cfg.Pipeline)

	opts := []pipeline.Option{pipeline.WithFilter(filter)}
	if env.Store != nil {
		opts = append(opts, pipeline.WithStore(env.Store))
	}
	env.Pipeline = pipeline.New(cfg.Pipeline, stages, opts...)

	zap.L().Info("pipeline ready",
		zap.Bool("offline", offline),
		zap.String("profile_source", cfg.Profile.Source),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("cache", env.Cache != nil),
		zap.String("filter", filter.String()),
	)
	return env, nil
}

// newReasoningService returns the deterministic stub when offline, otherwise
// the Anthropic-backed service with retry, circuit breaker and rate limit.
func newReasoningService(offline bool) reasoning.Service {
	if offline {
		return &pipeline.StubService{}
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
	return reasoning.NewAnthropicService(client, reasoning.Options{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		Burst:             cfg.Anthropic.Burst,
		Retry:             resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff),
		Circuit:           resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeout),
	})
}

// initLoader builds the configured profile loader. A Postgres source on the
// same database as a Postgres store shares the store's pool.
func initLoader(ctx context.Context, env *pipelineEnv) (profile.Loader, error) {
	switch cfg.Profile.Source {
	case "csv":
		return profile.NewCSVLoader(cfg.Profile.CSVPath)
	case "postgres":
		if ps, ok := env.Store.(*store.PostgresStore); ok && cfg.Store.DatabaseURL == cfg.Profile.DatabaseURL {
			zap.L().Info("profile loader using shared store pool")
			return profile.NewPostgresLoader(ps.Pool()), nil
		}
		pool, err := connectProfileDB(ctx)
		if err != nil {
			return nil, err
		}
		env.onClose(pool.Close)
		return profile.NewPostgresLoader(pool), nil
	default:
		return nil, eris.Errorf("unsupported profile source: %s", cfg.Profile.Source)
	}
}

func connectProfileDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, cfg.Profile.DatabaseURL, db.PoolConfig{})
	if err != nil {
		return nil, eris.Wrap(err, "connect profile database")
	}
	return pool, nil
}

// Package reasoning is the boundary to the language-reasoning service used by
// every pipeline stage.
package reasoning

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/resilience"
	"github.com/sells-group/xsell-cli/pkg/anthropic"
)

// Request is one completion call: stage instructions plus rendered context.
type Request struct {
	Stage       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Response is the raw service output. Stages validate Text themselves.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Service completes a request. Implementations may retry internally but must
// honor ctx cancellation and deadlines.
type Service interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options configures an AnthropicService.
type Options struct {
	Model             string
	MaxTokens         int64
	RequestsPerSecond float64
	Burst             int
	CacheTTL          string
	Retry             resilience.RetryConfig
	Circuit           resilience.CircuitBreakerConfig
}

// AnthropicService implements Service on top of the Anthropic messages API.
type AnthropicService struct {
	client  anthropic.Client
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

var _ Service = (*AnthropicService)(nil)

// NewAnthropicService wires rate limiting, retry and a circuit breaker around client.
func NewAnthropicService(client anthropic.Client, opts Options) *AnthropicService {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.CacheTTL == "" {
		opts.CacheTTL = "5m"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	circuit := opts.Circuit
	circuit.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("reasoning: circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		circuitState.Set(float64(to))
	}

	return &AnthropicService{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker(circuit),
	}
}

// Complete sends req to the model and returns the concatenated text output.
func (s *AnthropicService) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.opts.MaxTokens
	}
	temp := req.Temperature

	msgReq := anthropic.MessageRequest{
		Model:       s.opts.Model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(req.System, s.opts.CacheTTL),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}

	start := time.Now()
	resp, err := resilience.DoVal(ctx, s.opts.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "reasoning: rate limit wait")
		}
		return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			r, err := s.client.CreateMessage(ctx, msgReq)
			if err != nil {
				return nil, resilience.Classify(err, anthropic.StatusCode(err))
			}
			return r, nil
		})
	})
	requestDuration.WithLabelValues(req.Stage).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(req.Stage, "error").Inc()
		return nil, eris.Wrapf(err, "reasoning: complete %s", req.Stage)
	}
	requestsTotal.WithLabelValues(req.Stage, "ok").Inc()

	resp.Usage.LogCost(s.opts.Model, req.Stage)

	return &Response{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
			Cost:                resp.Usage.EstimateCost(s.opts.Model),
		},
	}, nil
}

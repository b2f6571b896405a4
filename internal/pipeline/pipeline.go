package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/store"
)

var tracer = otel.Tracer("github.com/sells-group/xsell-cli/internal/pipeline")

// ProfileSource loads customer profiles by id.
type ProfileSource interface {
	Load(ctx context.Context, customerID string) (model.CustomerProfile, error)
}

// Pipeline runs the four reasoning stages over one customer profile and
// assembles the ranked result.
type Pipeline struct {
	cfg    config.PipelineConfig
	stages Stages
	store  store.Store
	filter *Filter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore records runs and stage results in st.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithFilter applies f to the ranked recommendations, including the ones the
// report covers.
func WithFilter(f *Filter) Option {
	return func(p *Pipeline) { p.filter = f }
}

// filterable is implemented by stages that read ranked recommendations.
type filterable interface {
	setFilter(f *Filter)
}

// New creates a Pipeline.
func New(cfg config.PipelineConfig, stages Stages, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, stages: stages}
	for _, o := range opts {
		o(p)
	}
	if fs, ok := stages.Report.(filterable); ok && p.filter != nil {
		fs.setFilter(p.filter)
	}
	return p
}

// RunCustomer loads the profile for customerID and runs the pipeline. Loader
// errors, including not-found, are returned unchanged before any stage runs.
func (p *Pipeline) RunCustomer(ctx context.Context, src ProfileSource, customerID string) (*model.RecommendationResult, error) {
	profile, err := src.Load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, profile)
}

// Run executes the stages in order for profile. Stage failures degrade the
// result instead of failing the call; the only error returned is
// ErrCancelled, in which case no result is returned.
func (p *Pipeline) Run(ctx context.Context, profile model.CustomerProfile) (*model.RecommendationResult, error) {
	log := zap.L().With(zap.String("customer_id", profile.CustomerID))
	log.Info("pipeline: starting run")

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("customer.id", profile.CustomerID)))
	defer span.End()

	r := &runState{
		p:     p,
		log:   log,
		state: NewAnalysisState(profile),
		start: time.Now(),
	}
	r.createRun(ctx)

	// ===== Stage 1: Pattern analysis =====
	// A failure leaves pattern_findings absent; later stages run without it.
	if ctx.Err() != nil {
		return r.cancelled(ctx, span)
	}
	r.runStage(ctx, p.stages.Pattern)

	// ===== Stage 2: Product affinity =====
	// Non-skippable: without candidates there is nothing to score or report.
	if ctx.Err() != nil {
		return r.cancelled(ctx, span)
	}
	if se := r.runStage(ctx, p.stages.Affinity); se != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx, span)
		}
		r.substitute(StageReportGeneration, PartialUpdate{
			ReportText: Some(ShortfallReport(profile, se.Describe())),
		})
		return r.finish(ctx, span, false)
	}

	// ===== Stage 3: Opportunity scoring =====
	// A failure scores every candidate with the neutral fallback.
	if ctx.Err() != nil {
		return r.cancelled(ctx, span)
	}
	if se := r.runStage(ctx, p.stages.Scoring); se != nil {
		cands := r.state.AffinityCandidates.OrElse(nil)
		r.substitute(StageOpportunityScoring, PartialUpdate{
			ScoredCandidates: Some(neutralScores(cands, profile, p.cfg.NeutralConfidence)),
		})
	}

	// ===== Stage 4: Report generation =====
	// A failure substitutes the templated report.
	if ctx.Err() != nil {
		return r.cancelled(ctx, span)
	}
	if se := r.runStage(ctx, p.stages.Report); se != nil {
		top := TopN(eligible(r.log, p.filter, r.state), p.cfg.ReportTopN)
		r.substitute(StageReportGeneration, PartialUpdate{
			ReportText: Some(FallbackReport(profile, r.state.PatternFindings, top)),
		})
	}

	if ctx.Err() != nil {
		return r.cancelled(ctx, span)
	}
	return r.finish(ctx, span, true)
}

// rank returns the eligible recommendations truncated to the configured top N.
func (p *Pipeline) rank(log *zap.Logger, state AnalysisState) []model.ScoredRecommendation {
	return TopN(eligible(log, p.filter, state), p.cfg.TopN)
}

// eligible aggregates the scored candidates and applies f. A filter that
// fails to evaluate keeps the unfiltered list.
func eligible(log *zap.Logger, f *Filter, state AnalysisState) []model.ScoredRecommendation {
	ranked := Aggregate(state.ScoredCandidates.OrElse(nil), 0)
	if f == nil {
		return ranked
	}
	filtered, err := f.Apply(ranked, state.Profile)
	if err != nil {
		log.Warn("pipeline: filter failed, keeping unfiltered recommendations",
			zap.String("filter", f.String()),
			zap.Error(err),
		)
		return ranked
	}
	return filtered
}

// runState is the mutable bookkeeping of a single Run call.
type runState struct {
	p     *Pipeline
	log   *zap.Logger
	state AnalysisState
	run   *model.Run
	usage model.TokenUsage
	start time.Time
}

func (r *runState) createRun(ctx context.Context) {
	if r.p.store == nil {
		return
	}
	run, err := r.p.store.CreateRun(context.WithoutCancel(ctx), r.state.Profile.CustomerID)
	if err != nil {
		r.log.Warn("pipeline: failed to create run", zap.Error(err))
		return
	}
	r.run = run
	r.log = r.log.With(zap.String("run_id", run.ID))
	r.setStatus(ctx, model.RunStatusRunning)
}

func (r *runState) setStatus(ctx context.Context, status model.RunStatus) {
	if r.run == nil {
		return
	}
	if err := r.p.store.UpdateRunStatus(context.WithoutCancel(ctx), r.run.ID, status); err != nil {
		r.log.Warn("pipeline: failed to update status", zap.Error(err))
	}
}

// runStage invokes one stage under the per-stage timeout, merges its update
// and records the outcome. It returns the recorded StageError, if any.
func (r *runState) runStage(ctx context.Context, st Stage) *StageError {
	name := st.Name()

	stageCtx := ctx
	if r.p.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, r.p.cfg.StageTimeout)
		defer cancel()
	}
	stageCtx, span := tracer.Start(stageCtx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage", string(name))))
	defer span.End()

	var rec *model.RunStage
	if r.run != nil {
		var err error
		rec, err = r.p.store.CreateStage(context.WithoutCancel(ctx), r.run.ID, string(name))
		if err != nil {
			r.log.Warn("pipeline: failed to create stage", zap.String("stage", string(name)), zap.Error(err))
		}
	}

	start := time.Now()
	u, err := st.Run(stageCtx, r.state.Snapshot())
	if err == nil {
		u, err = r.checkUpdate(name, u)
	}
	if err == nil {
		err = r.state.merge(name, u)
	}
	elapsed := time.Since(start)
	duration := elapsed.Milliseconds()

	r.usage.Add(u.Usage)
	tokensUsed.WithLabelValues(string(name), "input").Add(float64(u.Usage.InputTokens))
	tokensUsed.WithLabelValues(string(name), "output").Add(float64(u.Usage.OutputTokens))
	stageDuration.WithLabelValues(string(name)).Observe(elapsed.Seconds())

	result := &model.StageResult{
		Name:       string(name),
		Duration:   duration,
		TokenUsage: u.Usage,
		Metadata:   u.Metadata,
	}

	var se *StageError
	if err != nil {
		se = classify(name, stageCtx, err)
		r.state.recordError(se)
		result.Status = model.StageStatusFailed
		result.ErrorKind = string(se.Kind)
		result.Error = se.Err.Error()
		stageFailures.WithLabelValues(string(name), string(se.Kind)).Inc()
		span.RecordError(se)
		span.SetStatus(codes.Error, string(se.Kind))
		r.log.Error("pipeline: stage failed",
			zap.String("stage", string(name)),
			zap.Int64("duration_ms", duration),
			zap.String("kind", string(se.Kind)),
			zap.Error(se.Err),
		)
	} else {
		result.Status = model.StageStatusComplete
		r.log.Info("pipeline: stage complete",
			zap.String("stage", string(name)),
			zap.Int64("duration_ms", duration),
			zap.Int("input_tokens", u.Usage.InputTokens),
			zap.Int("output_tokens", u.Usage.OutputTokens),
		)
	}

	if rec != nil {
		if cerr := r.p.store.CompleteStage(context.WithoutCancel(ctx), rec.ID, result); cerr != nil {
			r.log.Warn("pipeline: failed to complete stage", zap.String("stage", string(name)), zap.Error(cerr))
		}
	}
	return se
}

// checkUpdate enforces the non-empty output contracts and normalizes scores.
func (r *runState) checkUpdate(name StageName, u PartialUpdate) (PartialUpdate, error) {
	switch name {
	case StagePatternAnalysis:
		if f, ok := u.PatternFindings.Get(); ok && strings.TrimSpace(f) == "" {
			return u, emptyf("no findings returned")
		}
	case StageProductAffinity:
		if c, ok := u.AffinityCandidates.Get(); ok && len(c) == 0 {
			return u, emptyf("no candidates proposed")
		}
	case StageOpportunityScoring:
		scored, ok := u.ScoredCandidates.Get()
		if !ok {
			break
		}
		if want := len(r.state.AffinityCandidates.OrElse(nil)); len(scored) != want {
			return u, malformedf("scored %d candidates, want %d", len(scored), want)
		}
		clamped := make([]model.ScoredRecommendation, len(scored))
		for i, s := range scored {
			s.ConfidenceScore = clampConfidence(s.ConfidenceScore)
			s.EstimatedValue = clampValue(s.EstimatedValue)
			clamped[i] = s
		}
		u.ScoredCandidates = Some(clamped)
	case StageReportGeneration:
		if t, ok := u.ReportText.Get(); ok && strings.TrimSpace(t) == "" {
			return u, emptyf("empty report")
		}
	}
	return u, nil
}

// substitute merges a fallback value on behalf of owner.
func (r *runState) substitute(owner StageName, u PartialUpdate) {
	if err := r.state.merge(owner, u); err != nil {
		r.log.Error("pipeline: fallback merge failed", zap.String("stage", string(owner)), zap.Error(err))
	}
}

func (r *runState) finish(ctx context.Context, span trace.Span, success bool) (*model.RecommendationResult, error) {
	var ranked []model.ScoredRecommendation
	if success {
		ranked = r.p.rank(r.log, r.state)
	}
	res := Assemble(r.state.Profile.CustomerID, r.state, success, ranked)

	if r.run != nil {
		if err := r.p.store.UpdateRunResult(context.WithoutCancel(ctx), r.run.ID, &res, r.usage); err != nil {
			r.log.Warn("pipeline: failed to save result", zap.Error(err))
		}
		r.setStatus(ctx, model.RunStatusFor(res.Outcome))
	}

	runOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("recommendations", len(res.Recommendations)),
	)
	if !success {
		span.SetStatus(codes.Error, string(res.Outcome))
	}

	r.log.Info("pipeline: run complete",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("recommendations", len(res.Recommendations)),
		zap.Int("stage_errors", len(res.StageErrors)),
		zap.Int("input_tokens", r.usage.InputTokens),
		zap.Int("output_tokens", r.usage.OutputTokens),
		zap.Float64("cost_usd", r.usage.Cost),
		zap.Int64("duration_ms", time.Since(r.start).Milliseconds()),
	)
	return &res, nil
}

func (r *runState) cancelled(ctx context.Context, span trace.Span) (*model.RecommendationResult, error) {
	r.setStatus(ctx, model.RunStatusCancelled)
	runOutcomes.WithLabelValues("cancelled").Inc()
	span.SetStatus(codes.Error, "cancelled")
	r.log.Warn("pipeline: run cancelled",
		zap.Int("stage_errors", len(r.state.StageErrors)),
		zap.Int64("duration_ms", time.Since(r.start).Milliseconds()),
		zap.Error(ctx.Err()),
	)
	return nil, ErrCancelled
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/cache"
	"github.com/sells-group/xsell-cli/internal/config"
	"github.com/sells-group/xsell-cli/internal/model"
	"github.com/sells-group/xsell-cli/internal/pipeline"
	"github.com/sells-group/xsell-cli/internal/profile"
	"github.com/sells-group/xsell-cli/internal/render"
)

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned before a response was written.
const statusClientClosedRequest = 499

var (
	servePort    int
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		env, err := initPipeline(ctx, serveOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(newServer(cfg, env)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Bool("offline", serveOffline))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use the deterministic offline reasoning service")
	rootCmd.AddCommand(serveCmd)
}

// recommender runs the pipeline for one customer.
type recommender interface {
	RunCustomer(ctx context.Context, src pipeline.ProfileSource, customerID string) (*model.RecommendationResult, error)
}

// server holds the dependencies of the HTTP handlers.
type server struct {
	cfg     *config.Config
	loader  profile.Loader
	runner  recommender
	cache   *cache.ResultCache
	offline bool
}

func newServer(c *config.Config, env *pipelineEnv) *server {
	return &server{
		cfg:     c,
		loader:  env.Loader,
		runner:  env.Pipeline,
		cache:   env.Cache,
		offline: env.Offline,
	}
}

// buildRouter wires all API routes.
func buildRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/customers", s.handleCustomers)
	r.Get("/recommendation", s.handleRecommendationQuery)
	r.Get("/recommendation/{customerID}", s.handleRecommendation)
	r.Get("/recommendation/{customerID}/report", s.handleReport)
	r.Get("/debug", s.handleDebug)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Cross-Sell/Upsell Recommendation API",
		"status":      "running",
		"data_source": s.cfg.Profile.Source,
		"offline":     s.offline,
		"endpoints": []string{
			"GET /health",
			"GET /customers",
			"GET /recommendation?customer_id={id}",
			"GET /recommendation/{customer_id}",
			"GET /recommendation/{customer_id}/report",
			"GET /debug",
			"GET /metrics",
		},
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "connected"
		if err := s.cache.Ping(r.Context()); err != nil {
			cacheStatus = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "healthy",
		"reasoning_configured": s.offline || s.cfg.Anthropic.Key != "",
		"data_source":          s.cfg.Profile.Source,
		"store":                s.cfg.Store.Driver,
		"cache":                cacheStatus,
	})
}

func (s *server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.loader.List(r.Context())
	if err != nil {
		zap.L().Error("list customers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list customers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers":   customers,
		"total_count": len(customers),
	})
}

func (s *server) handleRecommendationQuery(w http.ResponseWriter, r *http.Request) {
	s.serveRecommendation(w, r, r.URL.Query().Get("customer_id"))
}

func (s *server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	s.serveRecommendation(w, r, chi.URLParam(r, "customerID"))
}

func (s *server) serveRecommendation(w http.ResponseWriter, r *http.Request, customerID string) {
	res, status, msg := s.recommend(r, customerID)
	if res == nil {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, status, res)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, status, msg := s.recommend(r, chi.URLParam(r, "customerID"))
	if res == nil {
		writeError(w, status, msg)
		return
	}
	page, err := render.ReportPage(res)
	if err != nil {
		zap.L().Error("render report failed", zap.String("customer_id", res.CustomerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page))
}

// recommend resolves a result from the cache or a pipeline run and maps it
// to an HTTP status. A nil result carries an error message instead.
func (s *server) recommend(r *http.Request, customerID string) (*model.RecommendationResult, int, string) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, http.StatusBadRequest, "customer_id is required"
	}
	ctx := r.Context()
	log := zap.L().With(zap.String("customer_id", customerID))
	refresh := r.URL.Query().Get("refresh") == "true"

	if s.cache != nil && !refresh {
		res, ok, err := s.cache.Get(ctx, customerID)
		if err != nil {
			log.Warn("cache lookup failed", zap.Error(err))
		}
		if ok {
			log.Debug("serving cached result")
			return res, http.StatusOK, ""
		}
	}

	res, err := s.runner.RunCustomer(ctx, s.loader, customerID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return nil, http.StatusNotFound, fmt.Sprintf("customer %s not found", customerID)
	case errors.Is(err, pipeline.ErrCancelled):
		if ctx.Err() != nil {
			return nil, statusClientClosedRequest, "request cancelled"
		}
		return nil, http.StatusServiceUnavailable, "pipeline run cancelled"
	case err != nil:
		log.Error("recommendation failed", zap.Error(err))
		return nil, http.StatusInternalServerError, "failed to generate recommendations"
	}

	if s.cache != nil {
		if err := s.cache.Set(context.WithoutCancel(ctx), res); err != nil {
			log.Warn("cache store failed", zap.Error(err))
		}
	}

	if res.Outcome == model.OutcomePipelineFailure {
		return res, http.StatusUnprocessableEntity, ""
	}
	return res, http.StatusOK, ""
}

func (s *server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	c := s.cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"offline":       s.offline,
		"anthropic_key": maskSecret(c.Anthropic.Key),
		"model":         c.Anthropic.Model,
		"profile": map[string]any{
			"source":       c.Profile.Source,
			"csv_path":     c.Profile.CSVPath,
			"database_url": maskDSN(c.Profile.DatabaseURL),
		},
		"store": map[string]any{
			"driver":       c.Store.Driver,
			"database_url": maskDSN(c.Store.DatabaseURL),
		},
		"cache": map[string]any{
			"enabled":   s.cache != nil,
			"redis_url": maskDSN(c.Cache.RedisURL),
			"ttl":       c.Cache.TTL.String(),
		},
		"pipeline": map[string]any{
			"stage_timeout":      c.Pipeline.StageTimeout.String(),
			"neutral_confidence": c.Pipeline.NeutralConfidence,
			"top_n":              c.Pipeline.TopN,
			"report_top_n":       c.Pipeline.ReportTopN,
			"max_candidates":     c.Pipeline.MaxCandidates,
			"filter":             c.Pipeline.Filter,
		},
	})
}

// maskSecret keeps the last four characters of a secret.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}

// dsnPassword matches the password of a key/value connection string.
var dsnPassword = regexp.MustCompile(`(password=)('[^']*'|\S+)`)

// maskDSN hides the password part of a connection URL or key/value DSN.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	switch {
	case err == nil && u.Scheme != "":
		return u.Redacted()
	case err != nil && strings.Contains(dsn, "://"):
		return "xxxxx"
	default:
		return dsnPassword.ReplaceAllString(dsn, "${1}xxxxx")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

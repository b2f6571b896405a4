package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/xsell-cli/internal/model"
)

var (
	batchIDs         []string
	batchLimit       int
	batchConcurrency int
	batchOffline     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate recommendations for many customers concurrently",
	Long:  "Runs the pipeline for every customer (or the ids given with --ids) and prints one JSON line per result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, batchOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		ids := batchIDs
		if len(ids) == 0 {
			customers, err := env.Loader.List(ctx)
			if err != nil {
				return eris.Wrap(err, "list customers")
			}
			for _, c := range customers {
				ids = append(ids, c.CustomerID)
			}
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		run := func(ctx context.Context, id string) (*model.RecommendationResult, error) {
			return env.Pipeline.RunCustomer(ctx, env.Loader, id)
		}
		return processBatch(ctx, ids, batchLimit, concurrency, run, os.Stdout)
	},
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchIDs, "ids", nil, "comma-separated customer IDs (default: all customers)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of customers to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent runs (default from config)")
	batchCmd.Flags().BoolVar(&batchOffline, "offline", false, "use the deterministic offline reasoning service")
	rootCmd.AddCommand(batchCmd)
}

// runFunc is the callback signature for running the pipeline on a customer.
type runFunc func(ctx context.Context, customerID string) (*model.RecommendationResult, error)

// batchLine is one line of batch output.
type batchLine struct {
	CustomerID string                      `json:"customer_id"`
	Result     *model.RecommendationResult `json:"result,omitempty"`
	Error      string                      `json:"error,omitempty"`
}

// processBatch applies limit, then runs customers concurrently and writes one
// JSON line per customer to out. Individual failures do not abort the batch.
func processBatch(ctx context.Context, ids []string, limit, concurrency int, run runFunc, out io.Writer) error {
	if len(ids) == 0 {
		zap.L().Info("no customers to process")
		return nil
	}

	// Apply limit
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("customers", len(ids)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu                          sync.Mutex
		enc                         = json.NewEncoder(out)
		succeeded, degraded, failed atomic.Int64
	)

	emit := func(line batchLine) error {
		mu.Lock()
		defer mu.Unlock()
		return eris.Wrap(enc.Encode(line), "write batch line")
	}

	for _, id := range ids {
		g.Go(func() error {
			log := zap.L().With(zap.String("customer_id", id))

			result, err := run(gctx, id)
			if err != nil {
				failed.Add(1)
				log.Error("recommendation failed", zap.Error(err))
				return emit(batchLine{CustomerID: id, Error: err.Error()})
			}

			switch result.Outcome {
			case model.OutcomeSuccess:
				succeeded.Add(1)
			case model.OutcomeDegraded:
				degraded.Add(1)
			default:
				failed.Add(1)
			}
			return emit(batchLine{CustomerID: id, Result: result})
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("degraded", degraded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

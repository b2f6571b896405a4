package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/xsell-cli/internal/model"
)

var (
	runCustomerID string
	runOffline    bool
	runFormat     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate recommendations for a single customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := validateFormat(runFormat); err != nil {
			return err
		}

		env, err := initPipeline(ctx, runOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.RunCustomer(ctx, env.Loader, runCustomerID)
		if err != nil {
			return eris.Wrapf(err, "pipeline run %s", runCustomerID)
		}

		zap.L().Info("recommendations complete",
			zap.String("customer_id", result.CustomerID),
			zap.String("outcome", string(result.Outcome)),
			zap.Int("recommendations", len(result.Recommendations)),
		)

		return writeResult(os.Stdout, result, runFormat)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCustomerID, "customer", "", "customer ID (required)")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "use the deterministic offline reasoning service")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "output format: json, yaml or markdown")
	_ = runCmd.MarkFlagRequired("customer")
	rootCmd.AddCommand(runCmd)
}

func validateFormat(format string) error {
	switch format {
	case "json", "yaml", "markdown":
		return nil
	default:
		return eris.Errorf("unsupported format %q (want json, yaml or markdown)", format)
	}
}

// writeResult prints a result in the requested format.
func writeResult(w io.Writer, res *model.RecommendationResult, format string) error {
	switch format {
	case "yaml":
		// Round-trip through JSON so field names follow the json tags.
		data, err := json.Marshal(res)
		if err != nil {
			return eris.Wrap(err, "encode result")
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "encode result")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(doc)
	case "markdown":
		_, err := io.WriteString(w, markdownResult(res))
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
}

func markdownResult(res *model.RecommendationResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(res.ResearchReport, "\n"))
	b.WriteString("\n\n## Ranked Recommendations\n\n")
	if len(res.Recommendations) == 0 {
		b.WriteString("No recommendations.\n")
	} else {
		b.WriteString("| # | Product | Type | Confidence | Estimated Value |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for i, r := range res.Recommendations {
			fmt.Fprintf(&b, "| %d | %s | %s | %.0f%% | $%.0f |\n", i+1, r.ProductName, r.Type, r.ConfidenceScore*100, r.EstimatedValue)
		}
	}
	fmt.Fprintf(&b, "\n_Outcome: %s_\n", res.Outcome)
	for _, stage := range slices.Sorted(maps.Keys(res.StageErrors)) {
		fmt.Fprintf(&b, "- %s: %s\n", stage, res.StageErrors[stage])
	}
	return b.String()
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/xsell-cli/internal/model"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List customers available to the pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env := &pipelineEnv{}
		defer env.Close()

		loader, err := initLoader(ctx, env)
		if err != nil {
			return err
		}

		customers, err := loader.List(ctx)
		if err != nil {
			return eris.Wrap(err, "list customers")
		}
		if len(customers) == 0 {
			fmt.Fprintln(os.Stderr, "No customers found.")
			return nil
		}

		formatCustomers(os.Stdout, customers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(customersCmd)
}

// formatCustomers writes a tabular customer list to w.
func formatCustomers(out io.Writer, customers []model.CustomerSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tINDUSTRY")
	for _, c := range customers {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.CustomerID, c.CustomerName, c.Industry)
	}
	_, _ = fmt.Fprintf(w, "\n%d customers\n", len(customers))
	_ = w.Flush()
}

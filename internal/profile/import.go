package profile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/db"
	"github.com/sells-group/xsell-cli/internal/model"
)

// EnsureTable creates the customer_data table when it does not exist.
func EnsureTable(ctx context.Context, pool db.Pool) error {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return eris.Wrap(err, "profile: create customer_data")
	}
	return nil
}

// Import loads profiles into customer_data. Existing customers are left as
// they are. It returns the number of newly inserted rows.
func Import(ctx context.Context, pool db.Pool, profiles []model.CustomerProfile) (int64, error) {
	if err := EnsureTable(ctx, pool); err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(profiles))
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.CustomerID == "" || seen[p.CustomerID] {
			continue
		}
		seen[p.CustomerID] = true
		rows = append(rows, importRow(p))
	}

	n, err := db.InsertMissing(ctx, pool, Table, Columns, []string{"customer_id"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "profile: import")
	}

	zap.L().Info("profile: import complete",
		zap.Int("rows", len(rows)),
		zap.Int64("inserted", n),
	)
	return n, nil
}

func importRow(p model.CustomerProfile) []any {
	var lastActivity any
	if t, ok := p.LastActivity(); ok {
		lastActivity = t
	}
	return []any{
		p.CustomerID,
		p.CustomerName,
		p.Industry,
		p.AnnualRevenue,
		int32(p.Employees),
		p.PriorityRating,
		p.AccountType,
		p.Location,
		strings.Join(p.CurrentProducts, ", "),
		p.ProductUsage,
		strings.Join(p.CrossSellSynergy, ", "),
		lastActivity,
		p.OpportunityStage,
		p.OpportunityAmount,
		p.OpportunityType,
		strings.Join(p.Competitors, ", "),
		p.ActivityStatus,
		p.ActivityPriority,
		p.ActivityType,
		p.ProductSKU,
	}
}


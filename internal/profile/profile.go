// Package profile loads customer profiles from CSV files or Postgres.
package profile

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/xsell-cli/internal/model"
)

// ErrNotFound is returned when no profile exists for a customer id.
var ErrNotFound = eris.New("profile: customer not found")

// Loader supplies customer profiles to the pipeline.
type Loader interface {
	Load(ctx context.Context, customerID string) (model.CustomerProfile, error)
	List(ctx context.Context) ([]model.CustomerSummary, error)
}

// Columns is the column order of the customer_data table and of the CSV
// header it is imported from.
var Columns = []string{
	"customer_id",
	"customer_name",
	"industry",
	"annual_revenue",
	"number_of_employees",
	"customer_priority_rating",
	"account_type",
	"location",
	"current_products",
	"product_usage",
	"cross_sell_synergy",
	"last_activity_date",
	"opportunity_stage",
	"opportunity_amount",
	"opportunity_type",
	"competitors",
	"activity_status",
	"activity_priority",
	"activity_type",
	"product_sku",
}

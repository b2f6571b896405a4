package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/xsell-cli/internal/db"
	"github.com/sells-group/xsell-cli/internal/model"
)

// Table holds imported customer profiles.
const Table = "customer_data"

const createTableSQL = `CREATE TABLE IF NOT EXISTS customer_data (
	customer_id              VARCHAR(10) PRIMARY KEY,
	customer_name            TEXT NOT NULL,
	industry                 TEXT,
	annual_revenue           BIGINT,
	number_of_employees      INTEGER,
	customer_priority_rating TEXT,
	account_type             TEXT,
	location                 TEXT,
	current_products         TEXT,
	product_usage            DOUBLE PRECISION,
	cross_sell_synergy       TEXT,
	last_activity_date       DATE,
	opportunity_stage        TEXT,
	opportunity_amount       BIGINT,
	opportunity_type         TEXT,
	competitors              TEXT,
	activity_status          TEXT,
	activity_priority        TEXT,
	activity_type            TEXT,
	product_sku              TEXT
)`

const selectProfileSQL = `SELECT customer_id, customer_name, COALESCE(industry, ''),
	COALESCE(annual_revenue, 0), COALESCE(number_of_employees, 0),
	COALESCE(customer_priority_rating, ''), COALESCE(account_type, ''), COALESCE(location, ''),
	COALESCE(current_products, ''), COALESCE(product_usage, 0), COALESCE(cross_sell_synergy, ''),
	last_activity_date, COALESCE(opportunity_stage, ''), COALESCE(opportunity_amount, 0),
	COALESCE(opportunity_type, ''), COALESCE(competitors, ''), COALESCE(activity_status, ''),
	COALESCE(activity_priority, ''), COALESCE(activity_type, ''), COALESCE(product_sku, '')
	FROM customer_data WHERE customer_id = $1`

const listProfilesSQL = `SELECT customer_id, customer_name, COALESCE(industry, '')
	FROM customer_data ORDER BY customer_id`

// PostgresLoader reads profiles from the customer_data table.
type PostgresLoader struct {
	pool db.Pool
}

var _ Loader = (*PostgresLoader)(nil)

// NewPostgresLoader creates a loader backed by pool.
func NewPostgresLoader(pool db.Pool) *PostgresLoader {
	return &PostgresLoader{pool: pool}
}

// Load implements Loader.
func (l *PostgresLoader) Load(ctx context.Context, customerID string) (model.CustomerProfile, error) {
	var (
		p                              model.CustomerProfile
		products, synergy, competitors string
		employees                      int32
		lastActivity                   *time.Time
	)
	err := l.pool.QueryRow(ctx, selectProfileSQL, strings.TrimSpace(customerID)).Scan(
		&p.CustomerID, &p.CustomerName, &p.Industry,
		&p.AnnualRevenue, &employees,
		&p.PriorityRating, &p.AccountType, &p.Location,
		&products, &p.ProductUsage, &synergy,
		&lastActivity, &p.OpportunityStage, &p.OpportunityAmount,
		&p.OpportunityType, &competitors, &p.ActivityStatus,
		&p.ActivityPriority, &p.ActivityType, &p.ProductSKU,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CustomerProfile{}, ErrNotFound
		}
		return model.CustomerProfile{}, eris.Wrapf(err, "profile: load %s", customerID)
	}

	p.Employees = int(employees)
	p.CurrentProducts = model.SplitList(products)
	p.CrossSellSynergy = model.SplitList(synergy)
	p.Competitors = model.SplitList(competitors)
	if lastActivity != nil {
		p.LastActivityDate = lastActivity.Format(time.DateOnly)
	}
	return p, nil
}

// List implements Loader.
func (l *PostgresLoader) List(ctx context.Context) ([]model.CustomerSummary, error) {
	rows, err := l.pool.Query(ctx, listProfilesSQL)
	if err != nil {
		return nil, eris.Wrap(err, "profile: list customers")
	}
	defer rows.Close()

	out := []model.CustomerSummary{}
	for rows.Next() {
		var s model.CustomerSummary
		if err := rows.Scan(&s.CustomerID, &s.CustomerName, &s.Industry); err != nil {
			return nil, eris.Wrap(err, "profile: scan customer")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "profile: iterate customers")
}

package model

import (
	"strings"
	"time"
)

// activityDateLayout is the date format used by customer exports.
const activityDateLayout = "2006-01-02"

// CustomerProfile is the read-only customer record a pipeline run analyzes.
type CustomerProfile struct {
	CustomerID        string   `json:"customer_id"`
	CustomerName      string   `json:"customer_name"`
	Industry          string   `json:"industry"`
	AnnualRevenue     int64    `json:"annual_revenue"`
	Employees         int      `json:"number_of_employees"`
	PriorityRating    string   `json:"customer_priority_rating"`
	AccountType       string   `json:"account_type"`
	Location          string   `json:"location"`
	CurrentProducts   []string `json:"current_products"`
	ProductUsage      float64  `json:"product_usage"`
	CrossSellSynergy  []string `json:"cross_sell_synergy"`
	LastActivityDate  string   `json:"last_activity_date"`
	OpportunityStage  string   `json:"opportunity_stage"`
	OpportunityAmount int64    `json:"opportunity_amount"`
	OpportunityType   string   `json:"opportunity_type"`
	Competitors       []string `json:"competitors"`
	ActivityStatus    string   `json:"activity_status"`
	ActivityPriority  string   `json:"activity_priority"`
	ActivityType      string   `json:"activity_type"`
	ProductSKU        string   `json:"product_sku"`
}

// Underutilized reports whether product usage is below threshold percent.
func (p CustomerProfile) Underutilized(threshold float64) bool {
	return p.ProductUsage < threshold
}

// LastActivity parses LastActivityDate. ok is false when the date is empty
// or not in YYYY-MM-DD form.
func (p CustomerProfile) LastActivity() (t time.Time, ok bool) {
	s := strings.TrimSpace(p.LastActivityDate)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(activityDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysSinceActivity returns whole days between the last activity and now.
func (p CustomerProfile) DaysSinceActivity(now time.Time) (int, bool) {
	t, ok := p.LastActivity()
	if !ok {
		return 0, false
	}
	return int(now.Sub(t).Hours() / 24), true
}

// CustomerSummary is the short listing form of a customer.
type CustomerSummary struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Industry     string `json:"industry"`
}

// SplitList splits a comma-separated cell into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

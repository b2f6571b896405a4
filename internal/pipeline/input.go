package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/xsell-cli/internal/model"
)

// writeProfile renders the customer profile as the stage context block.
func writeProfile(b *strings.Builder, p model.CustomerProfile) {
	fmt.Fprintf(b, "## Customer\n")
	fmt.Fprintf(b, "- ID: %s\n", p.CustomerID)
	fmt.Fprintf(b, "- Name: %s\n", p.CustomerName)
	fmt.Fprintf(b, "- Industry: %s\n", p.Industry)
	fmt.Fprintf(b, "- Annual revenue (USD): %d\n", p.AnnualRevenue)
	fmt.Fprintf(b, "- Employees: %d\n", p.Employees)
	fmt.Fprintf(b, "- Priority rating: %s\n", p.PriorityRating)
	fmt.Fprintf(b, "- Account type: %s\n", p.AccountType)
	fmt.Fprintf(b, "- Location: %s\n", p.Location)
	fmt.Fprintf(b, "- Current products: %s\n", joinOrNone(p.CurrentProducts))
	fmt.Fprintf(b, "- Product usage: %.0f%%\n", p.ProductUsage)
	fmt.Fprintf(b, "- Cross-sell synergy hints: %s\n", joinOrNone(p.CrossSellSynergy))
	fmt.Fprintf(b, "- Competitors: %s\n", joinOrNone(p.Competitors))
	fmt.Fprintf(b, "- Product SKU: %s\n", p.ProductSKU)
	fmt.Fprintf(b, "\n## Opportunity\n")
	fmt.Fprintf(b, "- Stage: %s\n", p.OpportunityStage)
	fmt.Fprintf(b, "- Amount (USD): %d\n", p.OpportunityAmount)
	fmt.Fprintf(b, "- Type: %s\n", p.OpportunityType)
	fmt.Fprintf(b, "\n## Activity\n")
	fmt.Fprintf(b, "- Last activity date: %s\n", p.LastActivityDate)
	fmt.Fprintf(b, "- Status: %s\n", p.ActivityStatus)
	fmt.Fprintf(b, "- Priority: %s\n", p.ActivityPriority)
	fmt.Fprintf(b, "- Type: %s\n", p.ActivityType)
}

// writeUsageSignals adds the derived usage flags used by pattern analysis.
func writeUsageSignals(b *strings.Builder, p model.CustomerProfile, threshold float64, now time.Time) {
	fmt.Fprintf(b, "\n## Derived signals\n")
	fmt.Fprintf(b, "- Underutilized (usage below %.0f%%): %t\n", threshold, p.Underutilized(threshold))
	if days, ok := p.DaysSinceActivity(now); ok {
		fmt.Fprintf(b, "- Days since last activity: %d\n", days)
	}
}

func writeFindings(b *strings.Builder, findings Optional[string]) {
	fmt.Fprintf(b, "\n## Pattern findings\n")
	if f, ok := findings.Get(); ok {
		b.WriteString(strings.TrimSpace(f))
		b.WriteString("\n")
		return
	}
	b.WriteString("No pattern analysis is available for this customer.\n")
}

// candidateLinePrefix starts each candidate line handed to scoring.
const candidateLinePrefix = "- product: "

func writeCandidates(b *strings.Builder, cands []model.RawCandidate) {
	fmt.Fprintf(b, "\n## Candidates\n")
	for _, c := range cands {
		fmt.Fprintf(b, "%s%s | type: %s", candidateLinePrefix, c.ProductName, c.Type)
		if c.ValueHint != "" {
			fmt.Fprintf(b, " | value hint: %s", c.ValueHint)
		}
		if c.Rationale != "" {
			fmt.Fprintf(b, " | rationale: %s", c.Rationale)
		}
		b.WriteString("\n")
	}
}

func writeRecommendations(b *strings.Builder, recs []model.ScoredRecommendation) {
	fmt.Fprintf(b, "\n## Recommendations\n")
	if len(recs) == 0 {
		b.WriteString("None.\n")
		return
	}
	for i, r := range recs {
		fmt.Fprintf(b, "%d. %s (%s) confidence %.2f, estimated value $%.0f: %s\n",
			i+1, r.ProductName, r.Type, r.ConfidenceScore, r.EstimatedValue, r.Rationale)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/xsell-cli/internal/model"
)

// FallbackReport renders a templated report from the profile and ranked
// recommendations. It is used when report generation fails.
func FallbackReport(p model.CustomerProfile, findings Optional[string], recs []model.ScoredRecommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", p.CustomerName)

	fmt.Fprintf(&b, "## Executive Summary\n\n")
	fmt.Fprintf(&b, "%s (%s) has %d recommended opportunities", p.CustomerName, p.CustomerID, len(recs))
	if len(recs) > 0 {
		fmt.Fprintf(&b, ", led by %s at %.0f%% confidence", recs[0].ProductName, recs[0].ConfidenceScore*100)
	}
	b.WriteString(".\n\n")

	fmt.Fprintf(&b, "## Customer Overview\n\n")
	fmt.Fprintf(&b, "- Industry: %s\n- Location: %s\n- Annual revenue: $%d\n- Employees: %d\n- Account type: %s\n\n",
		p.Industry, p.Location, p.AnnualRevenue, p.Employees, p.AccountType)

	fmt.Fprintf(&b, "## Current State Analysis\n\n")
	fmt.Fprintf(&b, "- Current products: %s\n- Product usage: %.0f%%\n- Last activity: %s (%s)\n\n",
		joinOrNone(p.CurrentProducts), p.ProductUsage, p.LastActivityDate, p.ActivityStatus)
	if f, ok := findings.Get(); ok {
		b.WriteString(strings.TrimSpace(f))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "## Market Context\n\n")
	fmt.Fprintf(&b, "- Competitors: %s\n\n", joinOrNone(p.Competitors))

	fmt.Fprintf(&b, "## Opportunity Analysis\n\n")
	fmt.Fprintf(&b, "- Open opportunity: %s, stage %s, $%d\n\n", p.OpportunityType, p.OpportunityStage, p.OpportunityAmount)

	fmt.Fprintf(&b, "## Recommendations\n\n")
	if len(recs) == 0 {
		b.WriteString("No recommendations.\n\n")
	}
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. **%s** (%s): confidence %.0f%%, estimated value $%.0f\n", i+1, r.ProductName, r.Type, r.ConfidenceScore*100, r.EstimatedValue)
		if r.Rationale != "" {
			fmt.Fprintf(&b, "   %s\n", r.Rationale)
		}
	}
	if len(recs) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Implementation Strategy\n\n")
	b.WriteString("Prioritize recommendations in the order listed and review them with the account team.\n\n")

	fmt.Fprintf(&b, "## Conclusion\n\n")
	b.WriteString("This report was generated from account data without narrative analysis.\n")
	return b.String()
}

// ShortfallReport explains why no recommendations could be produced.
func ShortfallReport(p model.CustomerProfile, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", p.CustomerName)
	fmt.Fprintf(&b, "## Executive Summary\n\n")
	fmt.Fprintf(&b, "No cross-sell or upsell recommendations could be produced for %s (%s).\n\n", p.CustomerName, p.CustomerID)
	fmt.Fprintf(&b, "Product affinity analysis did not return candidates: %s\n", reason)
	return b.String()
}

package pipeline

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/xsell-cli/internal/model"
)

// Filter drops ranked recommendations that do not satisfy a CEL expression
// over "rec" and "customer", e.g.
//
//	rec.confidence_score >= 0.5 && !(rec.product_name in customer.current_products)
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter compiles expr. An empty expression yields a nil Filter, which
// keeps every recommendation.
func NewFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("rec", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("customer", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: filter env")
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, eris.Wrapf(iss.Err(), "pipeline: compile filter %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, eris.Errorf("pipeline: filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: program filter %q", expr)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Apply returns the recommendations for which the expression holds, in
// their original order.
func (f *Filter) Apply(recs []model.ScoredRecommendation, profile model.CustomerProfile) ([]model.ScoredRecommendation, error) {
	if f == nil {
		return recs, nil
	}

	customer := customerVars(profile)
	out := make([]model.ScoredRecommendation, 0, len(recs))
	for _, r := range recs {
		val, _, err := f.prg.Eval(map[string]any{
			"rec":      recVars(r),
			"customer": customer,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: evaluate filter on %q", r.ProductName)
		}
		if keep, ok := val.Value().(bool); ok && keep {
			out = append(out, r)
		}
	}
	return out, nil
}

func recVars(r model.ScoredRecommendation) map[string]any {
	return map[string]any{
		"product_name":        r.ProductName,
		"recommendation_type": string(r.Type),
		"confidence_score":    r.ConfidenceScore,
		"estimated_value":     r.EstimatedValue,
		"rationale":           r.Rationale,
	}
}

func customerVars(p model.CustomerProfile) map[string]any {
	return map[string]any{
		"customer_id":        p.CustomerID,
		"customer_name":      p.CustomerName,
		"industry":           p.Industry,
		"annual_revenue":     p.AnnualRevenue,
		"employees":          int64(p.Employees),
		"priority_rating":    p.PriorityRating,
		"account_type":       p.AccountType,
		"location":           p.Location,
		"current_products":   nonNil(p.CurrentProducts),
		"product_usage":      p.ProductUsage,
		"opportunity_stage":  p.OpportunityStage,
		"opportunity_amount": p.OpportunityAmount,
		"opportunity_type":   p.OpportunityType,
		"competitors":        nonNil(p.Competitors),
		"activity_status":    p.ActivityStatus,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

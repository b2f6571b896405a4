// Package render turns research reports into standalone HTML pages.
package render

import (
	"bytes"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/sells-group/xsell-cli/internal/model"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

const pageCSS = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#1c1917;line-height:1.5}
h1,h2{border-bottom:1px solid #e7e5e4;padding-bottom:.25rem}
table{border-collapse:collapse;width:100%;font-size:.9rem}
th,td{border:1px solid #a8a29e;padding:.35rem .5rem;text-align:left;vertical-align:top}
thead th{background:#f1f5f9}
.meta{color:#57534e;font-size:.9rem}
.outcome-degraded{color:#b45309}
.outcome-pipeline_failure{color:#b91c1c}`

// Markdown converts GFM markdown to an HTML fragment.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", eris.Wrap(err, "render: markdown convert")
	}
	return buf.String(), nil
}

// ReportPage renders a full HTML page for a result: a metadata header, the
// report body and a recommendations table.
func ReportPage(res *model.RecommendationResult) (string, error) {
	body, err := Markdown(res.ResearchReport)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset='utf-8'>")
	fmt.Fprintf(&b, "<title>Cross-sell report: %s</title>", html.EscapeString(res.CustomerID))
	b.WriteString("<style>" + pageCSS + "</style></head><body>")
	fmt.Fprintf(&b, "<p class='meta'>Customer <strong>%s</strong> &middot; outcome <span class='outcome-%s'>%s</span></p>",
		html.EscapeString(res.CustomerID), html.EscapeString(string(res.Outcome)), html.EscapeString(string(res.Outcome)))

	if len(res.StageErrors) > 0 {
		b.WriteString("<ul class='meta'>")
		for _, stage := range sortedKeys(res.StageErrors) {
			fmt.Fprintf(&b, "<li>%s: %s</li>", html.EscapeString(stage), html.EscapeString(res.StageErrors[stage]))
		}
		b.WriteString("</ul>")
	}

	b.WriteString(body)
	b.WriteString(recommendationsTable(res.Recommendations))
	b.WriteString("</body></html>")
	return b.String(), nil
}

func recommendationsTable(recs []model.ScoredRecommendation) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<h2>Ranked recommendations</h2><table><thead><tr><th>#</th><th>Product</th><th>Type</th><th>Confidence</th><th>Estimated value</th><th>Rationale</th></tr></thead><tbody>")
	for i, r := range recs {
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%.0f%%</td><td>$%.0f</td><td>%s</td></tr>",
			i+1,
			html.EscapeString(r.ProductName),
			html.EscapeString(string(r.Type)),
			r.ConfidenceScore*100,
			r.EstimatedValue,
			html.EscapeString(r.Rationale),
		)
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

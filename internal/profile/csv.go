package profile

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xsell-cli/internal/model"
)

// csvRow mirrors one line of customer_data.csv.
type csvRow struct {
	CustomerID        string  `csv:"Customer ID"`
	CustomerName      string  `csv:"Customer Name"`
	Industry          string  `csv:"Industry"`
	AnnualRevenue     float64 `csv:"Annual Revenue (USD),omitempty"`
	Employees         float64 `csv:"Number of Employees,omitempty"`
	PriorityRating    string  `csv:"Customer Priority Rating"`
	AccountType       string  `csv:"Account Type"`
	Location          string  `csv:"Location"`
	CurrentProducts   string  `csv:"Current Products"`
	ProductUsage      float64 `csv:"Product Usage (%),omitempty"`
	CrossSellSynergy  string  `csv:"Cross-Sell Synergy"`
	LastActivityDate  string  `csv:"Last Activity Date"`
	OpportunityStage  string  `csv:"Opportunity Stage"`
	OpportunityAmount float64 `csv:"Opportunity Amount (USD),omitempty"`
	OpportunityType   string  `csv:"Opportunity Type"`
	Competitors       string  `csv:"Competitors"`
	ActivityStatus    string  `csv:"Activity Status"`
	ActivityPriority  string  `csv:"Activity Priority"`
	ActivityType      string  `csv:"Activity Type"`
	ProductSKU        string  `csv:"Product SKU"`
}

func (r csvRow) profile() model.CustomerProfile {
	return model.CustomerProfile{
		CustomerID:        strings.TrimSpace(r.CustomerID),
		CustomerName:      strings.TrimSpace(r.CustomerName),
		Industry:          strings.TrimSpace(r.Industry),
		AnnualRevenue:     int64(math.Round(r.AnnualRevenue)),
		Employees:         int(math.Round(r.Employees)),
		PriorityRating:    strings.TrimSpace(r.PriorityRating),
		AccountType:       strings.TrimSpace(r.AccountType),
		Location:          strings.TrimSpace(r.Location),
		CurrentProducts:   model.SplitList(r.CurrentProducts),
		ProductUsage:      r.ProductUsage,
		CrossSellSynergy:  model.SplitList(r.CrossSellSynergy),
		LastActivityDate:  strings.TrimSpace(r.LastActivityDate),
		OpportunityStage:  strings.TrimSpace(r.OpportunityStage),
		OpportunityAmount: int64(math.Round(r.OpportunityAmount)),
		OpportunityType:   strings.TrimSpace(r.OpportunityType),
		Competitors:       model.SplitList(r.Competitors),
		ActivityStatus:    strings.TrimSpace(r.ActivityStatus),
		ActivityPriority:  strings.TrimSpace(r.ActivityPriority),
		ActivityType:      strings.TrimSpace(r.ActivityType),
		ProductSKU:        strings.TrimSpace(r.ProductSKU),
	}
}

// CSVLoader serves profiles from a CSV file read once at construction.
type CSVLoader struct {
	profiles []model.CustomerProfile
	byID     map[string]int
}

var _ Loader = (*CSVLoader)(nil)

// NewCSVLoader reads and indexes the CSV file at path.
func NewCSVLoader(path string) (*CSVLoader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	profiles, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read csv %s", path)
	}

	l := &CSVLoader{profiles: profiles, byID: make(map[string]int, len(profiles))}
	for i, p := range profiles {
		if _, dup := l.byID[p.CustomerID]; dup {
			continue
		}
		l.byID[p.CustomerID] = i
	}

	zap.L().Info("profile: csv loaded", zap.String("path", path), zap.Int("customers", len(profiles)))
	return l, nil
}

// ReadCSV decodes every row of a customer CSV. Rows without a customer id
// are skipped.
func ReadCSV(r io.Reader) ([]model.CustomerProfile, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "profile: read csv header")
	}

	var out []model.CustomerProfile
	for {
		var row csvRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrap(err, "profile: decode csv row")
		}
		p := row.profile()
		if p.CustomerID == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Load implements Loader.
func (l *CSVLoader) Load(_ context.Context, customerID string) (model.CustomerProfile, error) {
	i, ok := l.byID[strings.TrimSpace(customerID)]
	if !ok {
		return model.CustomerProfile{}, ErrNotFound
	}
	return l.profiles[i], nil
}

// List implements Loader.
func (l *CSVLoader) List(_ context.Context) ([]model.CustomerSummary, error) {
	out := make([]model.CustomerSummary, 0, len(l.byID))
	for i, p := range l.profiles {
		if l.byID[p.CustomerID] != i {
			continue
		}
		out = append(out, model.CustomerSummary{
			CustomerID:   p.CustomerID,
			CustomerName: p.CustomerName,
			Industry:     p.Industry,
		})
	}
	return out, nil
}

// Profiles returns every loaded profile in file order.
func (l *CSVLoader) Profiles() []model.CustomerProfile {
	return l.profiles
}

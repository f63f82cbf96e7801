package statutory

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/shopspring/decimal"
)

// TableDocument is the serialized form of statutory tables, shared by the
// YAML files and the JSONB column of the statutory_tables table.
//
//	contributions:
//	  - scheme: sss
//	    effective_date: 2023-01-01
//	    rate: "0.045"
//	    ceiling: "1350.00"
//	withholding_tax:
//	  - effective_date: 2023-01-01
//	    brackets:
//	      - {lower_bound: "20833.00", base: "0", rate: "0.20"}
type TableDocument struct {
	Region         string                 `yaml:"region" json:"region,omitempty"`
	Contributions  []ContributionDocument `yaml:"contributions" json:"contributions,omitempty"`
	WithholdingTax []BracketTableDocument `yaml:"withholding_tax" json:"withholding_tax,omitempty"`
}

type ContributionDocument struct {
	Scheme        string  `yaml:"scheme" json:"scheme"`
	EffectiveDate string  `yaml:"effective_date" json:"effective_date"`
	Rate          string  `yaml:"rate" json:"rate"`
	Ceiling       *string `yaml:"ceiling,omitempty" json:"ceiling,omitempty"`
}

type BracketTableDocument struct {
	EffectiveDate string            `yaml:"effective_date" json:"effective_date"`
	Brackets      []BracketDocument `yaml:"brackets" json:"brackets"`
}

type BracketDocument struct {
	LowerBound string `yaml:"lower_bound" json:"lower_bound"`
	Base       string `yaml:"base" json:"base"`
	Rate       string `yaml:"rate" json:"rate"`
}

const dateLayout = "2006-01-02"

// Versions converts the document into domain tables. It only parses; callers
// validate the merged result.
func (d TableDocument) Versions() (statutory.Versions, error) {
	var v statutory.Versions

	for i, c := range d.Contributions {
		scheme := statutory.Scheme(c.Scheme)
		effective, err := time.Parse(dateLayout, c.EffectiveDate)
		if err != nil {
			return v, &statutory.TableError{Scheme: scheme, Reason: fmt.Sprintf("contribution %d: invalid effective_date %q", i, c.EffectiveDate)}
		}
		rate, err := decimal.NewFromString(c.Rate)
		if err != nil {
			return v, &statutory.TableError{Scheme: scheme, Reason: fmt.Sprintf("contribution %d: invalid rate %q", i, c.Rate)}
		}
		rule := statutory.ContributionRule{Scheme: scheme, EffectiveDate: effective, Rate: rate}
		if c.Ceiling != nil {
			ceiling, err := decimal.NewFromString(*c.Ceiling)
			if err != nil {
				return v, &statutory.TableError{Scheme: scheme, Reason: fmt.Sprintf("contribution %d: invalid ceiling %q", i, *c.Ceiling)}
			}
			rule.Ceiling = &ceiling
		}
		v.Contributions = append(v.Contributions, rule)
	}

	for i, t := range d.WithholdingTax {
		effective, err := time.Parse(dateLayout, t.EffectiveDate)
		if err != nil {
			return v, &statutory.TableError{Scheme: statutory.SchemeWithholdingTax, Reason: fmt.Sprintf("table %d: invalid effective_date %q", i, t.EffectiveDate)}
		}
		table := statutory.BracketTable{EffectiveDate: effective}
		for j, b := range t.Brackets {
			bracket, err := parseBracket(b)
			if err != nil {
				return v, &statutory.TableError{Scheme: statutory.SchemeWithholdingTax, Reason: fmt.Sprintf("table %d bracket %d: %v", i, j, err)}
			}
			table.Brackets = append(table.Brackets, bracket)
		}
		v.Tax = append(v.Tax, table)
	}

	return v, nil
}

func parseBracket(b BracketDocument) (statutory.Bracket, error) {
	bound, err := decimal.NewFromString(b.LowerBound)
	if err != nil {
		return statutory.Bracket{}, fmt.Errorf("invalid lower_bound %q", b.LowerBound)
	}
	base, err := decimal.NewFromString(b.Base)
	if err != nil {
		return statutory.Bracket{}, fmt.Errorf("invalid base %q", b.Base)
	}
	rate, err := decimal.NewFromString(b.Rate)
	if err != nil {
		return statutory.Bracket{}, fmt.Errorf("invalid rate %q", b.Rate)
	}
	return statutory.Bracket{LowerBound: bound, Base: base, Rate: rate}, nil
}

// Merge concatenates versions from several documents.
func Merge(parts ...statutory.Versions) statutory.Versions {
	var out statutory.Versions
	for _, p := range parts {
		out.Contributions = append(out.Contributions, p.Contributions...)
		out.Tax = append(out.Tax, p.Tax...)
	}
	return out
}

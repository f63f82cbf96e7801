package statutory

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Scheme identifies a mandatory contribution.
type Scheme string

const (
	SchemeSSS        Scheme = "sss"        // mandatory savings
	SchemePhilHealth Scheme = "philhealth" // health insurance
	SchemePagIBIG    Scheme = "pagibig"    // housing fund
)

const SchemeWithholdingTax Scheme = "withholding_tax"

// ContributionSchemes lists the schemes computed from gross income, in the
// order they appear on a result.
var ContributionSchemes = []Scheme{SchemeSSS, SchemePhilHealth, SchemePagIBIG}

func (s Scheme) IsContribution() bool {
	for _, c := range ContributionSchemes {
		if c == s {
			return true
		}
	}
	return false
}

// ceilingScale matches the scale of stored amounts.
const ceilingScale = 2

// ContributionRule is a flat rate on gross income with an optional ceiling.
type ContributionRule struct {
	Scheme        Scheme
	EffectiveDate time.Time
	Rate          decimal.Decimal
	Ceiling       *decimal.Decimal
}

func (r ContributionRule) Validate() error {
	if !r.Scheme.IsContribution() {
		return &TableError{Scheme: r.Scheme, Reason: "not a contribution scheme"}
	}
	if r.Rate.IsNegative() || r.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return &TableError{Scheme: r.Scheme, Reason: fmt.Sprintf("rate %s outside [0, 1]", r.Rate)}
	}
	if r.Ceiling != nil {
		if r.Ceiling.IsNegative() {
			return &TableError{Scheme: r.Scheme, Reason: fmt.Sprintf("negative ceiling %s", r.Ceiling)}
		}
		// A ceiling between cents would round past itself when quantized.
		if !r.Ceiling.Equal(r.Ceiling.Truncate(ceilingScale)) {
			return &TableError{Scheme: r.Scheme, Reason: fmt.Sprintf("ceiling %s has more than %d decimal places", r.Ceiling, ceilingScale)}
		}
	}
	return nil
}

// Bracket is one row of a progressive table: tax = Base + Rate * (income - LowerBound).
type Bracket struct {
	LowerBound decimal.Decimal
	Base       decimal.Decimal
	Rate       decimal.Decimal
}

// BracketTable is an ordered, validated set of brackets.
type BracketTable struct {
	EffectiveDate time.Time
	Brackets      []Bracket
}

// continuityTolerance absorbs published tables whose bases are rounded at
// bracket edges (e.g. bounds of 33,332 vs 33,333).
var continuityTolerance = decimal.NewFromInt(1)

// Validate checks the tables once, at load time: at least one
// bracket, strictly increasing bounds, non-decreasing bases and rates, rates
// within [0, 1], and each base continuing the previous bracket's tax line.
func (t BracketTable) Validate() error {
	if len(t.Brackets) == 0 {
		return &TableError{Scheme: SchemeWithholdingTax, Reason: "bracket table is empty"}
	}
	one := decimal.NewFromInt(1)
	for i, b := range t.Brackets {
		if b.LowerBound.IsNegative() || b.Base.IsNegative() {
			return &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("bracket %d has negative bound or base", i)}
		}
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("bracket %d rate %s outside [0, 1]", i, b.Rate)}
		}
		if i == 0 {
			continue
		}
		prev := t.Brackets[i-1]
		if !b.LowerBound.GreaterThan(prev.LowerBound) {
			return &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("bracket %d bound %s not above %s", i, b.LowerBound, prev.LowerBound)}
		}
		if b.Base.LessThan(prev.Base) {
			return &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("bracket %d base %s decreases", i, b.Base)}
		}
		if b.Rate.LessThan(prev.Rate) {
			return &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("bracket %d rate %s decreases", i, b.Rate)}
		}
		expected := prev.Base.Add(prev.Rate.Mul(b.LowerBound.Sub(prev.LowerBound)))
		if expected.Sub(b.Base).Abs().GreaterThan(continuityTolerance) {
			return &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("bracket %d base %s is not contiguous with previous bracket (expected %s)", i, b.Base, expected.StringFixed(2))}
		}
	}
	return nil
}

// RuleSet is the complete, validated set of rules in force on one date.
// It holds no mutable state and is safe to share between goroutines.
type RuleSet struct {
	EffectiveDate time.Time
	Contributions map[Scheme]ContributionRule
	Tax           BracketTable
}

func (rs RuleSet) Validate() error {
	total := decimal.Zero
	for _, s := range ContributionSchemes {
		rule, ok := rs.Contributions[s]
		if !ok {
			return &TableError{Scheme: s, Reason: "no rule in force"}
		}
		if err := rule.Validate(); err != nil {
			return err
		}
		total = total.Add(rule.Rate)
	}
	// Above 1, statutory deductions would exceed gross for every income.
	// Per-scheme rounding can still push them a cent or two past a tiny
	// gross; the calculator floors taxable income at zero for that case.
	if total.GreaterThan(decimal.NewFromInt(1)) {
		return &TableError{Reason: fmt.Sprintf("contribution rates sum to %s, above 1", total)}
	}
	return rs.Tax.Validate()
}

// Versions holds every effective-dated version of every scheme, as loaded
// from a table source.
type Versions struct {
	Contributions []ContributionRule
	Tax           []BracketTable
}

// Validate checks every version independently so a bad row is reported when
// the tables are loaded, not when a run that happens to need it computes.
func (v Versions) Validate() error {
	if len(v.Contributions) == 0 && len(v.Tax) == 0 {
		return &TableError{Reason: "no statutory tables defined"}
	}
	for _, c := range v.Contributions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, t := range v.Tax {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// At selects, per scheme, the version with the latest effective date on or
// before date.
func (v Versions) At(date time.Time) (RuleSet, error) {
	rs := RuleSet{EffectiveDate: date, Contributions: make(map[Scheme]ContributionRule)}

	contributions := append([]ContributionRule(nil), v.Contributions...)
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].EffectiveDate.Before(contributions[j].EffectiveDate)
	})
	for _, c := range contributions {
		if c.EffectiveDate.After(date) {
			continue
		}
		rs.Contributions[c.Scheme] = c
	}

	found := false
	for _, t := range v.Tax {
		if t.EffectiveDate.After(date) {
			continue
		}
		if !found || t.EffectiveDate.After(rs.Tax.EffectiveDate) {
			rs.Tax = t
			found = true
		}
	}
	if !found {
		return RuleSet{}, &TableError{Scheme: SchemeWithholdingTax, Reason: fmt.Sprintf("no table in force on %s", date.Format("2006-01-02"))}
	}

	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

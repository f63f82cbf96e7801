package statutory

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// Contribution applies a scheme's rate to gross income, quantizes, and clamps
// the result to the scheme ceiling when one is set.
func Contribution(gross decimal.Decimal, rule statutory.ContributionRule) (money.Amount, error) {
	if gross.IsNegative() {
		return money.Zero, fmt.Errorf("%w: negative gross %s for %s", statutory.ErrInvalidInput, gross, rule.Scheme)
	}

	contribution := money.Quantize(gross.Mul(rule.Rate))
	if rule.Ceiling != nil {
		// Truncating keeps the clamp at or below the ceiling whatever its scale.
		ceiling := money.Quantize(rule.Ceiling.Truncate(money.Scale))
		if contribution.GreaterThan(ceiling) {
			contribution = ceiling
		}
	}
	return contribution, nil
}

// WithholdingTax picks the highest bracket whose lower bound is at or below
// taxable income and returns base + rate * (income - bound). Income below the
// first bound is not taxed. The table is assumed validated.
func WithholdingTax(taxable decimal.Decimal, table statutory.BracketTable) (money.Amount, error) {
	if taxable.IsNegative() {
		return money.Zero, fmt.Errorf("%w: negative taxable income %s", statutory.ErrInvalidInput, taxable)
	}

	var selected *statutory.Bracket
	for i := range table.Brackets {
		if table.Brackets[i].LowerBound.GreaterThan(taxable) {
			break
		}
		selected = &table.Brackets[i]
	}
	if selected == nil {
		return money.Zero, nil
	}

	excess := taxable.Sub(selected.LowerBound)
	return money.Quantize(selected.Base.Add(selected.Rate.Mul(excess))), nil
}

// Breakdown is the statutory portion of one employee's result.
type Breakdown struct {
	Gross          money.Amount
	SSS            money.Amount
	PhilHealth     money.Amount
	PagIBIG        money.Amount
	TotalStatutory money.Amount
	TaxableIncome  money.Amount
	WithholdingTax money.Amount
}

// Calculator evaluates a fixed rule set. It is a value type; build one per
// computation pass from the rule set in force for the run.
type Calculator struct {
	rules statutory.RuleSet
}

func NewCalculator(rules statutory.RuleSet) Calculator {
	return Calculator{rules: rules}
}

func (c Calculator) Rules() statutory.RuleSet { return c.rules }

// Compute derives every statutory figure from an exact gross income. Each
// component is quantized once, where it is computed; the totals are exact
// sums of quantized parts. Taxable income is gross minus total statutory,
// floored at zero when rounding leaves the contributions above a tiny gross.
func (c Calculator) Compute(gross decimal.Decimal) (Breakdown, error) {
	if gross.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: negative gross %s", statutory.ErrInvalidInput, gross)
	}

	var (
		b   = Breakdown{Gross: money.Quantize(gross)}
		err error
	)
	parts := map[statutory.Scheme]*money.Amount{
		statutory.SchemeSSS:        &b.SSS,
		statutory.SchemePhilHealth: &b.PhilHealth,
		statutory.SchemePagIBIG:    &b.PagIBIG,
	}
	for _, scheme := range statutory.ContributionSchemes {
		rule, ok := c.rules.Contributions[scheme]
		if !ok {
			return Breakdown{}, &statutory.TableError{Scheme: scheme, Reason: "no rule in force"}
		}
		if *parts[scheme], err = Contribution(gross, rule); err != nil {
			return Breakdown{}, err
		}
	}

	b.TotalStatutory = money.Sum(b.SSS, b.PhilHealth, b.PagIBIG)
	b.TaxableIncome = b.Gross.Sub(b.TotalStatutory)
	if b.TaxableIncome.IsNegative() {
		b.TaxableIncome = money.Zero
	}
	if b.WithholdingTax, err = WithholdingTax(b.TaxableIncome.Decimal(), c.rules.Tax); err != nil {
		return Breakdown{}, err
	}
	return b, nil
}

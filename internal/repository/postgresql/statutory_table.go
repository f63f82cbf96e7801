package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

// Row payloads of statutory_tables.data. Decimals are stored as strings.
type contributionData struct {
	Rate    decimal.Decimal  `json:"rate"`
	Ceiling *decimal.Decimal `json:"ceiling,omitempty"`
}

type bracketData struct {
	LowerBound decimal.Decimal `json:"lower_bound"`
	Base       decimal.Decimal `json:"base"`
	Rate       decimal.Decimal `json:"rate"`
}

type taxData struct {
	Brackets []bracketData `json:"brackets"`
}

type statutoryTableRepository struct {
	db *database.DB
}

func NewStatutoryTableRepository(db *database.DB) statutory.TableStore {
	return &statutoryTableRepository{db: db}
}

// LoadVersions returns every version stored for region. A row that cannot be
// decoded is a configuration error for the whole set.
func (r *statutoryTableRepository) LoadVersions(ctx context.Context, region string) (statutory.Versions, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT scheme, effective_date, data
		FROM statutory_tables
		WHERE region = $1
		ORDER BY scheme, effective_date
	`

	rows, err := q.Query(ctx, query, region)
	if err != nil {
		return statutory.Versions{}, fmt.Errorf("failed to load statutory tables: %w", err)
	}
	defer rows.Close()

	var v statutory.Versions
	for rows.Next() {
		var (
			scheme    statutory.Scheme
			effective time.Time
			data      []byte
		)
		if err := rows.Scan(&scheme, &effective, &data); err != nil {
			return statutory.Versions{}, fmt.Errorf("failed to scan statutory table: %w", err)
		}

		if scheme == statutory.SchemeWithholdingTax {
			var td taxData
			if err := json.Unmarshal(data, &td); err != nil {
				return statutory.Versions{}, &statutory.TableError{Scheme: scheme, Reason: fmt.Sprintf("%s: %v", effective.Format("2006-01-02"), err)}
			}
			table := statutory.BracketTable{EffectiveDate: effective}
			for _, b := range td.Brackets {
				table.Brackets = append(table.Brackets, statutory.Bracket{LowerBound: b.LowerBound, Base: b.Base, Rate: b.Rate})
			}
			v.Tax = append(v.Tax, table)
			continue
		}

		var cd contributionData
		if err := json.Unmarshal(data, &cd); err != nil {
			return statutory.Versions{}, &statutory.TableError{Scheme: scheme, Reason: fmt.Sprintf("%s: %v", effective.Format("2006-01-02"), err)}
		}
		v.Contributions = append(v.Contributions, statutory.ContributionRule{
			Scheme:        scheme,
			EffectiveDate: effective,
			Rate:          cd.Rate,
			Ceiling:       cd.Ceiling,
		})
	}
	if err := rows.Err(); err != nil {
		return statutory.Versions{}, fmt.Errorf("failed to read statutory tables: %w", err)
	}
	return v, nil
}

func (r *statutoryTableRepository) SaveVersions(ctx context.Context, region string, versions statutory.Versions) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO statutory_tables (id, region, scheme, effective_date, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (region, scheme, effective_date) DO UPDATE SET data = EXCLUDED.data
	`

	for _, c := range versions.Contributions {
		data, err := json.Marshal(contributionData{Rate: c.Rate, Ceiling: c.Ceiling})
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, query, newID(), region, string(c.Scheme), c.EffectiveDate, data); err != nil {
			return fmt.Errorf("failed to save %s table: %w", c.Scheme, err)
		}
	}

	for _, t := range versions.Tax {
		td := taxData{Brackets: make([]bracketData, 0, len(t.Brackets))}
		for _, b := range t.Brackets {
			td.Brackets = append(td.Brackets, bracketData{LowerBound: b.LowerBound, Base: b.Base, Rate: b.Rate})
		}
		data, err := json.Marshal(td)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, query, newID(), region, string(statutory.SchemeWithholdingTax), t.EffectiveDate, data); err != nil {
			return fmt.Errorf("failed to save withholding tax table: %w", err)
		}
	}
	return nil
}

package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the directory record ingestion binds line items to. ExternalID
// is the identifier from the tenant's HR system and is what ingested items
// reference; it is unique per tenant.
type Employee struct {
	ID           string
	TenantID     string
	ExternalID   string
	FirstName    string
	LastName     string
	Email        *string
	TIN          *string
	SSSNo        *string
	PhilHealthNo *string
	PagIBIGNo    *string
	DailyRate    decimal.Decimal
	MonthlyRate  decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

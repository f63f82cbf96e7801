package auth

import "time"

// Tenant is a payroll client. It authenticates with an API key of the form
// "<prefix>.<secret>"; only the prefix and a bcrypt hash of the secret are stored.
type Tenant struct {
	ID        string
	Name      string
	KeyPrefix string
	KeyHash   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

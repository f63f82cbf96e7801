package statutory

import (
	"context"
	"time"
)

// Source resolves the rule set in force on a date. Implementations must
// return an error wrapping ErrConfiguration when no valid rule set exists
// and must never fall back to built-in defaults.
type Source interface {
	RuleSet(ctx context.Context, effective time.Time) (RuleSet, error)
}

// TableRepository reads raw versioned tables from storage.
type TableRepository interface {
	LoadVersions(ctx context.Context, region string) (Versions, error)
}

// TableWriter stores versioned tables. Saving a version that already exists
// for the same scheme and effective date replaces it.
type TableWriter interface {
	SaveVersions(ctx context.Context, region string, versions Versions) error
}

type TableStore interface {
	TableRepository
	TableWriter
}

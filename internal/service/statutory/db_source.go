package statutory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
)

// DBSource reads versioned tables from the database. Versions are cached for
// ttl so a computation pass does not query the tables once per run.
type DBSource struct {
	repo   statutory.TableRepository
	region string
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   *statutory.Versions
	loadedAt time.Time
}

func NewDBSource(repo statutory.TableRepository, region string, ttl time.Duration) *DBSource {
	return &DBSource{repo: repo, region: region, ttl: ttl, now: time.Now}
}

func (s *DBSource) RuleSet(ctx context.Context, effective time.Time) (statutory.RuleSet, error) {
	versions, err := s.load(ctx)
	if err != nil {
		return statutory.RuleSet{}, err
	}
	return versions.At(effective)
}

func (s *DBSource) load(ctx context.Context) (statutory.Versions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.loadedAt) < s.ttl {
		return *s.cached, nil
	}

	versions, err := s.repo.LoadVersions(ctx, s.region)
	if err != nil {
		if errors.Is(err, statutory.ErrConfiguration) {
			return statutory.Versions{}, err
		}
		// An unreachable table store is a configuration failure for the run;
		// defaults are never substituted.
		return statutory.Versions{}, fmt.Errorf("%w: %w: %v", statutory.ErrConfiguration, statutory.ErrSourceUnavailable, err)
	}
	if err := versions.Validate(); err != nil {
		return statutory.Versions{}, err
	}

	s.cached = &versions
	s.loadedAt = s.now()
	return versions, nil
}

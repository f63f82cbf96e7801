// Package memory holds in-process repositories. They back the service tests
// and the single-node development mode; state is lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/google/uuid"
)

type resultKey struct {
	runID      string
	employeeID string
}

// Store is the shared state behind every memory repository.
type Store struct {
	// txMu serializes transactions with each other and with writes made
	// outside one, so a rollback only ever undoes its own writes.
	txMu sync.Mutex

	mu        sync.Mutex
	runs      map[string]payroll.Run
	items     []payroll.LineItem
	results   map[resultKey]payroll.Result
	employees map[string]employee.Employee
	tenants   map[string]auth.Tenant
}

func NewStore() *Store {
	return &Store{
		runs:      make(map[string]payroll.Run),
		results:   make(map[resultKey]payroll.Result),
		employees: make(map[string]employee.Employee),
		tenants:   make(map[string]auth.Tenant),
	}
}

type snapshot struct {
	runs      map[string]payroll.Run
	items     []payroll.LineItem
	results   map[resultKey]payroll.Result
	employees map[string]employee.Employee
	tenants   map[string]auth.Tenant
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		runs:      cloneMap(s.runs),
		items:     append([]payroll.LineItem(nil), s.items...),
		results:   cloneMap(s.results),
		employees: cloneMap(s.employees),
		tenants:   cloneMap(s.tenants),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = snap.runs
	s.items = snap.items
	s.results = snap.results
	s.employees = snap.employees
	s.tenants = snap.tenants
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type txKey struct{ store *Store }

func (s *Store) inTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{store: s}).(bool)
	return ok
}

// lockWrite takes the locks a write needs. Inside a transaction the
// transaction already holds txMu.
func (s *Store) lockWrite(ctx context.Context) func() {
	if s.inTransaction(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Transactor rolls the whole store back when fn fails. Transactions run one
// at a time; nested calls join the outer transaction.
type Transactor struct {
	store *Store
}

func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.store.inTransaction(ctx) {
		return fn(ctx)
	}

	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{store: t.store}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ridedispatch/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Store)(nil)
)

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db *sql.DB // nil when bound to a transaction
	q  Querier
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Rides returns the ride repository bound to this store.
func (s *Store) Rides() repository.RideRepository {
	return &RideRepository{q: s.q}
}

// Drivers returns the driver repository bound to this store.
func (s *Store) Drivers() repository.DriverRepository {
	return &DriverRepository{q: s.q}
}

// Customers returns the customer repository bound to this store.
func (s *Store) Customers() repository.CustomerRepository {
	return &CustomerRepository{q: s.q}
}

// WithTx runs fn in a transaction. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// uniqueViolation maps a unique constraint failure to repository.ErrAlreadyExists.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, pqErr.Constraint)
	}
	return err
}

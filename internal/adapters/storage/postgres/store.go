package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"academy-platform/internal/core/domain"
	"academy-platform/internal/core/ports"
)

//go:embed schema.sql
var schema string

var errStaleRow = fmt.Errorf("%w: row changed by a concurrent commit", domain.ErrConflict)

// Store is the PostgreSQL implementation of ports.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the connection pool and checks that the database answers.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the tables and indexes when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Begin() ports.UnitOfWork {
	return &unitOfWork{pool: s.pool}
}

type op func(ctx context.Context, tx pgx.Tx) error

type unitOfWork struct {
	pool *pgxpool.Pool
	ops  []op
}

func (u *unitOfWork) Courses() ports.CourseRepository             { return courseRepo{u} }
func (u *unitOfWork) Progress() ports.ProgressRepository          { return progressRepo{u} }
func (u *unitOfWork) Registrations() ports.RegistrationRepository { return registrationRepo{u} }
func (u *unitOfWork) Payments() ports.PaymentRepository           { return paymentRepo{u} }

func (u *unitOfWork) exec(sql string, args ...any) {
	u.ops = append(u.ops, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
}

// execOne stages a statement that must touch exactly one row. Zero rows means a
// concurrent writer changed the row first.
func (u *unitOfWork) execOne(sql string, args ...any) {
	u.ops = append(u.ops, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errStaleRow
		}
		return nil
	})
}

// Commit runs every staged statement in one transaction. Cancellation is only
// honoured before the transaction starts.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(u.ops) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	err := pgx.BeginFunc(ctx, u.pool, func(tx pgx.Tx) error {
		for _, o := range u.ops {
			if err := o(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapError(err)
	}
	u.ops = nil
	return nil
}

// mapError converts driver errors into the domain's persistence errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConflict) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-platform/internal/core/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "registrations_student_id_course_id_key"}, domain.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, domain.ErrConflict},
		{"other pg error", &pgconn.PgError{Code: "57P01"}, domain.ErrStorageUnavailable},
		{"network", errors.New("connection refused"), domain.ErrStorageUnavailable},
		{"stale row", errStaleRow, domain.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}
}

func TestUnitOfWork_CommitChecksCancellationFirst(t *testing.T) {
	uow := &unitOfWork{}
	uow.exec(`SELECT 1`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, uow.Commit(ctx), context.Canceled)
	assert.Len(t, uow.ops, 1)
}

func TestProgressRepo_UpdateIsGuardedByPreviousStatus(t *testing.T) {
	uow := &unitOfWork{}
	uow.Progress().Update(domain.ProgressLesson{ID: uuid.New(), Status: domain.Completed}, domain.InProgress)

	require.Len(t, uow.ops, 1)
	assert.Equal(t, domain.ErrConflict, errors.Unwrap(errStaleRow))
}

func TestUnitOfWork_EmptyCommitIsNoop(t *testing.T) {
	assert.NoError(t, (&unitOfWork{}).Commit(context.Background()))
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS payments")
	assert.Contains(t, schema, "lessons_active_name_uq")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ride-settlement/internal/core/domain"
	"ride-settlement/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperror.Kind
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperror.KindConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, apperror.KindTransient},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, apperror.KindTransient},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, apperror.KindTransient},
		{"connection exception", &pgconn.PgError{Code: "08006"}, apperror.KindTransient},
		{"numeric overflow", &pgconn.PgError{Code: "22003"}, apperror.KindValidation},
		{"check violation", &pgconn.PgError{Code: "23514"}, apperror.KindInternal},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), apperror.KindTransient},
		{"no transaction", fmt.Errorf("apply delta: %w", domain.ErrNoTransaction), apperror.KindInvariantViolation},
		{"stale status", domain.ErrStaleStatus, apperror.KindInvalidState},
		{"plain error", errors.New("boom"), apperror.KindInternal},
		{"app error passes through", apperror.ErrNotFound("wallet"), apperror.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storageError("op", tt.err)
			assert.Equal(t, tt.kind, apperror.KindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, storageError("op", nil))
}

func TestBeginError_IsRetryable(t *testing.T) {
	err := beginError(errors.New("dial tcp: connection refused"))

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable())
}

func TestFinish_PassesErrorThrough(t *testing.T) {
	log := newTestLogger()
	assert.NoError(t, finish(&log, "op", nil))

	err := apperror.ErrConflict("dup")
	assert.Same(t, err, finish(&log, "op", err))
}

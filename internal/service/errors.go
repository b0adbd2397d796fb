package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/observability"
	"ride-settlement/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLSTATE codes after which the whole call can be retried.
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"53300": true, // too_many_connections
}

// storageError translates a repository error into the settlement taxonomy.
// AppErrors pass through untouched.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	wrapped := fmt.Errorf("%s: %w", op, err)
	switch {
	case errors.Is(err, domain.ErrNoTransaction):
		return apperror.Wrap(apperror.KindInvariantViolation, "SYS_003",
			op+" attempted outside a transaction", http.StatusInternalServerError, err)
	case errors.Is(err, domain.ErrStaleStatus):
		return apperror.Wrap(apperror.KindInvalidState, "SET_422",
			op+": record changed state concurrently", http.StatusUnprocessableEntity, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.ErrTransient(wrapped)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return apperror.Wrap(apperror.KindConflict, "SET_409",
				op+": a record with the same key already exists", http.StatusConflict, wrapped)
		case pgErr.Code == "22003":
			return apperror.Wrap(apperror.KindValidation, "SET_400",
				op+": amount out of range", http.StatusBadRequest, wrapped)
		case transientSQLStates[pgErr.Code], strings.HasPrefix(pgErr.Code, "08"):
			return apperror.ErrTransient(wrapped)
		}
		return apperror.InternalError(wrapped)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return apperror.ErrTransient(wrapped)
	}
	return apperror.InternalError(wrapped)
}

// beginError classifies a failure to open a transaction. Nothing has been
// written yet, so it is always safe to retry.
func beginError(err error) error {
	return apperror.ErrTransient(fmt.Errorf("begin transaction: %w", err))
}

// finish records the outcome of a public operation and logs server-side
// failures with the operation name.
func finish(log *zerolog.Logger, op string, err error) error {
	if err == nil {
		observability.IncrementSettlement(op, "ok")
		return nil
	}
	kind := apperror.KindOf(err)
	observability.IncrementSettlement(op, strings.ToLower(string(kind)))

	switch kind {
	case apperror.KindInternal, apperror.KindInvariantViolation, apperror.KindTransient:
		log.Error().Err(err).Str("operation", op).Str("kind", string(kind)).Msg("settlement operation failed")
	default:
		log.Debug().Err(err).Str("operation", op).Msg("settlement operation rejected")
	}
	return err
}

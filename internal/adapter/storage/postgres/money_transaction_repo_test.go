package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moneyTransactionColumns() []string {
	return []string{"id", "driver_id", "type", "status", "amount", "currency", "metadata", "created_at", "processed_at"}
}

func TestMoneyTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMoneyTransactionRepo(mock)
	mt := &domain.MoneyTransaction{
		ID:        uuid.New(),
		DriverID:  uuid.New(),
		Type:      domain.TransactionTypeWalletTopup,
		Status:    domain.TransactionStatusPending,
		Amount:    decimal.RequireFromString("50"),
		Currency:  "CUP",
		Metadata:  map[string]string{"collectionPointId": "cp-1"},
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO money_transactions").
		WithArgs(mt.ID, mt.DriverID, "WALLET_TOPUP", "PENDING", "50.00", "CUP",
			[]byte(`{"collectionPointId":"cp-1"}`), mt.CreatedAt, mt.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, mt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyTransactionRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMoneyTransactionRepo(mock)
	id, driverID := uuid.New(), uuid.New()
	processedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM money_transactions WHERE id .+ FOR UPDATE").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(moneyTransactionColumns()).AddRow(
			id, driverID, "COMMISSION", "PROCESSED", "2.00", "CUP",
			[]byte(`{"orderId":"o-1"}`), time.Now().UTC(), &processedAt,
		))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	mt, err := repo.GetByIDForUpdate(context.Background(), tx, id)
	require.NoError(t, err)
	require.NotNil(t, mt)
	assert.Equal(t, domain.TransactionTypeCommission, mt.Type)
	assert.Equal(t, domain.TransactionStatusProcessed, mt.Status)
	assert.Equal(t, "o-1", mt.Metadata["orderId"])
	assert.True(t, mt.Amount.Equal(decimal.RequireFromString("2")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMoneyTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM money_transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(moneyTransactionColumns()))

	mt, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, mt)
}

func TestMoneyTransactionRepo_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"transitioned", 1, nil},
		{"stale status", 0, domain.ErrStaleStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewMoneyTransactionRepo(mock)
			id := uuid.New()

			mock.ExpectBegin()
			mock.ExpectExec("UPDATE money_transactions SET status").
				WithArgs("PROCESSED", id, "PENDING").
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			err = repo.UpdateStatus(context.Background(), tx, id,
				domain.TransactionStatusPending, domain.TransactionStatusProcessed)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMoneyTransactionRepo_UpdateAmount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMoneyTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE money_transactions SET amount").
		WithArgs("3.10", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateAmount(context.Background(), tx, id, decimal.RequireFromString("3.1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyTransactionRepo_MergeMetadata(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMoneyTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE money_transactions SET metadata = COALESCE\(metadata, '\{\}'::jsonb\) \|\| \$1::jsonb`).
		WithArgs([]byte(`{"confirmedByUserId":"u-1"}`), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MergeMetadata(context.Background(), tx, id, map[string]string{domain.MetadataConfirmedBy: "u-1"})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoneyTransactionRepo_MergeMetadata_RequiresTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = NewMoneyTransactionRepo(mock).MergeMetadata(context.Background(), nil, uuid.New(), map[string]string{"k": "v"})
	assert.True(t, errors.Is(err, domain.ErrNoTransaction))
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	actor := uuid.New()
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionTopupConfirm, entry.Action)
			assert.Equal(t, &actor, entry.ActorID)
			close(done)
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       domain.AuditActionTopupConfirm,
		ResourceType: "cash_collection_record",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

// lineWriter hands every log line to the test.
type lineWriter chan string

func (w lineWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

func waitForLine(t *testing.T, lines lineWriter, substr string) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line := <-lines:
			if strings.Contains(line, substr) {
				return line
			}
		case <-deadline:
			t.Fatalf("no log line containing %q", substr)
		}
	}
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lines := make(lineWriter, 4)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.New(lines))

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionOrderDelete,
		ResourceType: "order",
		CreatedAt:    time.Now(),
	})

	line := waitForLine(t, lines, "failed to persist audit log")
	assert.Contains(t, line, "db down")
	assert.Contains(t, line, string(domain.AuditActionOrderDelete))
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	lines := make(lineWriter, 4)
	svc := NewAuditService(nil, zerolog.New(lines))
	actor := uuid.New()

	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      &actor,
		Action:       domain.AuditActionWalletOpen,
		ResourceType: "wallet",
		ResourceID:   "w-1",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	line := waitForLine(t, lines, `"message":"audit"`)
	assert.Contains(t, line, `"resource_id":"w-1"`)
	assert.Contains(t, line, actor.String())
}

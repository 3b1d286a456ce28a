package worker

import (
	"context"
	"errors"
	"testing"

	"apartur/internal/datasync/service"
	"apartur/pkg/kafka"
	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSyncManager struct {
	result      *model.AutoSyncResult
	forced      []bool
	correlation string
}

func (m *mockSyncManager) NeedsSync(context.Context) (bool, error) { return false, nil }

func (m *mockSyncManager) ExecuteAutoSync(ctx context.Context) *model.AutoSyncResult {
	return m.ExecuteSync(ctx, false)
}

func (m *mockSyncManager) ExecuteSync(ctx context.Context, force bool) *model.AutoSyncResult {
	m.forced = append(m.forced, force)
	m.correlation = kafka.CorrelationIDFromContext(ctx)
	return m.result
}

func (m *mockSyncManager) GetStatus(context.Context) (*model.SyncStatus, error) {
	return &model.SyncStatus{}, nil
}

func (m *mockSyncManager) History(context.Context, int) ([]model.SyncHistoryEntry, error) {
	return nil, nil
}

func syncRequest(t *testing.T, req model.SyncRequest) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().
		WithKey("apartments").
		WithValue(req).
		WithEventType(service.EventSyncRequested).
		BuildE()
	require.NoError(t, err)
	return msg
}

func TestHandle_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		result   *model.AutoSyncResult
		wantErr  bool
		wantType kafka.ErrorType
	}{
		{"success", &model.AutoSyncResult{Success: true}, false, kafka.ErrorTypeUnknown},
		{"skipped", &model.AutoSyncResult{Skipped: true, Reason: service.ReasonLocked}, true, kafka.ErrorTypeBusiness},
		{"failed", &model.AutoSyncResult{Error: "sync failed: upstream"}, true, kafka.ErrorTypeBusiness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &mockSyncManager{result: tt.result}
			err := NewWorker(manager, logger.Nop()).Handle(context.Background(), syncRequest(t, model.SyncRequest{Force: true}))

			assert.Equal(t, []bool{true}, manager.forced)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, kafka.ClassifyError(err))
			assert.False(t, kafka.ShouldRetry(err, 0, 3))
		})
	}
}

func TestHandle_InvalidPayloadIsPermanent(t *testing.T) {
	msg := kafka.NewMessage().
		WithKey("apartments").
		WithRawValue([]byte("{broken")).
		WithEventType(service.EventSyncRequested).
		Build()

	manager := &mockSyncManager{}
	err := NewWorker(manager, logger.Nop()).Handle(context.Background(), msg)

	require.Error(t, err)
	var kafkaErr *kafka.KafkaError
	require.True(t, errors.As(err, &kafkaErr))
	assert.True(t, kafkaErr.IsPermanent())
	assert.ErrorIs(t, err, kafka.ErrInvalidMessage)
	assert.Empty(t, manager.forced)
}

func TestHandle_PropagatesCorrelationID(t *testing.T) {
	msg, err := kafka.NewMessage().
		WithKey("apartments").
		WithValue(model.SyncRequest{RequestedBy: "admin"}).
		WithEventType(service.EventSyncRequested).
		WithCorrelationID("req-7f3a").
		BuildE()
	require.NoError(t, err)

	manager := &mockSyncManager{result: &model.AutoSyncResult{Success: true}}
	require.NoError(t, NewWorker(manager, logger.Nop()).Handle(context.Background(), msg))

	assert.Equal(t, "req-7f3a", manager.correlation)
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	msg := kafka.NewMessage().
		WithKey("apartments").
		WithValue(map[string]any{"forced": false}).
		WithEventType(service.EventSyncCompleted).
		Build()

	manager := &mockSyncManager{}
	err := NewWorker(manager, logger.Nop()).Handle(context.Background(), msg)

	assert.NoError(t, err)
	assert.Empty(t, manager.forced)
}

package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/types"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.WebhookReceipt{}))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	return NewService(db, zap.NewNop().Sugar()), db
}

func TestBeginProcessing_FirstDelivery(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	receipt, shouldProcess, err := svc.BeginProcessing(ctx, types.WebhookProviderCircle, "notif-1", "transactions.confirmed", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.True(t, shouldProcess)
	require.False(t, receipt.Processed)
	require.Equal(t, 0, receipt.RetryCount)
}

func TestBeginProcessing_RedeliveryBeforeCompletion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.BeginProcessing(ctx, types.WebhookProviderCircle, "notif-1", "transactions.confirmed", []byte(`{"v":1}`))
	require.NoError(t, err)

	receipt, shouldProcess, err := svc.BeginProcessing(ctx, types.WebhookProviderCircle, "notif-1", "transactions.confirmed", []byte(`{"v":2}`))
	require.NoError(t, err)
	require.True(t, shouldProcess, "unprocessed notification stays eligible for retry")
	require.Equal(t, 1, receipt.RetryCount)
	require.JSONEq(t, `{"v":2}`, string(receipt.RawPayload), "retried payload replaces the stored one")
}

func TestBeginProcessing_AfterCompletionIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.BeginProcessing(ctx, types.WebhookProviderCircle, "notif-1", "transactions.complete", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.CompleteProcessing(ctx, types.WebhookProviderCircle, "notif-1", nil))

	receipt, shouldProcess, err := svc.BeginProcessing(ctx, types.WebhookProviderCircle, "notif-1", "transactions.complete", []byte(`{}`))
	require.NoError(t, err)
	require.False(t, shouldProcess, "processed notification must not be re-applied")
	require.True(t, receipt.Processed)
	require.NotNil(t, receipt.ProcessedAt)
	require.Equal(t, 1, receipt.RetryCount, "redelivery still counted")
}

func TestCompleteProcessing_HandlerErrorKeepsRowRetryable(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.BeginProcessing(ctx, types.WebhookProviderAlchemy, "evt-9", "ADDRESS_ACTIVITY", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.CompleteProcessing(ctx, types.WebhookProviderAlchemy, "evt-9", fmt.Errorf("wallet lookup failed")))

	var receipt models.WebhookReceipt
	require.NoError(t, db.Where("provider = ? AND notification_id = ?", types.WebhookProviderAlchemy, "evt-9").First(&receipt).Error)
	require.False(t, receipt.Processed)
	require.NotNil(t, receipt.LastError)
	require.Contains(t, *receipt.LastError, "wallet lookup failed")

	// next retry is allowed to process again
	_, shouldProcess, err := svc.BeginProcessing(ctx, types.WebhookProviderAlchemy, "evt-9", "ADDRESS_ACTIVITY", []byte(`{}`))
	require.NoError(t, err)
	require.True(t, shouldProcess)
}

func TestLedger_ProvidersAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.BeginProcessing(ctx, types.WebhookProviderCircle, "same-id", "transactions.sent", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.CompleteProcessing(ctx, types.WebhookProviderCircle, "same-id", nil))

	_, shouldProcess, err := svc.BeginProcessing(ctx, types.WebhookProviderAlchemy, "same-id", "ADDRESS_ACTIVITY", []byte(`{}`))
	require.NoError(t, err)
	require.True(t, shouldProcess, "notification IDs are scoped per provider")
}

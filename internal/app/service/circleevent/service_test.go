package circleevent

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/app/service/cctp"
	"github.com/quidpay/reconciler/internal/app/service/ledger"
	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/tool"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.WebhookReceipt{},
		&models.Transaction{},
		&models.CCTPTransfer{},
	))
	return db
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	log := zap.NewNop().Sugar()
	if cfg == nil {
		cfg = &config.Config{}
	}
	return NewService(cfg, db, log, ledger.NewService(db, log), cctp.NewService(db, log)), db
}

func notification(notifID, notifType string, payload string) []byte {
	return []byte(fmt.Sprintf(`{"notificationId":%q,"notificationType":%q,"notification":{"transaction":%s},"version":2}`,
		notifID, notifType, payload))
}

func seedTransaction(t *testing.T, db *gorm.DB, providerTxID string, state models.TransactionState) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		ID:                    tool.GenerateUUIDV7(),
		ProviderTransactionID: providerTxID,
		Reference:             tool.GenerateUUIDV7(),
		WalletID:              "wallet-1",
		State:                 state,
		Blockchain:            "BASE",
		Amount:                "25",
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func TestParseNotificationKind(t *testing.T) {
	require.Equal(t, KindInbound, ParseNotificationKind("transactions.inbound"))
	require.Equal(t, KindComplete, ParseNotificationKind("transactions.complete"))
	require.Equal(t, KindUnknown, ParseNotificationKind("wallets.created"))
	require.Equal(t, KindUnknown, ParseNotificationKind(""))
}

func TestHandleNotification_AppliesStateForward(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	seedTransaction(t, db, "ptx-1", models.TransactionStateQueued)

	raw := notification("n-1", "transactions.confirmed", `{"id":"ptx-1","state":"CONFIRMED","txHash":"0xabc"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var txn models.Transaction
	require.NoError(t, db.Where("provider_transaction_id = ?", "ptx-1").First(&txn).Error)
	require.Equal(t, models.TransactionStateConfirmed, txn.State)
	require.NotNil(t, txn.TransactionHash)
	require.Equal(t, "0xabc", *txn.TransactionHash)
	require.NotNil(t, txn.ConfirmedAt)
}

func TestHandleNotification_TerminalStateIsNeverOverwritten(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	seedTransaction(t, db, "ptx-1", models.TransactionStateComplete)

	raw := notification("n-2", "transactions.sent", `{"id":"ptx-1","state":"SENT"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var txn models.Transaction
	require.NoError(t, db.Where("provider_transaction_id = ?", "ptx-1").First(&txn).Error)
	require.Equal(t, models.TransactionStateComplete, txn.State)
}

func TestHandleNotification_LowerRankedEventDoesNotRegress(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	seedTransaction(t, db, "ptx-1", models.TransactionStateConfirmed)

	raw := notification("n-3", "transactions.queued", `{"id":"ptx-1","state":"QUEUED"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var txn models.Transaction
	require.NoError(t, db.Where("provider_transaction_id = ?", "ptx-1").First(&txn).Error)
	require.Equal(t, models.TransactionStateConfirmed, txn.State)
}

func TestHandleNotification_DuplicateDeliveryIsNoOp(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()
	seedTransaction(t, db, "ptx-1", models.TransactionStateQueued)

	raw := notification("n-4", "transactions.sent", `{"id":"ptx-1","state":"SENT","networkFee":"0.01"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	// Mutate the row out-of-band; a redelivered notification must not touch it.
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("provider_transaction_id = ?", "ptx-1").
		Update("network_fee", lo.ToPtr("0.02")).Error)

	require.NoError(t, svc.HandleNotification(ctx, raw))

	var txn models.Transaction
	require.NoError(t, db.Where("provider_transaction_id = ?", "ptx-1").First(&txn).Error)
	require.Equal(t, "0.02", *txn.NetworkFee, "second delivery of the same notification must not re-apply")

	var receipt models.WebhookReceipt
	require.NoError(t, db.Where("notification_id = ?", "n-4").First(&receipt).Error)
	require.True(t, receipt.Processed)
	require.Equal(t, 1, receipt.RetryCount)
}

func TestHandleNotification_InboundCreatesTrackedTransaction(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	raw := notification("n-5", "transactions.inbound",
		`{"id":"ptx-in","walletId":"wallet-7","blockchain":"BASE","destinationAddress":"0xDest","amounts":["12.5"],"txHash":"0xdead"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var txn models.Transaction
	require.NoError(t, db.Where("provider_transaction_id = ?", "ptx-in").First(&txn).Error)
	require.Equal(t, models.TransactionStateConfirmed, txn.State, "inbound state defaults to CONFIRMED")
	require.Equal(t, "wallet-7", txn.WalletID)
	require.Equal(t, "12.5", txn.Amount)
	require.NotEmpty(t, txn.Reference, "inbound transactions get a fresh internal reference")
}

func TestHandleNotification_InboundForUntrackedWalletIsDropped(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	raw := notification("n-6", "transactions.inbound", `{"id":"ptx-noise","destinationAddress":"0xSomeoneElse"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestHandleNotification_UnknownTypeIsDroppedNotError(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	raw := notification("n-7", "wallets.created", `{"id":"ptx-1"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var receipt models.WebhookReceipt
	require.NoError(t, db.Where("notification_id = ?", "n-7").First(&receipt).Error)
	require.True(t, receipt.Processed, "unknown types are acknowledged, not retried forever")
}

func TestHandleNotification_UnknownTransactionNonInboundIsIgnored(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	raw := notification("n-8", "transactions.complete", `{"id":"ptx-missing","state":"COMPLETE"}`)
	require.NoError(t, svc.HandleNotification(ctx, raw))

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	require.Zero(t, count)
}

func circleSign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"notificationId":"n-1"}`)

	require.NoError(t, VerifySignature("", "", "", body), "no configured secret skips verification")

	sig := circleSign("topsecret", "1700000000", body)
	require.NoError(t, VerifySignature("topsecret", sig, "1700000000", body))

	require.ErrorIs(t, VerifySignature("topsecret", sig, "1700000001", body), ErrInvalidSignature)
	require.ErrorIs(t, VerifySignature("topsecret", "deadbeef", "1700000000", body), ErrInvalidSignature)
	require.ErrorIs(t, VerifySignature("topsecret", "", "", body), ErrInvalidSignature)
}

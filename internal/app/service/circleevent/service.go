package circleevent

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/app/service/cctp"
	"github.com/quidpay/reconciler/internal/app/service/ledger"
	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

// Service routes verified Circle notifications through the dedup ledger
// into the transaction state machine and the CCTP correlator.
type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	log    *zap.SugaredLogger
	ledger *ledger.Service
	cctp   *cctp.Service
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, led *ledger.Service, correlator *cctp.Service) *Service {
	return &Service{cfg: cfg, db: db, log: log, ledger: led, cctp: correlator}
}

// VerifySignature applies the Circle HMAC scheme with the configured secret.
func (s *Service) VerifySignature(signature, timestamp string, body []byte) error {
	return VerifySignature(s.cfg.Circle.WebhookSecret, signature, timestamp, body)
}

// HandleNotification is the full ingestion path for one verified delivery:
// ledger begin, routed state transition, ledger complete. The handler error
// is recorded on the receipt and returned; the HTTP layer still acks 200 so
// the provider's retry policy, not HTTP failure, drives redelivery.
func (s *Service) HandleNotification(ctx context.Context, raw []byte) error {
	n, err := ParseNotification(raw)
	if err != nil {
		return err
	}

	_, shouldProcess, err := s.ledger.BeginProcessing(ctx, types.WebhookProviderCircle, n.NotificationID, n.NotificationType, raw)
	if err != nil {
		return err
	}
	if !shouldProcess {
		return nil
	}

	handlerErr := s.route(ctx, n)
	if err := s.ledger.CompleteProcessing(ctx, types.WebhookProviderCircle, n.NotificationID, handlerErr); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("webhook_ledger_complete_failed",
			"notification_id", n.NotificationID, "error", err.Error())
	}
	return handlerErr
}

func (s *Service) route(ctx context.Context, n *Notification) error {
	kind := ParseNotificationKind(n.NotificationType)
	switch kind {
	case KindQueued, KindSent, KindConfirmed, KindComplete,
		KindFailed, KindDenied, KindCancelled, KindInbound, KindOutbound:
		return s.applyTransactionEvent(ctx, kind, n.Notification.Transaction)
	case KindUnknown:
		logctx.FromCtx(ctx, s.log).Infow("webhook_unknown_notification_type",
			"notification_type", n.NotificationType, "notification_id", n.NotificationID)
		return nil
	}
	return nil
}

// applyTransactionEvent applies one lifecycle event onto the tracked
// transaction. Known transactions get a non-destructive merge with the
// monotonic-state guarantee; unknown transactions are created only for
// inbound activity landing on a wallet the platform tracks.
func (s *Service) applyTransactionEvent(ctx context.Context, kind NotificationKind, payload *TransactionPayload) error {
	log := logctx.FromCtx(ctx, s.log)
	if payload == nil || payload.ID == "" {
		log.Warnw("webhook_transaction_payload_missing", "kind", kind.String())
		return nil
	}

	var txn models.Transaction
	err := s.db.WithContext(ctx).Where("provider_transaction_id = ?", payload.ID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if kind != KindInbound {
			log.Debugw("webhook_transaction_unknown", "provider_transaction_id", payload.ID, "kind", kind.String())
			return nil
		}
		return s.createInboundTransaction(ctx, payload)
	}
	if err != nil {
		return err
	}

	newState := s.eventState(kind, payload)
	updates := map[string]interface{}{}

	// Terminal states are immutable and lower-ranked states never regress
	// the record; field merges below still apply to non-terminal rows.
	if !txn.State.IsTerminal() && newState != "" && newState.Rank() > txn.State.Rank() {
		updates["state"] = newState
	}
	if txn.State.IsTerminal() {
		log.Debugw("webhook_transaction_terminal",
			"provider_transaction_id", payload.ID, "state", txn.State, "kind", kind.String())
		return s.cctp.ReconcileTransaction(ctx, &txn)
	}

	// Non-destructive merge: only fields present in this event.
	if payload.TxHash != "" && (txn.TransactionHash == nil || *txn.TransactionHash == "") {
		updates["transaction_hash"] = payload.TxHash
	}
	if payload.NetworkFee != "" {
		updates["network_fee"] = payload.NetworkFee
	}
	if payload.ErrorReason != "" {
		updates["error_reason"] = payload.ErrorReason
	}

	// Milestone timestamps are stamped the first time their event is seen.
	now := time.Now()
	switch kind {
	case KindConfirmed:
		if txn.ConfirmedAt == nil {
			updates["confirmed_at"] = now
		}
	case KindComplete:
		if txn.CompletedAt == nil {
			updates["completed_at"] = now
		}
	case KindCancelled:
		if txn.CancelledAt == nil {
			updates["cancelled_at"] = now
		}
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", txn.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Where("id = ?", txn.ID).First(&txn).Error; err != nil {
			return err
		}
	}

	log.Infow("transaction_event_applied",
		"provider_transaction_id", payload.ID, "kind", kind.String(), "state", txn.State)
	return s.cctp.ReconcileTransaction(ctx, &txn)
}

// eventState resolves the state an event asserts. Inbound/outbound events
// carry the state inside the payload.
func (s *Service) eventState(kind NotificationKind, payload *TransactionPayload) models.TransactionState {
	if state, ok := kindStates[kind]; ok {
		return state
	}
	return payloadState(payload.State)
}

// createInboundTransaction lazily tracks an inbound transfer first observed
// via webhook — but only when the destination wallet belongs to the
// platform. Anything else is external noise and is dropped.
func (s *Service) createInboundTransaction(ctx context.Context, payload *TransactionPayload) error {
	log := logctx.FromCtx(ctx, s.log)

	walletID := payload.WalletID
	if walletID == "" {
		log.Debugw("webhook_inbound_untracked_wallet", "destination", payload.DestinationAddress)
		return nil
	}

	state := payloadState(payload.State)
	if state == "" {
		state = models.TransactionStateConfirmed
	}
	txn := &models.Transaction{
		ID:                    tool.GenerateUUIDV7(),
		ProviderTransactionID: payload.ID,
		Reference:             tool.GenerateUUIDV7(),
		WalletID:              walletID,
		State:                 state,
		Blockchain:            types.Blockchain(payload.Blockchain),
		TokenID:               payload.TokenID,
		SourceAddress:         payload.SourceAddress,
		DestinationAddress:    payload.DestinationAddress,
		Amount:                payload.Amount(),
	}
	if payload.TxHash != "" {
		txn.TransactionHash = lo.ToPtr(payload.TxHash)
	}
	if state == models.TransactionStateConfirmed || state == models.TransactionStateComplete {
		txn.ConfirmedAt = lo.ToPtr(time.Now())
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return err
	}
	log.Infow("inbound_transaction_created",
		"provider_transaction_id", payload.ID, "wallet_id", walletID, "state", state)
	return s.cctp.ReconcileTransaction(ctx, txn)
}

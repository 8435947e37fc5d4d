package ledger

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

// Service is the webhook dedup ledger. Providers redeliver notifications
// freely; the ledger guarantees at most one successful side-effecting
// application per (provider, notification ID). The upsert in
// BeginProcessing is a single statement backed by a unique constraint, so
// concurrent redeliveries cannot both create a row.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// BeginProcessing records an inbound notification and reports whether the
// caller should run the side-effecting handler. First arrival creates the
// receipt; redeliveries bump the retry counter and refresh the payload
// (providers may enrich retried payloads) without touching the processed
// flag. Returns shouldProcess=false once a prior delivery completed.
func (s *Service) BeginProcessing(ctx context.Context, provider types.WebhookProvider, notificationID, notificationType string, payload []byte) (*models.WebhookReceipt, bool, error) {
	row := &models.WebhookReceipt{
		ID:               tool.GenerateUUIDV7(),
		Provider:         provider,
		NotificationID:   notificationID,
		NotificationType: notificationType,
		RawPayload:       datatypes.JSON(payload),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "notification_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"retry_count": gorm.Expr("webhook_receipt.retry_count + 1"),
			"raw_payload": datatypes.JSON(payload),
			"updated_at":  time.Now(),
		}),
	}).Create(row).Error
	if err != nil {
		return nil, false, err
	}

	var receipt models.WebhookReceipt
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND notification_id = ?", provider, notificationID).
		First(&receipt).Error; err != nil {
		return nil, false, err
	}
	if receipt.Processed {
		logctx.FromCtx(ctx, s.log).Infow("webhook_already_processed",
			"provider", provider, "notification_id", notificationID, "retry_count", receipt.RetryCount)
		return &receipt, false, nil
	}
	return &receipt, true, nil
}

// CompleteProcessing records the handler outcome. A nil handlerErr marks the
// receipt processed; the processed=false guard keeps a late duplicate from
// re-stamping it. A non-nil error is recorded so the row stays eligible for
// the provider's next retry.
func (s *Service) CompleteProcessing(ctx context.Context, provider types.WebhookProvider, notificationID string, handlerErr error) error {
	q := s.db.WithContext(ctx).Model(&models.WebhookReceipt{}).
		Where("provider = ? AND notification_id = ?", provider, notificationID)
	if handlerErr == nil {
		return q.Where("processed = ?", false).
			Updates(map[string]interface{}{
				"processed":    true,
				"processed_at": time.Now(),
				"last_error":   nil,
			}).Error
	}
	return q.Update("last_error", lo.ToPtr(handlerErr.Error())).Error
}

package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/quidpay/reconciler/pkg/types"
)

// WebhookReceipt is the dedup ledger row for one inbound provider
// notification. Rows are never deleted; redeliveries of the same
// notification ID land on the same row and bump RetryCount.
type WebhookReceipt struct {
	ID               string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider         types.WebhookProvider `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:unique_provider_notification,priority:1" json:"provider"`
	NotificationID   string                `gorm:"column:notification_id;type:varchar(128);not null;uniqueIndex:unique_provider_notification,priority:2" json:"notification_id"`
	NotificationType string                `gorm:"column:notification_type;type:varchar(128)" json:"notification_type"`
	RawPayload       datatypes.JSON        `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	Processed        bool                  `gorm:"column:processed;not null;default:false" json:"processed"`
	ProcessedAt      *time.Time            `gorm:"column:processed_at;default:null" json:"processed_at"`
	RetryCount       int                   `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	LastError        *string               `gorm:"column:last_error;type:text;default:null" json:"last_error"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (WebhookReceipt) TableName() string { return "webhook_receipt" }

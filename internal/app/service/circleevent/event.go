package circleevent

import (
	"encoding/json"
	"fmt"

	"github.com/quidpay/reconciler/internal/models"
)

// NotificationKind is the closed set of Circle notification types this
// service understands. Anything else parses to KindUnknown and is dropped
// by the router, which keeps the service forward-compatible with new types.
type NotificationKind int

const (
	KindUnknown NotificationKind = iota
	KindQueued
	KindSent
	KindConfirmed
	KindComplete
	KindFailed
	KindDenied
	KindCancelled
	KindInbound
	KindOutbound
)

var kindByType = map[string]NotificationKind{
	"transactions.queued":    KindQueued,
	"transactions.sent":      KindSent,
	"transactions.confirmed": KindConfirmed,
	"transactions.complete":  KindComplete,
	"transactions.failed":    KindFailed,
	"transactions.denied":    KindDenied,
	"transactions.cancelled": KindCancelled,
	"transactions.inbound":   KindInbound,
	"transactions.outbound":  KindOutbound,
}

// ParseNotificationKind maps the wire notification type onto the closed
// enum. Unrecognized strings yield KindUnknown, never an error.
func ParseNotificationKind(notificationType string) NotificationKind {
	return kindByType[notificationType]
}

func (k NotificationKind) String() string {
	for s, kind := range kindByType {
		if kind == k {
			return s
		}
	}
	return "unknown"
}

// kindStates maps lifecycle notification kinds onto the state they assert.
// Inbound and outbound carry the state inside the payload instead.
var kindStates = map[NotificationKind]models.TransactionState{
	KindQueued:    models.TransactionStateQueued,
	KindSent:      models.TransactionStateSent,
	KindConfirmed: models.TransactionStateConfirmed,
	KindComplete:  models.TransactionStateComplete,
	KindFailed:    models.TransactionStateFailed,
	KindDenied:    models.TransactionStateDenied,
	KindCancelled: models.TransactionStateCancelled,
}

// Notification is the Circle webhook envelope.
type Notification struct {
	SubscriptionID   string           `json:"subscriptionId"`
	NotificationID   string           `json:"notificationId"`
	NotificationType string           `json:"notificationType"`
	Notification     NotificationBody `json:"notification"`
	Timestamp        string           `json:"timestamp"`
	Version          int              `json:"version"`
}

type NotificationBody struct {
	Transaction *TransactionPayload `json:"transaction"`
}

// TransactionPayload is the transaction object Circle embeds in
// transaction lifecycle notifications.
type TransactionPayload struct {
	ID                 string   `json:"id"`
	Blockchain         string   `json:"blockchain"`
	TokenID            string   `json:"tokenId"`
	WalletID           string   `json:"walletId"`
	SourceAddress      string   `json:"sourceAddress"`
	DestinationAddress string   `json:"destinationAddress"`
	Amounts            []string `json:"amounts"`
	State              string   `json:"state"`
	TxHash             string   `json:"txHash"`
	NetworkFee         string   `json:"networkFee"`
	RefID              string   `json:"refId"`
	ErrorReason        string   `json:"errorReason"`
	CreateDate         string   `json:"createDate"`
	UpdateDate         string   `json:"updateDate"`
}

// Amount returns the first reported amount; Circle sends a single-element
// array for token transfers.
func (p *TransactionPayload) Amount() string {
	if p == nil || len(p.Amounts) == 0 {
		return ""
	}
	return p.Amounts[0]
}

// ParseNotification decodes a raw webhook body into the envelope.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("circleevent: decode notification: %w", err)
	}
	if n.NotificationID == "" {
		return nil, fmt.Errorf("circleevent: notification missing notificationId")
	}
	return &n, nil
}

// payloadState maps a provider-reported state string to the local enum.
// Unknown strings return "" so callers can apply their own default.
func payloadState(state string) models.TransactionState {
	switch state {
	case "INITIATED", "QUEUED", "SENT", "CONFIRMED", "COMPLETE", "FAILED", "CANCELLED", "DENIED", "STUCK", "CLEARED":
		return models.TransactionState(state)
	}
	return ""
}

package models

import (
	"time"

	"github.com/quidpay/reconciler/pkg/types"
)

type TransactionState string

const (
	TransactionStateInitiated TransactionState = "INITIATED"
	TransactionStateQueued    TransactionState = "QUEUED"
	TransactionStateSent      TransactionState = "SENT"
	TransactionStateConfirmed TransactionState = "CONFIRMED"
	TransactionStateComplete  TransactionState = "COMPLETE"
	TransactionStateFailed    TransactionState = "FAILED"
	TransactionStateCancelled TransactionState = "CANCELLED"
	TransactionStateDenied    TransactionState = "DENIED"
	TransactionStateStuck     TransactionState = "STUCK"
	TransactionStateCleared   TransactionState = "CLEARED"
)

// transactionStateRank orders lifecycle states so that a later-arriving,
// lower-ranked webhook never regresses a transaction. Terminal states share
// the top rank and are immutable once reached.
var transactionStateRank = map[TransactionState]int{
	TransactionStateInitiated: 0,
	TransactionStateQueued:    1,
	TransactionStateCleared:   1,
	TransactionStateStuck:     1,
	TransactionStateSent:      2,
	TransactionStateConfirmed: 3,
	TransactionStateComplete:  4,
	TransactionStateFailed:    4,
	TransactionStateCancelled: 4,
	TransactionStateDenied:    4,
}

// IsTerminal reports whether the state ends the transaction lifecycle.
func (s TransactionState) IsTerminal() bool {
	switch s {
	case TransactionStateComplete, TransactionStateFailed, TransactionStateCancelled, TransactionStateDenied:
		return true
	}
	return false
}

// Rank returns the monotonic ordering of the state. Unknown states rank
// lowest so they can never displace anything.
func (s TransactionState) Rank() int {
	return transactionStateRank[s]
}

// Transaction is one blockchain-level transfer initiated or observed by the
// platform, keyed by the provider's transaction ID.
type Transaction struct {
	ID                    string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProviderTransactionID string           `gorm:"column:provider_transaction_id;type:varchar(128);not null;uniqueIndex" json:"provider_transaction_id"`
	Reference             string           `gorm:"column:reference;type:varchar(128);not null;index" json:"reference"`
	WalletID              string           `gorm:"column:wallet_id;type:varchar(128);not null" json:"wallet_id"`
	State                 TransactionState `gorm:"column:state;type:varchar(32);not null" json:"state"`
	Blockchain            types.Blockchain `gorm:"column:blockchain;type:varchar(32);not null" json:"blockchain"`
	TokenID               string           `gorm:"column:token_id;type:varchar(128)" json:"token_id"`
	SourceAddress         string           `gorm:"column:source_address;type:varchar(128)" json:"source_address"`
	DestinationAddress    string           `gorm:"column:destination_address;type:varchar(128)" json:"destination_address"`
	Amount                string           `gorm:"column:amount;type:varchar(78)" json:"amount"`
	TransactionHash       *string          `gorm:"column:transaction_hash;type:varchar(128);index" json:"transaction_hash"`
	NetworkFee            *string          `gorm:"column:network_fee;type:varchar(78)" json:"network_fee"`
	ErrorReason           *string          `gorm:"column:error_reason;type:text" json:"error_reason"`
	ConfirmedAt           *time.Time       `gorm:"column:confirmed_at;default:null" json:"confirmed_at"`
	CompletedAt           *time.Time       `gorm:"column:completed_at;default:null" json:"completed_at"`
	CancelledAt           *time.Time       `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (Transaction) TableName() string { return "chain_transaction" }

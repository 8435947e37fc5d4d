package models

import (
	"time"

	"github.com/quidpay/reconciler/pkg/types"
)

type CCTPTransferState string

const (
	CCTPTransferStateInitiated          CCTPTransferState = "INITIATED"
	CCTPTransferStateBurnPending        CCTPTransferState = "BURN_PENDING"
	CCTPTransferStateAttestationPending CCTPTransferState = "ATTESTATION_PENDING"
	CCTPTransferStateMintPending        CCTPTransferState = "MINT_PENDING"
	CCTPTransferStateComplete           CCTPTransferState = "COMPLETE"
	CCTPTransferStateFailed             CCTPTransferState = "FAILED"
)

// cctpTransferStateRank orders the transfer lifecycle so redundant or
// late-arriving leg events never move a transfer backwards. The terminal
// states share the top rank.
var cctpTransferStateRank = map[CCTPTransferState]int{
	CCTPTransferStateInitiated:          0,
	CCTPTransferStateBurnPending:        1,
	CCTPTransferStateAttestationPending: 2,
	CCTPTransferStateMintPending:        3,
	CCTPTransferStateComplete:           4,
	CCTPTransferStateFailed:             4,
}

// Rank returns the monotonic ordering of the state.
func (s CCTPTransferState) Rank() int {
	return cctpTransferStateRank[s]
}

type CCTPFailureStage string

const (
	CCTPFailureStageBurn CCTPFailureStage = "BURN_FAILED"
	CCTPFailureStageMint CCTPFailureStage = "MINT_FAILED"
)

// CCTPTransfer links a burn transaction on the source chain and a mint
// transaction on the destination chain into one logical USDC move. The two
// transaction links are immutable once set; the transfer only completes
// after both sides have confirmed, regardless of webhook arrival order.
type CCTPTransfer struct {
	ID                string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Reference         string            `gorm:"column:reference;type:varchar(128);not null;uniqueIndex" json:"reference"`
	WalletID          string            `gorm:"column:wallet_id;type:varchar(128);not null" json:"wallet_id"`
	Amount            string            `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	SourceChain       types.Blockchain  `gorm:"column:source_chain;type:varchar(32);not null" json:"source_chain"`
	DestinationChain  types.Blockchain  `gorm:"column:destination_chain;type:varchar(32);not null" json:"destination_chain"`
	BurnTransactionID *string           `gorm:"column:burn_transaction_id;type:varchar(128);uniqueIndex;default:null" json:"burn_transaction_id"`
	MintTransactionID *string           `gorm:"column:mint_transaction_id;type:varchar(128);uniqueIndex;default:null" json:"mint_transaction_id"`
	State             CCTPTransferState `gorm:"column:state;type:varchar(32);not null" json:"state"`
	FailureStage      *CCTPFailureStage `gorm:"column:failure_stage;type:varchar(32);default:null" json:"failure_stage"`
	BurnTxHash        *string           `gorm:"column:burn_tx_hash;type:varchar(128);default:null" json:"burn_tx_hash"`
	MintTxHash        *string           `gorm:"column:mint_tx_hash;type:varchar(128);default:null" json:"mint_tx_hash"`
	CompletedAt       *time.Time        `gorm:"column:completed_at;default:null" json:"completed_at"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (CCTPTransfer) TableName() string { return "cctp_transfer" }

// BurnConfirmed reports whether the burn side has been observed on-chain.
func (t *CCTPTransfer) BurnConfirmed() bool {
	return t.BurnTxHash != nil && *t.BurnTxHash != ""
}

// MintConfirmed reports whether the mint side has been observed on-chain.
func (t *CCTPTransfer) MintConfirmed() bool {
	return t.MintTxHash != nil && *t.MintTxHash != ""
}

package models

import (
	"time"

	"github.com/quidpay/reconciler/pkg/types"
)

type UserOperationStatus string

const (
	UserOperationStatusPending   UserOperationStatus = "PENDING"
	UserOperationStatusConfirmed UserOperationStatus = "CONFIRMED"
)

// PaymasterUserOperation is one ERC-4337 operation submitted through a
// bundler with gas sponsored in USDC. ActualGasUSDC is written exactly once,
// from the on-chain sponsorship event.
type PaymasterUserOperation struct {
	ID               string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserOpHash       string              `gorm:"column:user_op_hash;type:varchar(128);not null;uniqueIndex" json:"user_op_hash"`
	WalletID         string              `gorm:"column:wallet_id;type:varchar(128);not null" json:"wallet_id"`
	Blockchain       types.Blockchain    `gorm:"column:blockchain;type:varchar(32);not null" json:"blockchain"`
	EstimatedGasUSDC string              `gorm:"column:estimated_gas_usdc;type:varchar(32);not null" json:"estimated_gas_usdc"`
	ActualGasUSDC    *string             `gorm:"column:actual_gas_usdc;type:varchar(32);default:null" json:"actual_gas_usdc"`
	OverpaidUSDC     *string             `gorm:"column:overpaid_usdc;type:varchar(32);default:null" json:"overpaid_usdc"`
	Status           UserOperationStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	TransactionHash  *string             `gorm:"column:transaction_hash;type:varchar(128);default:null" json:"transaction_hash"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (PaymasterUserOperation) TableName() string { return "paymaster_user_operation" }

// PaymasterEvent is an append-only record of one UserOperationSponsored log.
// The (transaction_hash, log_index) pair uniquely identifies the log, which
// keeps catch-up syncs from double-appending.
type PaymasterEvent struct {
	ID                string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Blockchain        types.Blockchain `gorm:"column:blockchain;type:varchar(32);not null" json:"blockchain"`
	Token             string           `gorm:"column:token;type:varchar(64);not null" json:"token"`
	Sender            string           `gorm:"column:sender;type:varchar(64);not null" json:"sender"`
	UserOpHash        string           `gorm:"column:user_op_hash;type:varchar(128);not null;index" json:"user_op_hash"`
	NativeTokenPrice  string           `gorm:"column:native_token_price;type:varchar(78);not null" json:"native_token_price"`
	ActualTokenNeeded string           `gorm:"column:actual_token_needed;type:varchar(78);not null" json:"actual_token_needed"`
	FeeTokenAmount    string           `gorm:"column:fee_token_amount;type:varchar(78);not null" json:"fee_token_amount"`
	TransactionHash   string           `gorm:"column:transaction_hash;type:varchar(128);not null;uniqueIndex:unique_tx_log,priority:1" json:"transaction_hash"`
	LogIndex          uint             `gorm:"column:log_index;not null;uniqueIndex:unique_tx_log,priority:2" json:"log_index"`
	BlockNumber       uint64           `gorm:"column:block_number;not null" json:"block_number"`
	CreatedAt         time.Time        `json:"created_at"`
}

func (PaymasterEvent) TableName() string { return "paymaster_event" }

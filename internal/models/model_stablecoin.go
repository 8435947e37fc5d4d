package models

import (
	"time"

	"github.com/quidpay/reconciler/pkg/types"
)

// StablecoinWallet is a deposit address provisioned for a user. Address is
// stored lowercase; lookups must normalize before querying.
type StablecoinWallet struct {
	ID         string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID     string           `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Address    string           `gorm:"column:address;type:varchar(64);not null;uniqueIndex" json:"address"`
	Blockchain types.Blockchain `gorm:"column:blockchain;type:varchar(32);not null" json:"blockchain"`
	Network    types.Network    `gorm:"column:network;type:varchar(16);not null" json:"network"`
	TokenType  types.TokenType  `gorm:"column:token_type;type:varchar(16);not null" json:"token_type"`
	Active     bool             `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (StablecoinWallet) TableName() string { return "stablecoin_wallet" }

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "PENDING"
	DepositStatusConfirmed DepositStatus = "CONFIRMED"
	DepositStatusConverted DepositStatus = "CONVERTED"
	DepositStatusFailed    DepositStatus = "FAILED"
)

// StablecoinDeposit is one inbound ERC-20 transfer credited to a deposit
// wallet. TransactionHash is the dedup key: at most one row per hash.
type StablecoinDeposit struct {
	ID                 string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TransactionHash    string           `gorm:"column:transaction_hash;type:varchar(128);not null;uniqueIndex" json:"transaction_hash"`
	StablecoinWalletID string           `gorm:"column:stablecoin_wallet_id;type:uuid;not null;index" json:"stablecoin_wallet_id"`
	TokenType          types.TokenType  `gorm:"column:token_type;type:varchar(16);not null" json:"token_type"`
	Amount             string           `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	Blockchain         types.Blockchain `gorm:"column:blockchain;type:varchar(32);not null" json:"blockchain"`
	Network            types.Network    `gorm:"column:network;type:varchar(16);not null" json:"network"`
	BlockNumber        uint64           `gorm:"column:block_number;not null;default:0" json:"block_number"`
	Status             DepositStatus    `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ConfirmedAt        *time.Time       `gorm:"column:confirmed_at;default:null" json:"confirmed_at"`
	ConvertedAt        *time.Time       `gorm:"column:converted_at;default:null" json:"converted_at"`
	NairaCredited      bool             `gorm:"column:naira_credited;not null;default:false" json:"naira_credited"`
	NairaAmount        *string          `gorm:"column:naira_amount;type:varchar(32);default:null" json:"naira_amount"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (StablecoinDeposit) TableName() string { return "stablecoin_deposit" }

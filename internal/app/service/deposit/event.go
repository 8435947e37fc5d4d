package deposit

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

const activityWebhookType = "ADDRESS_ACTIVITY"

// ActivityWebhook is the Alchemy address-activity envelope.
type ActivityWebhook struct {
	WebhookID string        `json:"webhookId"`
	ID        string        `json:"id"`
	CreatedAt string        `json:"createdAt"`
	Type      string        `json:"type"`
	Event     ActivityEvent `json:"event"`
}

type ActivityEvent struct {
	Network  string     `json:"network"`
	Activity []Activity `json:"activity"`
}

// Activity is one observed transfer. Only category "erc20" is of interest
// to the deposit matcher.
type Activity struct {
	FromAddress string      `json:"fromAddress"`
	ToAddress   string      `json:"toAddress"`
	BlockNum    string      `json:"blockNum"`
	Hash        string      `json:"hash"`
	Category    string      `json:"category"`
	Asset       string      `json:"asset"`
	RawContract RawContract `json:"rawContract"`
}

type RawContract struct {
	RawValue string `json:"rawValue"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// IsERC20 reports whether the activity is a token transfer.
func (a *Activity) IsERC20() bool {
	return strings.EqualFold(a.Category, "erc20")
}

// RawAmount decodes the hex-encoded transfer value.
func (a *Activity) RawAmount() (*big.Int, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(a.RawContract.RawValue), "0x")
	if raw == "" {
		return nil, fmt.Errorf("deposit: activity %s missing raw value", a.Hash)
	}
	value, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return nil, fmt.Errorf("deposit: activity %s has invalid raw value %q", a.Hash, a.RawContract.RawValue)
	}
	return value, nil
}

// BlockNumber decodes the hex block number; zero when absent.
func (a *Activity) BlockNumber() uint64 {
	raw := strings.TrimPrefix(strings.TrimSpace(a.BlockNum), "0x")
	if raw == "" {
		return 0
	}
	value, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return 0
	}
	return value.Uint64()
}

// ParseActivityWebhook decodes a raw webhook body into the envelope.
func ParseActivityWebhook(raw []byte) (*ActivityWebhook, error) {
	var w ActivityWebhook
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("deposit: decode activity webhook: %w", err)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("deposit: activity webhook missing id")
	}
	return &w, nil
}

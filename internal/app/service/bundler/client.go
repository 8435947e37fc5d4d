package bundler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quidpay/reconciler/internal/platform/chain"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/types"
)

const (
	methodGasPrice           = "pimlico_getUserOperationGasPrice"
	methodEstimateGas        = "eth_estimateUserOperationGas"
	methodSendUserOperation  = "eth_sendUserOperation"
	methodGetUserOpReceipt   = "eth_getUserOperationReceipt"
	receiptPollInterval      = 2 * time.Second
	defaultReceiptTimeout    = 60 * time.Second
	defaultRequestTimeout    = 30 * time.Second
)

// UserOperation is an ERC-4337 v0.7 operation in the bundler wire format.
// All numeric fields are hex quantities.
type UserOperation struct {
	Sender                        string `json:"sender"`
	Nonce                         string `json:"nonce"`
	Factory                       string `json:"factory,omitempty"`
	FactoryData                   string `json:"factoryData,omitempty"`
	CallData                      string `json:"callData"`
	CallGasLimit                  string `json:"callGasLimit,omitempty"`
	VerificationGasLimit          string `json:"verificationGasLimit,omitempty"`
	PreVerificationGas            string `json:"preVerificationGas,omitempty"`
	MaxFeePerGas                  string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas          string `json:"maxPriorityFeePerGas,omitempty"`
	Paymaster                     string `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit string `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       string `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 string `json:"paymasterData,omitempty"`
	Signature                     string `json:"signature,omitempty"`
}

// GasPriceTier is one fee tier from the bundler's price oracle.
type GasPriceTier struct {
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

// GasPrice is the pimlico_getUserOperationGasPrice result.
type GasPrice struct {
	Slow     GasPriceTier `json:"slow"`
	Standard GasPriceTier `json:"standard"`
	Fast     GasPriceTier `json:"fast"`
}

// GasLimits is the eth_estimateUserOperationGas result.
type GasLimits struct {
	PreVerificationGas            string `json:"preVerificationGas"`
	VerificationGasLimit          string `json:"verificationGasLimit"`
	CallGasLimit                  string `json:"callGasLimit"`
	PaymasterVerificationGasLimit string `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       string `json:"paymasterPostOpGasLimit,omitempty"`
}

// GasEstimate merges the price-oracle tiers with the simulated limits.
type GasEstimate struct {
	Price  GasPrice
	Limits GasLimits
}

// UserOperationReceipt is the subset of the bundler receipt the platform
// consumes.
type UserOperationReceipt struct {
	UserOpHash    string `json:"userOpHash"`
	EntryPoint    string `json:"entryPoint"`
	Sender        string `json:"sender"`
	Nonce         string `json:"nonce"`
	Success       bool   `json:"success"`
	ActualGasCost string `json:"actualGasCost"`
	ActualGasUsed string `json:"actualGasUsed"`
	Receipt       struct {
		TransactionHash string `json:"transactionHash"`
		BlockNumber     string `json:"blockNumber"`
	} `json:"receipt"`
}

// ErrReceiptTimeout marks a poll that ran out of time. The operation may
// still complete later; callers must reconcile via the sponsorship event
// tracker rather than treat this as failure.
var ErrReceiptTimeout = fmt.Errorf("bundler: timed out waiting for user operation receipt")

// Client talks to a per-chain ERC-4337 bundler endpoint resolved from the
// configured base URL naming convention.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *Client) url(blockchain types.Blockchain) (string, error) {
	return chain.BundlerURL(c.cfg.Bundler.BaseURL, c.cfg.Bundler.APIKey, blockchain)
}

// GetUserOperationGasPrice fetches the bundler's current fee tiers.
func (c *Client) GetUserOperationGasPrice(ctx context.Context, blockchain types.Blockchain) (*GasPrice, error) {
	url, err := c.url(blockchain)
	if err != nil {
		return nil, err
	}
	var price GasPrice
	if err := call(ctx, c.httpClient, url, methodGasPrice, []interface{}{}, &price); err != nil {
		return nil, err
	}
	return &price, nil
}

// EstimateUserOperationGas asks the bundler to simulate the operation
// against the v0.7 entry point.
func (c *Client) EstimateUserOperationGas(ctx context.Context, blockchain types.Blockchain, op *UserOperation) (*GasLimits, error) {
	url, err := c.url(blockchain)
	if err != nil {
		return nil, err
	}
	var limits GasLimits
	if err := call(ctx, c.httpClient, url, methodEstimateGas, []interface{}{op, chain.EntryPointV07}, &limits); err != nil {
		return nil, err
	}
	return &limits, nil
}

// EstimateGas runs the two-call estimation. Both calls must succeed;
// either provider error aborts with that provider's message.
func (c *Client) EstimateGas(ctx context.Context, blockchain types.Blockchain, op *UserOperation) (*GasEstimate, error) {
	price, err := c.GetUserOperationGasPrice(ctx, blockchain)
	if err != nil {
		return nil, err
	}
	limits, err := c.EstimateUserOperationGas(ctx, blockchain, op)
	if err != nil {
		return nil, err
	}
	return &GasEstimate{Price: *price, Limits: *limits}, nil
}

// SendUserOperation submits the operation and returns the userOpHash, the
// correlation key for all later state.
func (c *Client) SendUserOperation(ctx context.Context, blockchain types.Blockchain, op *UserOperation) (string, error) {
	url, err := c.url(blockchain)
	if err != nil {
		return "", err
	}
	var hash string
	if err := call(ctx, c.httpClient, url, methodSendUserOperation, []interface{}{op, chain.EntryPointV07}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetUserOperationReceipt returns the receipt, or nil when the bundler has
// not included the operation yet.
func (c *Client) GetUserOperationReceipt(ctx context.Context, blockchain types.Blockchain, userOpHash string) (*UserOperationReceipt, error) {
	url, err := c.url(blockchain)
	if err != nil {
		return nil, err
	}
	var receipt UserOperationReceipt
	err = call(ctx, c.httpClient, url, methodGetUserOpReceipt, []interface{}{userOpHash}, &receipt)
	if errors.Is(err, errEmptyResult) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// WaitForReceipt polls for the receipt every two seconds until it lands or
// the timeout elapses. The poll blocks its caller; run it in a background
// task when non-blocking behavior is needed.
func (c *Client) WaitForReceipt(ctx context.Context, blockchain types.Blockchain, userOpHash string, timeout time.Duration) (*UserOperationReceipt, error) {
	if timeout <= 0 {
		timeout = c.cfg.Bundler.ReceiptTimeout
	}
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.GetUserOperationReceipt(ctx, blockchain, userOpHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, userOpHash, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

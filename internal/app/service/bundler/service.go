package bundler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

// Service submits sponsored user operations and tracks them locally. The
// estimated cost captured here is later compared against the on-chain
// sponsorship event by the paymaster tracker.
type Service struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	client *Client
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, client *Client) *Service {
	return &Service{db: db, log: log, client: client}
}

// SubmitRequest describes one sponsored operation submission.
type SubmitRequest struct {
	WalletID         string
	Blockchain       types.Blockchain
	Op               *UserOperation
	EstimatedGasUSDC string
}

// Submit sends the operation to the bundler and records it PENDING keyed by
// the returned userOpHash.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*models.PaymasterUserOperation, error) {
	if req == nil || req.Op == nil {
		return nil, fmt.Errorf("bundler: nil submit request")
	}
	hash, err := s.client.SendUserOperation(ctx, req.Blockchain, req.Op)
	if err != nil {
		return nil, err
	}
	row := &models.PaymasterUserOperation{
		ID:               tool.GenerateUUIDV7(),
		UserOpHash:       hash,
		WalletID:         req.WalletID,
		Blockchain:       req.Blockchain,
		EstimatedGasUSDC: req.EstimatedGasUSDC,
		Status:           models.UserOperationStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("bundler: record user operation %s: %w", hash, err)
	}
	logctx.FromCtx(ctx, s.log).Infow("user_operation_submitted",
		"user_op_hash", hash, "blockchain", req.Blockchain, "estimated_gas_usdc", req.EstimatedGasUSDC)
	return row, nil
}

// EstimateGas exposes the two-call estimation on the service surface.
func (s *Service) EstimateGas(ctx context.Context, blockchain types.Blockchain, op *UserOperation) (*GasEstimate, error) {
	return s.client.EstimateGas(ctx, blockchain, op)
}

// WaitForReceipt blocks until the bundler reports inclusion or the timeout
// elapses. A timeout is not a failure verdict: the sponsorship event
// tracker reconciles the operation asynchronously.
func (s *Service) WaitForReceipt(ctx context.Context, blockchain types.Blockchain, userOpHash string) (*UserOperationReceipt, error) {
	return s.client.WaitForReceipt(ctx, blockchain, userOpHash, 0)
}

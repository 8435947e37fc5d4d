package cctp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

// Service reconciles independently delivered burn-side and mint-side
// transaction webhooks into one cross-chain transfer. Burn and mint events
// may arrive in any order; the transfer completes only once both sides have
// a confirmed hash.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// InitiateTransferRequest describes a new burn-side request.
type InitiateTransferRequest struct {
	Reference             string
	WalletID              string
	Amount                string
	SourceChain           types.Blockchain
	DestinationChain      types.Blockchain
	BurnProviderTxID      string
	SourceAddress         string
	DestinationAddress    string
	BurnProviderReference string
}

// InitiateTransfer creates the transfer record and its burn transaction,
// both carrying the caller's reference so the burn webhook can be matched
// back before any direct link exists. Reference is unique per transfer.
func (s *Service) InitiateTransfer(ctx context.Context, req *InitiateTransferRequest) (*models.CCTPTransfer, error) {
	if req == nil || req.Reference == "" {
		return nil, fmt.Errorf("cctp: reference is required")
	}
	transfer := &models.CCTPTransfer{
		ID:               tool.GenerateUUIDV7(),
		Reference:        req.Reference,
		WalletID:         req.WalletID,
		Amount:           req.Amount,
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		State:            models.CCTPTransferStateInitiated,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transfer).Error; err != nil {
			return err
		}
		if req.BurnProviderTxID == "" {
			return nil
		}
		burn := &models.Transaction{
			ID:                    tool.GenerateUUIDV7(),
			ProviderTransactionID: req.BurnProviderTxID,
			Reference:             req.Reference,
			WalletID:              req.WalletID,
			State:                 models.TransactionStateInitiated,
			Blockchain:            req.SourceChain,
			SourceAddress:         req.SourceAddress,
			DestinationAddress:    req.DestinationAddress,
			Amount:                req.Amount,
		}
		return tx.Create(burn).Error
	})
	if err != nil {
		return nil, fmt.Errorf("cctp: initiate transfer: %w", err)
	}
	return transfer, nil
}

// LinkMintTransaction pre-links the mint-side provider transaction to a
// transfer. The platform creates the mint request itself, so unlike the burn
// side the link is known before the first mint webhook arrives. The link is
// write-once.
func (s *Service) LinkMintTransaction(ctx context.Context, reference, mintProviderTxID string) error {
	transfer, err := s.GetTransferByReference(ctx, reference)
	if err != nil {
		return err
	}
	if transfer.MintTransactionID != nil {
		if *transfer.MintTransactionID == mintProviderTxID {
			return nil
		}
		return fmt.Errorf("cctp: transfer %s already linked to mint %s", reference, *transfer.MintTransactionID)
	}
	return s.db.WithContext(ctx).Model(&models.CCTPTransfer{}).
		Where("id = ? AND mint_transaction_id IS NULL", transfer.ID).
		Updates(map[string]interface{}{
			"mint_transaction_id": mintProviderTxID,
			"state":               models.CCTPTransferStateMintPending,
		}).Error
}

// GetTransferByReference loads a transfer by its correlation reference.
func (s *Service) GetTransferByReference(ctx context.Context, reference string) (*models.CCTPTransfer, error) {
	var transfer models.CCTPTransfer
	if err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&transfer).Error; err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ReconcileTransaction routes an updated transaction onto the transfer it
// belongs to, if any. Matching order: direct burn link, direct mint link,
// then reference match (burn side only — mint transactions are always
// pre-linked). A transaction matching no transfer is a standalone update
// and not an error.
func (s *Service) ReconcileTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn == nil {
		return nil
	}
	log := logctx.FromCtx(ctx, s.log)

	var transfer models.CCTPTransfer
	err := s.db.WithContext(ctx).Where("burn_transaction_id = ?", txn.ProviderTransactionID).First(&transfer).Error
	if err == nil {
		return s.advanceBurn(ctx, &transfer, txn)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	err = s.db.WithContext(ctx).Where("mint_transaction_id = ?", txn.ProviderTransactionID).First(&transfer).Error
	if err == nil {
		return s.advanceMint(ctx, &transfer, txn)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if txn.Reference != "" {
		err = s.db.WithContext(ctx).Where("reference = ?", txn.Reference).First(&transfer).Error
		if err == nil {
			if transfer.BurnTransactionID == nil {
				// First burn webhook for this transfer: take the direct link.
				if err := s.db.WithContext(ctx).Model(&models.CCTPTransfer{}).
					Where("id = ? AND burn_transaction_id IS NULL", transfer.ID).
					Update("burn_transaction_id", txn.ProviderTransactionID).Error; err != nil {
					return err
				}
				transfer.BurnTransactionID = lo.ToPtr(txn.ProviderTransactionID)
			}
			if transfer.BurnTransactionID != nil && *transfer.BurnTransactionID == txn.ProviderTransactionID {
				return s.advanceBurn(ctx, &transfer, txn)
			}
			log.Debugw("cctp_reference_matches_other_leg",
				"reference", txn.Reference, "provider_transaction_id", txn.ProviderTransactionID)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	log.Debugw("cctp_no_transfer_for_transaction", "provider_transaction_id", txn.ProviderTransactionID)
	return nil
}

// advanceBurn moves the transfer along from the burn-side transaction's own
// state. The raw notification type is deliberately ignored: providers report
// several event types for the same logical burn progression.
func (s *Service) advanceBurn(ctx context.Context, transfer *models.CCTPTransfer, txn *models.Transaction) error {
	if transfer.State == models.CCTPTransferStateComplete || transfer.State == models.CCTPTransferStateFailed {
		return nil
	}
	log := logctx.FromCtx(ctx, s.log)
	updates := map[string]interface{}{}

	switch txn.State {
	case models.TransactionStateCleared, models.TransactionStateQueued, models.TransactionStateSent:
		if transfer.State == models.CCTPTransferStateInitiated || transfer.State == models.CCTPTransferStateBurnPending {
			updates["state"] = models.CCTPTransferStateBurnPending
		}
	case models.TransactionStateConfirmed, models.TransactionStateComplete:
		if txn.TransactionHash == nil || *txn.TransactionHash == "" {
			// Confirmed without a hash is not a usable burn proof yet.
			return nil
		}
		if !transfer.BurnConfirmed() {
			updates["burn_tx_hash"] = *txn.TransactionHash
		}
		if transfer.MintConfirmed() {
			updates["state"] = models.CCTPTransferStateComplete
			updates["completed_at"] = time.Now()
		} else if transfer.State.Rank() < models.CCTPTransferStateAttestationPending.Rank() {
			// A redundant burn event after the mint is underway must not
			// pull the transfer back from MINT_PENDING.
			updates["state"] = models.CCTPTransferStateAttestationPending
		}
	case models.TransactionStateFailed:
		updates["state"] = models.CCTPTransferStateFailed
		updates["failure_stage"] = models.CCTPFailureStageBurn
	default:
		return nil
	}

	if len(updates) == 0 {
		return nil
	}
	log.Infow("cctp_burn_advanced", "reference", transfer.Reference, "transaction_state", txn.State)
	return s.db.WithContext(ctx).Model(&models.CCTPTransfer{}).Where("id = ?", transfer.ID).Updates(updates).Error
}

// advanceMint mirrors advanceBurn for the destination chain. A mint that
// confirms before the burn records its hash and waits; completion happens
// whenever the second side lands.
func (s *Service) advanceMint(ctx context.Context, transfer *models.CCTPTransfer, txn *models.Transaction) error {
	if transfer.State == models.CCTPTransferStateComplete || transfer.State == models.CCTPTransferStateFailed {
		return nil
	}
	log := logctx.FromCtx(ctx, s.log)
	updates := map[string]interface{}{}

	switch txn.State {
	case models.TransactionStateCleared, models.TransactionStateQueued, models.TransactionStateSent:
		updates["state"] = models.CCTPTransferStateMintPending
	case models.TransactionStateConfirmed, models.TransactionStateComplete:
		if txn.TransactionHash == nil || *txn.TransactionHash == "" {
			return nil
		}
		if !transfer.MintConfirmed() {
			updates["mint_tx_hash"] = *txn.TransactionHash
		}
		if transfer.BurnConfirmed() {
			updates["state"] = models.CCTPTransferStateComplete
			updates["completed_at"] = time.Now()
		} else {
			updates["state"] = models.CCTPTransferStateMintPending
		}
	case models.TransactionStateFailed:
		updates["state"] = models.CCTPTransferStateFailed
		updates["failure_stage"] = models.CCTPFailureStageMint
	default:
		return nil
	}

	if len(updates) == 0 {
		return nil
	}
	log.Infow("cctp_mint_advanced", "reference", transfer.Reference, "transaction_state", txn.State)
	return s.db.WithContext(ctx).Model(&models.CCTPTransfer{}).Where("id = ?", transfer.ID).Updates(updates).Error
}

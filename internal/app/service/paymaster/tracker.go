package paymaster

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/internal/platform/chain"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

// overpaymentThreshold is one dollar in raw USDC units. Estimates exceeding
// the actual charge by more than this are flagged for the refund process.
var overpaymentThreshold = big.NewInt(1_000_000)

// LogFilterer is the subset of the Ethereum RPC the tracker needs for
// catch-up syncs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
}

// Tracker applies on-chain sponsorship events onto submitted user
// operations. Each log's handler is idempotent: the per-userOpHash
// single-write rule and the (txHash, logIndex) event constraint make
// replays no-ops, so listeners and catch-up syncs can overlap safely.
type Tracker struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewTracker(db *gorm.DB, log *zap.SugaredLogger) *Tracker {
	return &Tracker{db: db, log: log}
}

// ProcessLog applies one UserOperationSponsored log. Returns true when the
// log resulted in a state change, false when it was skipped (already
// recorded, or not an operation this platform submitted).
func (t *Tracker) ProcessLog(ctx context.Context, blockchain types.Blockchain, rawLog *gethtypes.Log) (bool, error) {
	log := logctx.FromCtx(ctx, t.log)

	ev, err := DecodeSponsoredLog(rawLog)
	if err != nil {
		log.Warnw("paymaster_log_decode_failed", "blockchain", blockchain, "error", err.Error())
		return false, nil
	}

	// Catch-up replays land here: the log was already recorded.
	var existing models.PaymasterEvent
	err = t.db.WithContext(ctx).
		Where("transaction_hash = ? AND log_index = ?", ev.TransactionHash.Hex(), ev.LogIndex).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	var op models.PaymasterUserOperation
	err = t.db.WithContext(ctx).Where("user_op_hash = ?", ev.UserOpHash.Hex()).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Likely submitted through another platform sharing the paymaster.
		log.Warnw("paymaster_unknown_user_operation",
			"user_op_hash", ev.UserOpHash.Hex(), "blockchain", blockchain)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	actualGas := chain.FormatUSDC(ev.ActualTokenNeeded)

	if op.Status != models.UserOperationStatusConfirmed {
		updates := map[string]interface{}{
			"status":           models.UserOperationStatusConfirmed,
			"actual_gas_usdc":  actualGas,
			"transaction_hash": ev.TransactionHash.Hex(),
		}
		if overpaid := t.overpayment(ctx, &op, ev.ActualTokenNeeded); overpaid != nil {
			updates["overpaid_usdc"] = chain.FormatUSDC(overpaid)
		}
		// actual_gas_usdc is written at most once; the status guard keeps a
		// duplicate log from recomputing it.
		if err := t.db.WithContext(ctx).Model(&models.PaymasterUserOperation{}).
			Where("id = ? AND status <> ?", op.ID, models.UserOperationStatusConfirmed).
			Updates(updates).Error; err != nil {
			return false, err
		}
	}

	row := &models.PaymasterEvent{
		ID:                tool.GenerateUUIDV7(),
		Blockchain:        blockchain,
		Token:             ev.Token.Hex(),
		Sender:            ev.Sender.Hex(),
		UserOpHash:        ev.UserOpHash.Hex(),
		NativeTokenPrice:  ev.NativeTokenPrice.String(),
		ActualTokenNeeded: ev.ActualTokenNeeded.String(),
		FeeTokenAmount:    ev.FeeTokenAmount.String(),
		TransactionHash:   ev.TransactionHash.Hex(),
		LogIndex:          ev.LogIndex,
		BlockNumber:       ev.BlockNumber,
	}
	if err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(row).Error; err != nil {
		return false, err
	}

	log.Infow("paymaster_sponsorship_applied",
		"user_op_hash", ev.UserOpHash.Hex(), "actual_gas_usdc", actualGas, "tx_hash", ev.TransactionHash.Hex())
	return true, nil
}

// overpayment returns the raw USDC amount by which the estimate exceeded
// the actual charge, when it crosses the $1 threshold. Refund execution is
// a separate process; this only detects and logs the condition.
func (t *Tracker) overpayment(ctx context.Context, op *models.PaymasterUserOperation, actual *big.Int) *big.Int {
	estimated, err := chain.ParseUSDC(op.EstimatedGasUSDC)
	if err != nil {
		logctx.FromCtx(ctx, t.log).Warnw("paymaster_bad_estimate",
			"user_op_hash", op.UserOpHash, "estimated", op.EstimatedGasUSDC)
		return nil
	}
	diff := new(big.Int).Sub(estimated, actual)
	if diff.Cmp(overpaymentThreshold) <= 0 {
		return nil
	}
	logctx.FromCtx(ctx, t.log).Warnw("paymaster_overpayment_detected",
		"user_op_hash", op.UserOpHash,
		"estimated_usdc", op.EstimatedGasUSDC,
		"actual_usdc", chain.FormatUSDC(actual),
		"overpaid_usdc", chain.FormatUSDC(diff))
	return diff
}

// SyncResult summarizes one catch-up run.
type SyncResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// SyncEvents replays sponsorship logs for a block range. Logs already
// recorded are skipped via the (txHash, logIndex) key, so re-syncing an
// overlapping range is safe.
func (t *Tracker) SyncEvents(ctx context.Context, blockchain types.Blockchain, filterer LogFilterer, fromBlock, toBlock uint64) (*SyncResult, error) {
	logs, err := filterer.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{chain.PaymasterAddress(blockchain)},
		Topics:    [][]common.Hash{{SponsoredEventSignature}},
	})
	if err != nil {
		return nil, err
	}
	result := &SyncResult{}
	for i := range logs {
		applied, err := t.ProcessLog(ctx, blockchain, &logs[i])
		if err != nil {
			return result, err
		}
		if applied {
			result.Processed++
		} else {
			result.Skipped++
		}
	}
	logctx.FromCtx(ctx, t.log).Infow("paymaster_sync_completed",
		"blockchain", blockchain, "from_block", fromBlock, "to_block", toBlock,
		"processed", result.Processed, "skipped", result.Skipped)
	return result, nil
}

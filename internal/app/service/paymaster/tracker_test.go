package paymaster

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

var (
	testToken  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testSender = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func setupTracker(t *testing.T) (*Tracker, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PaymasterUserOperation{}, &models.PaymasterEvent{}))
	return NewTracker(db, zap.NewNop().Sugar()), db
}

func seedUserOperation(t *testing.T, db *gorm.DB, userOpHash common.Hash, estimatedUSDC string) *models.PaymasterUserOperation {
	t.Helper()
	op := &models.PaymasterUserOperation{
		ID:               tool.GenerateUUIDV7(),
		UserOpHash:       userOpHash.Hex(),
		WalletID:         "wallet-1",
		Blockchain:       types.BlockchainBase,
		EstimatedGasUSDC: estimatedUSDC,
		Status:           models.UserOperationStatusPending,
	}
	require.NoError(t, db.Create(op).Error)
	return op
}

// sponsoredLog builds a raw log the way the paymaster contract emits it:
// token and sender indexed, the rest ABI-packed into the data segment.
func sponsoredLog(t *testing.T, userOpHash common.Hash, actualTokenNeeded *big.Int, txHash common.Hash, logIndex uint) *gethtypes.Log {
	t.Helper()
	var hashWord [32]byte
	copy(hashWord[:], userOpHash.Bytes())
	data, err := paymasterABI.Events["UserOperationSponsored"].Inputs.NonIndexed().Pack(
		hashWord,
		big.NewInt(2_000_000_000),
		actualTokenNeeded,
		new(big.Int).Add(actualTokenNeeded, big.NewInt(10_000)),
	)
	require.NoError(t, err)
	return &gethtypes.Log{
		Topics:      []common.Hash{SponsoredEventSignature, common.BytesToHash(testToken.Bytes()), common.BytesToHash(testSender.Bytes())},
		Data:        data,
		TxHash:      txHash,
		Index:       logIndex,
		BlockNumber: 1200,
	}
}

func TestDecodeSponsoredLog(t *testing.T) {
	userOpHash := common.HexToHash("0xaaaa")
	raw := sponsoredLog(t, userOpHash, big.NewInt(3_500_000), common.HexToHash("0xbeef"), 7)

	ev, err := DecodeSponsoredLog(raw)
	require.NoError(t, err)
	require.Equal(t, testToken, ev.Token)
	require.Equal(t, testSender, ev.Sender)
	require.Equal(t, userOpHash, ev.UserOpHash)
	require.Equal(t, int64(3_500_000), ev.ActualTokenNeeded.Int64())
	require.Equal(t, int64(2_000_000_000), ev.NativeTokenPrice.Int64())
	require.Equal(t, uint(7), ev.LogIndex)
}

func TestDecodeSponsoredLog_WrongSignature(t *testing.T) {
	raw := sponsoredLog(t, common.HexToHash("0xaaaa"), big.NewInt(1), common.HexToHash("0xbeef"), 0)
	raw.Topics[0] = common.HexToHash("0x1234")
	_, err := DecodeSponsoredLog(raw)
	require.Error(t, err)
}

func TestProcessLog_ConfirmsOperation(t *testing.T) {
	tracker, db := setupTracker(t)
	ctx := context.Background()
	userOpHash := common.HexToHash("0xaaaa")
	op := seedUserOperation(t, db, userOpHash, "3.60")

	applied, err := tracker.ProcessLog(ctx, types.BlockchainBase, sponsoredLog(t, userOpHash, big.NewInt(3_500_000), common.HexToHash("0xbeef"), 3))
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, db.First(op, "id = ?", op.ID).Error)
	require.Equal(t, models.UserOperationStatusConfirmed, op.Status)
	require.NotNil(t, op.ActualGasUSDC)
	require.Equal(t, "3.500000", *op.ActualGasUSDC)
	require.Nil(t, op.OverpaidUSDC, "a $0.10 delta stays under the refund threshold")
	require.NotNil(t, op.TransactionHash)

	var event models.PaymasterEvent
	require.NoError(t, db.Where("user_op_hash = ?", userOpHash.Hex()).First(&event).Error)
	require.Equal(t, "3500000", event.ActualTokenNeeded)
	require.Equal(t, uint64(1200), event.BlockNumber)
}

func TestProcessLog_FlagsOverpayment(t *testing.T) {
	tracker, db := setupTracker(t)
	ctx := context.Background()
	userOpHash := common.HexToHash("0xbbbb")
	op := seedUserOperation(t, db, userOpHash, "5.00")

	applied, err := tracker.ProcessLog(ctx, types.BlockchainBase, sponsoredLog(t, userOpHash, big.NewInt(3_500_000), common.HexToHash("0xbeef"), 0))
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, db.First(op, "id = ?", op.ID).Error)
	require.NotNil(t, op.OverpaidUSDC)
	require.Equal(t, "1.500000", *op.OverpaidUSDC)
}

func TestProcessLog_DuplicateLogIsSkipped(t *testing.T) {
	tracker, db := setupTracker(t)
	ctx := context.Background()
	userOpHash := common.HexToHash("0xcccc")
	op := seedUserOperation(t, db, userOpHash, "4.00")

	raw := sponsoredLog(t, userOpHash, big.NewInt(3_500_000), common.HexToHash("0xbeef"), 3)
	applied, err := tracker.ProcessLog(ctx, types.BlockchainBase, raw)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = tracker.ProcessLog(ctx, types.BlockchainBase, raw)
	require.NoError(t, err)
	require.False(t, applied)

	var count int64
	require.NoError(t, db.Model(&models.PaymasterEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.NoError(t, db.First(op, "id = ?", op.ID).Error)
	require.Equal(t, "3.500000", *op.ActualGasUSDC)
}

func TestProcessLog_UnknownUserOperationIsSkipped(t *testing.T) {
	tracker, db := setupTracker(t)

	applied, err := tracker.ProcessLog(context.Background(), types.BlockchainBase,
		sponsoredLog(t, common.HexToHash("0xdddd"), big.NewInt(1_000_000), common.HexToHash("0xbeef"), 0))
	require.NoError(t, err)
	require.False(t, applied)

	var count int64
	require.NoError(t, db.Model(&models.PaymasterEvent{}).Count(&count).Error)
	require.Zero(t, count, "events are only recorded for operations this platform submitted")
}

type stubFilterer struct {
	logs    []gethtypes.Log
	lastQ   ethereum.FilterQuery
	headNum uint64
}

func (s *stubFilterer) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	s.lastQ = q
	return s.logs, nil
}

func (s *stubFilterer) BlockNumber(_ context.Context) (uint64, error) {
	return s.headNum, nil
}

func TestSyncEvents_ReplayIsIdempotent(t *testing.T) {
	tracker, db := setupTracker(t)
	ctx := context.Background()
	opHash1 := common.HexToHash("0x01")
	opHash2 := common.HexToHash("0x02")
	seedUserOperation(t, db, opHash1, "2.00")
	seedUserOperation(t, db, opHash2, "2.00")

	filterer := &stubFilterer{logs: []gethtypes.Log{
		*sponsoredLog(t, opHash1, big.NewInt(1_500_000), common.HexToHash("0xa1"), 0),
		*sponsoredLog(t, opHash2, big.NewInt(1_600_000), common.HexToHash("0xa2"), 1),
	}}

	result, err := tracker.SyncEvents(ctx, types.BlockchainBase, filterer, 1000, 1300)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.Zero(t, result.Skipped)
	require.EqualValues(t, 1000, filterer.lastQ.FromBlock.Uint64())
	require.EqualValues(t, 1300, filterer.lastQ.ToBlock.Uint64())
	require.Len(t, filterer.lastQ.Topics, 1)
	require.Equal(t, SponsoredEventSignature, filterer.lastQ.Topics[0][0])

	// Overlapping re-sync: everything already recorded.
	result, err = tracker.SyncEvents(ctx, types.BlockchainBase, filterer, 900, 1300)
	require.NoError(t, err)
	require.Zero(t, result.Processed)
	require.Equal(t, 2, result.Skipped)
}

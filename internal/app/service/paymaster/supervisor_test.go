package paymaster

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/types"
)

func TestSupervisor_SyncEventsUsesRegisteredClient(t *testing.T) {
	tracker, db := setupTracker(t)
	userOpHash := common.HexToHash("0x10")
	seedUserOperation(t, db, userOpHash, "2.00")

	sup := NewSupervisor(&config.Config{}, zap.NewNop().Sugar(), tracker)
	sup.RegisterClient(types.BlockchainBase, &stubFilterer{logs: []gethtypes.Log{
		*sponsoredLog(t, userOpHash, big.NewInt(1_500_000), common.HexToHash("0xa1"), 0),
	}})

	result, err := sup.SyncEvents(context.Background(), types.BlockchainBase, 100, 200)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
}

func TestSupervisor_UnconfiguredChainErrors(t *testing.T) {
	tracker, _ := setupTracker(t)
	sup := NewSupervisor(&config.Config{}, zap.NewNop().Sugar(), tracker)

	_, err := sup.SyncEvents(context.Background(), types.BlockchainAvalanche, 1, 2)
	require.Error(t, err)
}

// advancingClient reports a growing chain head so the listener always sees
// a fresh block window on each poll.
type advancingClient struct {
	stubFilterer
}

func (a *advancingClient) BlockNumber(_ context.Context) (uint64, error) {
	a.headNum += 10
	return a.headNum, nil
}

func TestSupervisor_ListenerAppliesNewLogs(t *testing.T) {
	tracker, db := setupTracker(t)
	userOpHash := common.HexToHash("0x11")
	op := seedUserOperation(t, db, userOpHash, "2.00")

	client := &advancingClient{stubFilterer: stubFilterer{
		headNum: 2000,
		logs: []gethtypes.Log{
			*sponsoredLog(t, userOpHash, big.NewInt(1_500_000), common.HexToHash("0xb1"), 0),
		},
	}}

	cfg := &config.Config{}
	cfg.Paymaster.PollInterval = 10 * time.Millisecond
	sup := NewSupervisor(cfg, zap.NewNop().Sugar(), tracker)
	sup.RegisterClient(types.BlockchainBase, client)

	require.NoError(t, sup.Start(context.Background()))
	require.Error(t, sup.Start(context.Background()), "double start is rejected")

	require.Eventually(t, func() bool {
		var fresh models.PaymasterUserOperation
		if err := db.First(&fresh, "id = ?", op.ID).Error; err != nil {
			return false
		}
		return fresh.Status == models.UserOperationStatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	sup.Stop()
}

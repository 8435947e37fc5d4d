package paymaster

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/quidpay/reconciler/internal/platform/chain"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/types"
)

const defaultPollInterval = 15 * time.Second

// ChainClient is the RPC surface one listener needs.
type ChainClient interface {
	LogFilterer
	BlockNumber(ctx context.Context) (uint64, error)
}

// Supervisor owns one long-lived sponsorship-event listener per configured
// chain. Listeners are explicit start/stop tasks rather than process-init
// side effects, so they can be driven deterministically per chain in tests.
type Supervisor struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	tracker *Tracker

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	clients map[types.Blockchain]ChainClient
	dialers map[types.Blockchain]func() (ChainClient, error)
}

func NewSupervisor(cfg *config.Config, log *zap.SugaredLogger, tracker *Tracker) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		log:     log,
		tracker: tracker,
		clients: map[types.Blockchain]ChainClient{},
		dialers: map[types.Blockchain]func() (ChainClient, error){},
	}
	for _, cc := range cfg.Paymaster.Chains {
		cc := cc
		s.dialers[cc.Blockchain] = func() (ChainClient, error) {
			return ethclient.Dial(cc.RPCURL)
		}
	}
	return s
}

// RegisterClient installs a pre-built client for a chain, replacing the
// configured dialer. Tests use this to run listeners against stubs.
func (s *Supervisor) RegisterClient(blockchain types.Blockchain, client ChainClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[blockchain] = client
	delete(s.dialers, blockchain)
}

// Client returns the RPC client for a chain, dialing lazily.
func (s *Supervisor) Client(blockchain types.Blockchain) (ChainClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[blockchain]; ok {
		return client, nil
	}
	dial, ok := s.dialers[blockchain]
	if !ok {
		return nil, fmt.Errorf("paymaster: chain %s not configured", blockchain)
	}
	client, err := dial()
	if err != nil {
		return nil, fmt.Errorf("paymaster: dial %s: %w", blockchain, err)
	}
	s.clients[blockchain] = client
	return client, nil
}

// SyncEvents runs the catch-up path for one chain using the supervisor's
// client for that chain.
func (s *Supervisor) SyncEvents(ctx context.Context, blockchain types.Blockchain, fromBlock, toBlock uint64) (*SyncResult, error) {
	client, err := s.Client(blockchain)
	if err != nil {
		return nil, err
	}
	return s.tracker.SyncEvents(ctx, blockchain, client, fromBlock, toBlock)
}

// Start launches one listener per configured chain. A chain that fails to
// dial is logged and skipped; the remaining listeners still run.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("paymaster: supervisor already started")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	chains := make([]types.Blockchain, 0, len(s.clients)+len(s.dialers))
	for bc := range s.clients {
		chains = append(chains, bc)
	}
	for bc := range s.dialers {
		chains = append(chains, bc)
	}
	s.mu.Unlock()

	for _, bc := range chains {
		client, err := s.Client(bc)
		if err != nil {
			s.log.Errorw("paymaster_listener_dial_failed", "blockchain", bc, "error", err.Error())
			continue
		}
		s.wg.Add(1)
		go s.run(runCtx, bc, client)
	}
	return nil
}

// Stop cancels all listeners and waits for them to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// run polls for new sponsorship logs from the chain head forward. Missed
// windows (downtime, dropped polls) are recovered via the admin sync path.
func (s *Supervisor) run(ctx context.Context, blockchain types.Blockchain, client ChainClient) {
	defer s.wg.Done()

	interval := s.cfg.Paymaster.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log := s.log.With("blockchain", blockchain)
	log.Infow("paymaster_listener_started", "paymaster", chain.PaymasterAddress(blockchain).Hex())

	var lastBlock uint64
	if head, err := client.BlockNumber(ctx); err == nil {
		lastBlock = head
	} else {
		log.Warnw("paymaster_head_unavailable", "error", err.Error())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infow("paymaster_listener_stopped")
			return
		case <-ticker.C:
		}

		head, err := client.BlockNumber(ctx)
		if err != nil {
			log.Warnw("paymaster_head_unavailable", "error", err.Error())
			continue
		}
		if head <= lastBlock {
			continue
		}
		logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(lastBlock + 1),
			ToBlock:   new(big.Int).SetUint64(head),
			Addresses: []common.Address{chain.PaymasterAddress(blockchain)},
			Topics:    [][]common.Hash{{SponsoredEventSignature}},
		})
		if err != nil {
			log.Warnw("paymaster_filter_failed", "error", err.Error())
			continue
		}
		for i := range logs {
			if _, err := s.tracker.ProcessLog(ctx, blockchain, &logs[i]); err != nil {
				log.Errorw("paymaster_process_log_failed",
					"tx_hash", logs[i].TxHash.Hex(), "error", err.Error())
			}
		}
		lastBlock = head
	}
}

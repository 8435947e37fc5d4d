package deposit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quidpay/reconciler/internal/app/service/ledger"
	"github.com/quidpay/reconciler/internal/models"
	"github.com/quidpay/reconciler/internal/platform/chain"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/logctx"
	"github.com/quidpay/reconciler/pkg/tool"
	"github.com/quidpay/reconciler/pkg/types"
)

// ErrInvalidSignature is returned for a delivery whose HMAC does not match
// the configured signing key.
var ErrInvalidSignature = fmt.Errorf("deposit: invalid webhook signature")

// Service matches inbound ERC-20 transfer activity to user deposit wallets
// and creates deposit records exactly once per transaction hash.
type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	log    *zap.SugaredLogger
	ledger *ledger.Service
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, led *ledger.Service) *Service {
	return &Service{cfg: cfg, db: db, log: log, ledger: led}
}

// VerifySignature checks the Alchemy webhook HMAC: hex-encoded SHA-256 over
// the raw body. An empty signing key skips verification (development mode).
func (s *Service) VerifySignature(signature string, body []byte) error {
	key := s.cfg.Alchemy.SigningKey
	if key == "" {
		return nil
	}
	if signature == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// HandleActivityWebhook ingests one verified address-activity delivery. The
// webhook event ID feeds the dedup ledger; deposit creation itself is
// additionally idempotent by transaction hash, which is the real dedup key
// for this provider.
func (s *Service) HandleActivityWebhook(ctx context.Context, raw []byte) error {
	w, err := ParseActivityWebhook(raw)
	if err != nil {
		return err
	}
	log := logctx.FromCtx(ctx, s.log)
	if w.Type != activityWebhookType {
		log.Infow("webhook_unknown_alchemy_type", "type", w.Type, "webhook_event_id", w.ID)
		return nil
	}

	_, shouldProcess, err := s.ledger.BeginProcessing(ctx, types.WebhookProviderAlchemy, w.ID, w.Type, raw)
	if err != nil {
		return err
	}
	if !shouldProcess {
		return nil
	}

	var handlerErr error
	for i := range w.Event.Activity {
		if _, err := s.ProcessActivity(ctx, w.Event.Network, &w.Event.Activity[i]); err != nil {
			handlerErr = err
			break
		}
	}
	if err := s.ledger.CompleteProcessing(ctx, types.WebhookProviderAlchemy, w.ID, handlerErr); err != nil {
		log.Errorw("webhook_ledger_complete_failed", "webhook_event_id", w.ID, "error", err.Error())
	}
	return handlerErr
}

// ProcessActivity matches one transfer to a deposit wallet. Transfers that
// are not ERC-20, land on an unknown address, or carry an unexpected token
// contract are dropped silently — not every inbound transfer belongs to the
// platform. Returns the deposit, or nil when the activity was dropped.
func (s *Service) ProcessActivity(ctx context.Context, network string, act *Activity) (*models.StablecoinDeposit, error) {
	log := logctx.FromCtx(ctx, s.log)
	if act == nil || !act.IsERC20() {
		return nil, nil
	}

	// Providers vary address casing; addresses are case-insensitive.
	toAddress := strings.ToLower(strings.TrimSpace(act.ToAddress))
	contract := strings.ToLower(strings.TrimSpace(act.RawContract.Address))

	blockchain, netClass, ok := chain.FromAlchemyNetwork(network)
	if !ok {
		log.Debugw("deposit_unknown_network", "network", network, "tx_hash", act.Hash)
		return nil, nil
	}

	var wallet models.StablecoinWallet
	err := s.db.WithContext(ctx).
		Where("address = ? AND active = ?", toAddress, true).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if blockchain != wallet.Blockchain || netClass != wallet.Network {
		// Same address provisioned elsewhere; never credit across chains.
		log.Debugw("deposit_network_mismatch",
			"reported", blockchain, "provisioned", wallet.Blockchain, "tx_hash", act.Hash)
		return nil, nil
	}

	tokenType, ok := chain.ResolveToken(wallet.Blockchain, wallet.Network, contract)
	if !ok {
		log.Debugw("deposit_unknown_token_contract",
			"contract", contract, "blockchain", wallet.Blockchain, "network", wallet.Network, "tx_hash", act.Hash)
		return nil, nil
	}
	if tokenType != wallet.TokenType {
		// Configuration drift or address reuse; never credit the wrong token.
		log.Debugw("deposit_token_mismatch",
			"resolved", tokenType, "provisioned", wallet.TokenType, "tx_hash", act.Hash)
		return nil, nil
	}

	rawAmount, err := act.RawAmount()
	if err != nil {
		return nil, err
	}
	decimals := act.RawContract.Decimals
	if decimals <= 0 {
		decimals = chain.USDCDecimals
	}

	row := &models.StablecoinDeposit{
		ID:                 tool.GenerateUUIDV7(),
		TransactionHash:    strings.ToLower(act.Hash),
		StablecoinWalletID: wallet.ID,
		TokenType:          tokenType,
		Amount:             chain.FormatUnits(rawAmount, decimals),
		Blockchain:         blockchain,
		Network:            netClass,
		BlockNumber:        act.BlockNumber(),
		Status:             models.DepositStatusPending,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_hash"}},
		DoNothing: true,
	}).Create(row).Error; err != nil {
		return nil, err
	}

	var deposit models.StablecoinDeposit
	if err := s.db.WithContext(ctx).Where("transaction_hash = ?", row.TransactionHash).First(&deposit).Error; err != nil {
		return nil, err
	}
	if deposit.ID == row.ID {
		log.Infow("deposit_created",
			"tx_hash", deposit.TransactionHash, "wallet_id", wallet.ID, "token", tokenType, "amount", deposit.Amount)
	} else {
		log.Infow("deposit_duplicate_webhook", "tx_hash", deposit.TransactionHash)
	}
	return &deposit, nil
}

// ConfirmDeposit moves a pending deposit to CONFIRMED and stamps the
// confirmation time once.
func (s *Service) ConfirmDeposit(ctx context.Context, transactionHash string) error {
	res := s.db.WithContext(ctx).Model(&models.StablecoinDeposit{}).
		Where("transaction_hash = ? AND status = ?", strings.ToLower(transactionHash), models.DepositStatusPending).
		Updates(map[string]interface{}{
			"status":       models.DepositStatusConfirmed,
			"confirmed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deposit: no pending deposit for hash %s", transactionHash)
	}
	return nil
}

// MarkConverted records the naira credit for a confirmed deposit. The
// status guard makes the naira credit a one-shot transition.
func (s *Service) MarkConverted(ctx context.Context, transactionHash, nairaAmount string) error {
	res := s.db.WithContext(ctx).Model(&models.StablecoinDeposit{}).
		Where("transaction_hash = ? AND status = ? AND naira_credited = ?",
			strings.ToLower(transactionHash), models.DepositStatusConfirmed, false).
		Updates(map[string]interface{}{
			"status":         models.DepositStatusConverted,
			"naira_credited": true,
			"naira_amount":   lo.ToPtr(nairaAmount),
			"converted_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deposit: no convertible deposit for hash %s", transactionHash)
	}
	return nil
}

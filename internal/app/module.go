package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/quidpay/reconciler/internal/app/api/server"
	"github.com/quidpay/reconciler/internal/app/service/bundler"
	"github.com/quidpay/reconciler/internal/app/service/cctp"
	"github.com/quidpay/reconciler/internal/app/service/circleevent"
	"github.com/quidpay/reconciler/internal/app/service/deposit"
	"github.com/quidpay/reconciler/internal/app/service/ledger"
	"github.com/quidpay/reconciler/internal/app/service/paymaster"
	"github.com/quidpay/reconciler/internal/platform/db"
	"github.com/quidpay/reconciler/pkg/config"
	"github.com/quidpay/reconciler/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	ledger.Module,
	circleevent.Module,
	cctp.Module,
	deposit.Module,
	paymaster.Module,
	bundler.Module,
)

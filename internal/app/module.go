package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/alanwang5210/telegram-bot/internal/app/api/server"
	"github.com/alanwang5210/telegram-bot/internal/app/scheduler"
	"github.com/alanwang5210/telegram-bot/internal/app/service/activation"
	"github.com/alanwang5210/telegram-bot/internal/app/service/broadcast"
	"github.com/alanwang5210/telegram-bot/internal/app/service/callback"
	"github.com/alanwang5210/telegram-bot/internal/app/service/gatewaylog"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/notification"
	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/app/service/statistics"
	"github.com/alanwang5210/telegram-bot/internal/app/service/subscription"
	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/internal/platform/transport"
	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/logger"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Core provides the services without starting the HTTP server or the
// scheduler. vipctl builds on it.
var Core = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	transport.Module,
	user.Module,
	activation.Module,
	subscription.Module,
	payment.Module,
	notification.Module,
	broadcast.Module,
	membership.Module,
	gatewaylog.Module,
	callback.Module,
	statistics.Module,
)

var Module = fx.Options(
	Core,
	scheduler.Module,
	server.Module,
)

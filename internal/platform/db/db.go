package db

import (
	"context"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alanwang5210/telegram-bot/internal/models"
	cfgpkg "github.com/alanwang5210/telegram-bot/pkg/config"
	gormzap "github.com/alanwang5210/telegram-bot/pkg/gormlog"
)

const sqlitePrefix = "sqlite://"

// dialector picks the driver from the DSN. "sqlite://<path>" runs on the
// embedded pure-Go sqlite driver; anything else is handed to postgres.
func dialector(dsn string) (gorm.Dialector, string) {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), "sqlite"
	}
	return postgres.Open(dsn), "postgres"
}

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	level := gormlogger.Warn
	if cfg.Env == cfgpkg.EnvDev {
		level = gormlogger.Info
	}
	dial, driver := dialector(cfg.Database.DSN)
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         gormzap.New(l, level, gormzap.DefaultSlowThreshold),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite allows a single writer
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	l.Infow("connected to database", "driver", driver)
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB, NewGateway),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AllModels lists every table owned by the service, in dependency order.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Subscription{},
		&models.SubscriptionLog{},
		&models.ActivationCode{},
		&models.Payment{},
		&models.PaymentLog{},
		&models.GatewayCallbackLog{},
		&models.Message{},
		&models.MessageDelivery{},
		&models.Notification{},
		&models.SubscriptionDailySnapshot{},
	}
}

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing database connection pool")
			return sqlDB.Close()
		},
	})
}

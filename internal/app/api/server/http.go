package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/api/handlers"
	mw "github.com/alanwang5210/telegram-bot/internal/app/api/middleware"
	"github.com/alanwang5210/telegram-bot/internal/app/service/activation"
	"github.com/alanwang5210/telegram-bot/internal/app/service/broadcast"
	"github.com/alanwang5210/telegram-bot/internal/app/service/callback"
	"github.com/alanwang5210/telegram-bot/internal/app/service/gatewaylog"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/notification"
	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/app/service/statistics"
	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	cfgpkg "github.com/alanwang5210/telegram-bot/pkg/config"
	metrics "github.com/alanwang5210/telegram-bot/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg != nil && cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Log           *zap.SugaredLogger
	Config        *cfgpkg.Config
	Registry      *prometheus.Registry
	Membership    *membership.Service
	Users         *user.Service
	Codes         *activation.Service
	Messages      *broadcast.Service
	Notifications *notification.Service
	Payments      *payment.Service
	Statistics    *statistics.Service
	GatewayLogs   *gatewaylog.Service
	Callbacks     *callback.Handler
}

func registerRoutes(r *gin.Engine, p routeParams) {
	log := p.Log
	// Prometheus metrics; served on metrics_addr when set, else on the API engine
	prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
		ReqCntURLLabelMappingFn: func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return c.Request.URL.Path
		},
		Logger:   log,
		Registry: p.Registry,
	})
	if p.Config != nil && p.Config.MetricsAddr != "" {
		prom.SetListenAddress(p.Config.MetricsAddr)
		log.Infow("metrics started", "addr", p.Config.MetricsAddr)
	}
	prom.Use(r)

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterMemberRoutes(apiV1, p.Membership, p.Users, p.Messages, p.Payments, log)

	// Admin APIs
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), &handlers.AdminDeps{
		Membership:    p.Membership,
		Codes:         p.Codes,
		Messages:      p.Messages,
		Notifications: p.Notifications,
		Payments:      p.Payments,
		Statistics:    p.Statistics,
		GatewayLogs:   p.GatewayLogs,
		Log:           log,
	})

	// Gateway callbacks
	apiV2Payment := r.Group("/api/v2/payment")
	apiV2Payment.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterPaymentWebhookRoutes(apiV2Payment, p.Callbacks, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)

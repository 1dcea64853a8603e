package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"raffle/internal/api"
	"raffle/internal/config"
	"raffle/internal/constants"
	"raffle/internal/logger"
	"raffle/internal/raffle"
	"raffle/pkg/bootstrap"
	"raffle/pkg/health"
	"raffle/pkg/logging"
	"raffle/pkg/metrics"
	"raffle/pkg/middleware"
	"raffle/pkg/ratelimit"
	"raffle/pkg/tracing"
)

const serviceName = "raffle"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	backend        *bootstrap.AuditBackend
	limiter        *ratelimit.Registry
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.Provider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	log = logger.WithService(log, serviceName)
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	backend, err := a.dbConnector.InitAuditStore(ctx, a.Health)
	if err != nil {
		return fmt.Errorf("failed to initialize audit store: %w", err)
	}
	a.backend = backend

	if err := a.InitBroker(); err != nil {
		a.Logger.WarnwCtx(ctx, "Draw events disabled", "error", err)
	}

	a.initRouter(ctx)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) initRouter(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName, "/health", "/metrics"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.API.RateLimit.Enabled {
		rlCfg := ratelimit.FromConfig(a.Config.API.RateLimit)
		a.limiter = ratelimit.NewRegistry(rlCfg)
		router.Use(a.limiter.Middleware())
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rlCfg.RPS, "burst", rlCfg.Burst)
	}

	opts := []raffle.Option{raffle.WithMaxWinners(a.Config.Draw.MaxWinners)}
	if n := a.Notifier(); n != nil {
		opts = append(opts, raffle.WithNotifier(n))
	}
	orchestrator := raffle.New(a.backend.Store, a.Logger, opts...)

	handler := api.NewHandler(orchestrator, a.backend.Store, api.Options{
		MaxPopulation:  a.Config.API.MaxPopulation,
		DefaultEventID: a.Config.Draw.DefaultEventID,
		Epsilon:        a.Config.Draw.Epsilon,
	}, a.Logger)
	handler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		h := a.Health.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port, "audit_backend", a.Config.Audit.Backend)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Run(gCtx)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down raffle service")

	return a.Base.Shutdown(ctx, a.tracerProvider.Shutdown, a.backend.Close)
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/gdsec-test/dcu-phishstory-service/internal/backend"
	"github.com/gdsec-test/dcu-phishstory-service/internal/config"
	"github.com/gdsec-test/dcu-phishstory-service/internal/handler"
	"github.com/gdsec-test/dcu-phishstory-service/internal/platform/natsclient"
	"github.com/gdsec-test/dcu-phishstory-service/internal/platform/secrets"
	"github.com/gdsec-test/dcu-phishstory-service/internal/platform/telemetry"
	"github.com/gdsec-test/dcu-phishstory-service/internal/queue"
	"github.com/gdsec-test/dcu-phishstory-service/internal/store"
	"github.com/gdsec-test/dcu-phishstory-service/internal/ticket"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	env := os.Getenv("sysenv")
	cfg, err := config.Load(env)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// ── OpenTelemetry ──────────────────────────────────────────────────────
	if cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "dcu-phishstory-service", cfg.OTELEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", cfg.OTELEndpoint))
		}
		if mp, err := telemetry.InitMeterProvider(context.Background(), "dcu-phishstory-service", cfg.OTELEndpoint); err == nil {
			defer mp.Shutdown(context.Background())
		}
	}

	// ── Vault secrets ──────────────────────────────────────────────────────
	vaultAddr := os.Getenv("VAULT_ADDR")
	if vaultAddr == "" {
		vaultAddr = "http://localhost:8200"
	}
	vaultToken := os.Getenv("VAULT_TOKEN")
	if vaultToken == "" {
		vaultToken = "root"
	}
	secretPath := os.Getenv("VAULT_SECRET_PATH")
	if secretPath == "" {
		secretPath = "secret/data/dcu/phishstory-service"
	}

	if vaultManager, err := secrets.NewSecretManager(vaultAddr, vaultToken); err != nil {
		logger.Warn("Vault connection failed, using configured defaults", zap.Error(err))
	} else if pass, err := vaultManager.BackendPassword(secretPath); err != nil {
		logger.Warn("failed to load backend password from Vault, using configured default", zap.Error(err))
	} else {
		cfg.BackendPass = pass
	}

	// ── Database ───────────────────────────────────────────────────────────
	poolCfg, err := pgxpool.ParseConfig(cfg.PGURL)
	if err != nil {
		logger.Fatal("failed to parse PG_URL", zap.Error(err))
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database (OTel-instrumented)")

	// ── Backend Adapter ─────────────────────────────────────────────────────
	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendUser, cfg.BackendPass, time.Duration(cfg.BackendTimeoutS)*time.Second)

	// ── Incident Store Adapter ───────────────────────────────────────────────
	incidentStore := store.NewPGStore(pool, cfg.UserGenDomains)

	// ── Task Publisher (NATS JetStream, single or dual-broker quorum) ───────
	primaryNATS, err := natsclient.NewClient(cfg.BrokerURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to primary broker", zap.Error(err))
	}
	defer primaryNATS.Close()

	var secondaryNATS *natsclient.Client
	if cfg.QuorumQueue && len(cfg.MultipleBrokers) > 1 {
		secondaryNATS, err = natsclient.NewClient(cfg.MultipleBrokers[1], logger)
		if err != nil {
			logger.Fatal("failed to connect to secondary broker", zap.Error(err))
		}
		defer secondaryNATS.Close()
	}

	subjects := []string{
		natsclient.StreamTasks + "." + cfg.MiddlewareQueue,
		natsclient.StreamTasks + "." + cfg.GDBSQueue,
	}
	if err := primaryNATS.ProvisionStreams(subjects); err != nil {
		logger.Error("failed to provision task stream", zap.Error(err))
	}

	publisher := queue.NewPublisher(primaryNATS, secondaryNATS, cfg.QuorumQueue, cfg.MiddlewareQueue, cfg.GDBSQueue, logger)

	// ── Ticket Engine ─────────────────────────────────────────────────────
	engine := ticket.NewEngine(backendClient, incidentStore, publisher, cfg)

	// ── HTTP Server ───────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("dcu-phishstory-service"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request",
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler.RegisterRoutes(e, engine, logger, 10)

	go func() {
		logger.Info("dcu-phishstory-service HTTP server listening on :8080")
		if err := e.Start(":8080"); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	// ── Graceful Shutdown ─────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Echo shutdown error", zap.Error(err))
	}
	logger.Info("dcu-phishstory-service shut down cleanly")
}

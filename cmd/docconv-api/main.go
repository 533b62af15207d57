// docconv-api — HTTP-сервис конвертации документов Word в PDF.
//
// Сервис:
//   - Принимает файл через POST /api/v1/convert (и /api/convert для браузерной формы)
//   - Проводит его через API вендора: auth → create task → upload → execute → poll → download
//   - Отдаёт PDF в ответе и удаляет временный файл
//
// Postgres (история) и RabbitMQ (события) опциональны: без DB_URL и
// RABBITMQ_URL сервис работает только как конвертер.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/docconv/internal/api"
	"github.com/shaiso/docconv/internal/config"
	"github.com/shaiso/docconv/internal/converter"
	"github.com/shaiso/docconv/internal/janitor"
	"github.com/shaiso/docconv/internal/mq"
	"github.com/shaiso/docconv/internal/repo"
	"github.com/shaiso/docconv/internal/telemetry"
	"github.com/shaiso/docconv/internal/vendor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: $"+config.EnvConfigPath+")")
	flag.Parse()

	// Инициализируем structured logging
	logger := telemetry.WithService(telemetry.SetupLogger(), "docconv-api")
	logger.Info("starting docconv-api")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.HasVendorCredentials() {
		logger.Warn("vendor credentials are not set, conversions will fail at authenticate")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Вендор и оркестратор
	client := vendor.NewClient(vendor.Config{
		BaseURL:   cfg.Vendor.BaseURL,
		PublicKey: cfg.Vendor.PublicKey,
		SecretKey: cfg.Vendor.SecretKey,
		APIKey:    cfg.Vendor.APIKey,
		Operation: cfg.Vendor.Operation,
		Timeout:   cfg.Vendor.Timeout,
		Logger:    logger,
	})

	orchestrator := converter.New(converter.Config{
		Vendor:          client,
		PollInterval:    cfg.Poll.Interval,
		MaxPollAttempts: cfg.Poll.MaxAttempts,
		Logger:          logger,
	})
	logger.Info("converter ready",
		"operation", client.Operation(),
		"poll_interval", cfg.Poll.Interval,
		"max_poll_attempts", cfg.Poll.MaxAttempts,
		"max_wait", orchestrator.MaxWait(),
	)

	if err := os.MkdirAll(cfg.Server.TempDir, 0o700); err != nil {
		logger.Error("failed to create temp dir", "dir", cfg.Server.TempDir, "error", err)
		os.Exit(1)
	}
	stager := converter.NewStager(cfg.Server.TempDir)

	handlerCfg := api.Config{
		Converter:       orchestrator,
		Stager:          stager,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		CORSAllowOrigin: cfg.Server.CORSAllowOrigin,
		Logger:          logger,
	}

	// История (опционально)
	if cfg.Storage.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Warn("database not available, history disabled", "error", err)
		} else {
			defer pool.Close()
			conversions := repo.NewConversionRepo(pool)
			if err := conversions.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to ensure schema, history disabled", "error", err)
			} else {
				handlerCfg.History = conversions
				logger.Info("database connected")
			}
		}
	}

	// События (опционально)
	if cfg.Storage.RabbitMQURL != "" {
		mqConn, err := mq.NewConnection(cfg.Storage.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			handlerCfg.Events = mq.NewPublisher(mqConn, logger)
			logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())
		}
	}

	// Очистка брошенных staged-файлов
	sweeper, err := janitor.New(janitor.Config{
		Dir:      cfg.Server.TempDir,
		Schedule: cfg.Janitor.Schedule,
		MaxAge:   cfg.Janitor.MaxAge,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create janitor", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr, "temp_dir", stager.Dir())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Shutdown дожидается выполняющихся конвертаций в пределах таймаута
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sweeper.Stop(shutdownCtx)

	logger.Info("stopped")
}

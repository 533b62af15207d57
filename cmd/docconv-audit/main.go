// docconv-audit — ведёт историю конвертаций.
//
// Сервис:
//   - Получает события conversion.finished из RabbitMQ
//   - Сохраняет их в Postgres (таблица conversions)
//   - Битые сообщения отправляет в DLQ
//
// История читается через GET /api/v1/conversions в docconv-api.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/docconv/internal/audit"
	"github.com/shaiso/docconv/internal/config"
	"github.com/shaiso/docconv/internal/mq"
	"github.com/shaiso/docconv/internal/repo"
	"github.com/shaiso/docconv/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: $"+config.EnvConfigPath+")")
	flag.Parse()

	// Инициализируем structured logging
	logger := telemetry.WithService(telemetry.SetupLogger(), "docconv-audit")
	logger.Info("starting docconv-audit")

	cfg, err := config.LoadAudit(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	conversions := repo.NewConversionRepo(pool)
	if err := conversions.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.Storage.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())

	recorder := audit.New(audit.Config{
		Store:  conversions,
		Conn:   mqConn,
		Logger: logger,
	})

	if err := recorder.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Server.AuditPort)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	recorder.Stop()
	server.Shutdown(context.Background())
	logger.Info("docconv-audit stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaceboy202105/chatbot-test/internal/adapter/llm"
	"github.com/spaceboy202105/chatbot-test/internal/config"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
	"github.com/spaceboy202105/chatbot-test/internal/metrics"
	"github.com/spaceboy202105/chatbot-test/internal/policy"
	"github.com/spaceboy202105/chatbot-test/internal/repository"
	"github.com/spaceboy202105/chatbot-test/internal/service"
	transporthttp "github.com/spaceboy202105/chatbot-test/internal/transport/http"
	"github.com/spaceboy202105/chatbot-test/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg, os.Stderr)
	slog.SetDefault(logger)

	logger.Info("starting chatgate",
		"version", service.Version,
		"http_port", cfg.HTTPPort,
		"store", cfg.StoreBackend,
		"mock_mode", cfg.MockMode(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	// Initialize adapters and catalog
	registry, err := llm.NewRegistryFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize adapters: %w", err)
	}
	for _, info := range registry.Describe() {
		logger.Info("adapter registered", "provider", info.Provider, "model", info.Model)
	}

	// Initialize policy engine
	policyEngine, err := policy.Load(ctx, cfg.PolicyPath, cfg.MaxMessageChars)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	collector := metrics.New()

	// Initialize service
	svc := service.New(store, registry, cfg, policyEngine,
		service.WithLogger(logger),
		service.WithMetrics(collector),
	)

	// Initialize WebSocket hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(logger)
	go hub.Run(hubCtx)
	wsServer := ws.NewServer(cfg, hub, svc, logger)

	server := transporthttp.NewServer(cfg, svc, wsServer, collector, logger)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("API started", "port", cfg.HTTPPort, "prefix", cfg.APIPrefix)

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("shutting down chatgate")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", "error", err)
	}

	logger.Info("chatgate stopped")
	return nil
}

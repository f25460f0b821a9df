// Package main provides the entry point for the read-only backtest and
// optimization results API server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-quant/futures-backtester/internal/api"
	"github.com/atlas-quant/futures-backtester/pkg/config"
	"github.com/atlas-quant/futures-backtester/pkg/logging"
	"github.com/atlas-quant/futures-backtester/pkg/storage"
)

func main() {
	configDir := flag.String("config", "./config", "Configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		panic(err)
	}

	logger, err := logging.Setup(cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("server: failed to open database", zap.Error(err))
	}
	defer store.Close()

	server := api.NewServer(logger, api.Settings{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}, store)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server: serve error", zap.Error(err))
		}
	}()

	logger.Info("server: started",
		zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port), zap.String("db", cfg.Database.Path))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("server: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server: error during shutdown", zap.Error(err))
	}
	logger.Info("server: stopped")
}

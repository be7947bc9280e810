package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/weavechat/weavechat/pkg/config"
	"github.com/weavechat/weavechat/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	if path, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Failed to write default config", "path", path, "error", err)
	}

	cfg, path, err := config.Load()
	if err != nil {
		logger.Warn("Failed to load config; falling back to defaults", "path", path, "error", err)
		cfg = &config.AppConfig{}
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
}

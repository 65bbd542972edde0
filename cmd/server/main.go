// WalletGuard - transaction risk scoring and phishing detection for wallets
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/walletguard/internal/config"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting walletguard",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"network_id", cfg.DefaultNetworkID,
		"advisory", cfg.AdvisoryEnabled(),
		"postgres", cfg.DatabaseURL != "",
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(cfg, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

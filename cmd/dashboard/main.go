// Dashboard server: authentication core and protected API surface for the
// personal dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SeanM743/PersonalWebsite-sub006/internal/config"
	"github.com/SeanM743/PersonalWebsite-sub006/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("DASHBOARD_CONFIG"), "path to JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}
	defer srv.Close()

	created, password, err := srv.Bootstrap()
	if err != nil {
		logger.Fatal("failed to seed admin account", zap.Error(err))
	}
	if created {
		if password != "" {
			// Shown once; change it after first login.
			logger.Warn("seeded admin account with generated password",
				zap.String("username", "admin"),
				zap.String("password", password))
		} else {
			logger.Info("seeded admin account", zap.String("username", "admin"))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func buildLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

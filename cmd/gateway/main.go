// Command gateway runs the API gateway: it authenticates, rate limits
// and routes inbound requests to the backend services declared in its
// configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloudgateway/internal/app"
	"cloudgateway/internal/config"
	"cloudgateway/internal/storage/redis"
	"cloudgateway/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "configs/gateway.yaml", "path to the gateway configuration file")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := redis.NewStore(redis.Config{
		Addr:     cfg.Gateway.Redis.Addr,
		Password: cfg.Gateway.Redis.Password,
		DB:       cfg.Gateway.Redis.DB,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway := app.New(cfg, store, metrics.New(), logger)

	logger.Info("starting gateway",
		"version", app.Version,
		"addr", cfg.Gateway.Server.Addr(),
		"routes", len(cfg.Gateway.Routes),
		"services", len(cfg.Gateway.Services),
	)

	return gateway.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

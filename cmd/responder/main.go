package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/V-Sekai-fire/forge/bus"
	"github.com/V-Sekai-fire/forge/codec"
	"github.com/V-Sekai-fire/forge/envconfig"
	"github.com/V-Sekai-fire/forge/inference"
	"github.com/V-Sekai-fire/forge/logutil"
	"github.com/V-Sekai-fire/forge/metrics"
	"github.com/V-Sekai-fire/forge/responder"
	"github.com/V-Sekai-fire/forge/server"
	"github.com/V-Sekai-fire/forge/zimage"
)

func main() {
	if err := envconfig.LoadDotEnv(".env"); err != nil {
		slog.Warn("ignoring .env", "error", err)
	}
	cfg := envconfig.Load()

	logger := logutil.NewLogger(os.Stderr, logutil.Level(cfg.Debug))
	slog.SetDefault(logger)
	slog.Info("responder config", "env", cfg.Values())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("responder failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg envconfig.Config, logger *slog.Logger) error {
	c, err := codec.ForName(cfg.Encoding)
	if err != nil {
		return err
	}

	session, err := bus.Open(ctx, bus.Config{
		Broker:         cfg.Broker,
		ClientIDPrefix: cfg.ClientIDPrefix,
		ConnectTimeout: cfg.ConnectTimeout,
		WillToken:      zimage.LivelinessToken,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("closing bus session", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := responder.New(
		inference.NewPlaceholder(cfg.SimulatedDelay, cfg.OutputDir),
		c,
		responder.WithMetrics(metrics.New(reg)),
		responder.WithLogger(logger),
	)

	var services *server.Services
	if cfg.StatusAddr != "" {
		services = server.NewServices()
		watch, err := session.WatchLiveliness(ctx, "forge/services/**", services.Update)
		if err != nil {
			return err
		}
		defer watch.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Serve(gctx, session)
	})
	if cfg.StatusAddr != "" {
		g.Go(func() error {
			return server.Serve(gctx, cfg.StatusAddr, server.NewHandler(session, reg, services))
		})
	}

	return g.Wait()
}

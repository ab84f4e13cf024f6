package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecraft"
	"github.com/hupe1980/vecraft/internal/config"
	"github.com/hupe1980/vecraft/resource"
	"github.com/hupe1980/vecraft/server"
	"github.com/hupe1980/vecraft/telemetry"
	"github.com/hupe1980/vecraft/wal"
)

type serveFlags struct {
	configFile  string
	listenAddr  string
	walPath     string
	noWAL       bool
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC server",
		Long: `Start the gRPC server. Configuration is read from --config, then
VECRAFT_* environment variables, then command line flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&f.listenAddr, "listen", "", "gRPC listen address")
	cmd.Flags().StringVar(&f.walPath, "wal", "", "durability log path")
	cmd.Flags().BoolVar(&f.noWAL, "no-wal", false, "disable the durability log (state is lost on restart)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) {
	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = f.listenAddr
	}
	if cmd.Flags().Changed("wal") {
		cfg.WAL.Enabled = true
		cfg.WAL.Path = f.walPath
	}
	if f.noWAL {
		cfg.WAL.Enabled = false
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = f.metricsAddr
	}
}

func newLogger(cfg *config.Config) *vecraft.Logger {
	level, _ := cfg.LogLevel()
	if cfg.Log.Format == "json" {
		return vecraft.NewJSONLogger(level)
	}
	return vecraft.NewTextLogger(level)
}

func dbOptions(cfg *config.Config, logger *vecraft.Logger, collector *telemetry.Collector) []vecraft.Option {
	opts := []vecraft.Option{
		vecraft.WithLogger(logger),
		vecraft.WithQueryTimeout(cfg.Query.Timeout),
	}
	if cfg.WAL.Enabled {
		durability, _ := cfg.WALDurability()
		opts = append(opts, vecraft.WithWAL(cfg.WAL.Path, func(o *wal.Options) {
			o.Durability = durability
		}))
	}
	if q := cfg.Query; q.MaxConcurrent > 0 || q.QueriesPerSecond > 0 || q.MemoryLimitBytes > 0 {
		opts = append(opts, vecraft.WithResourceLimits(resource.Config{
			MaxConcurrentQueries: q.MaxConcurrent,
			QueriesPerSecond:     q.QueriesPerSecond,
			Burst:                q.Burst,
			MemoryLimitBytes:     q.MemoryLimitBytes,
		}))
	}
	if collector != nil {
		opts = append(opts,
			vecraft.WithMetricsCollector(collector),
			vecraft.WithEngineObserver(collector),
		)
	}
	return opts
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	var collector *telemetry.Collector
	if cfg.Metrics.Enabled {
		collector = telemetry.NewCollector()
	}

	db, err := vecraft.Open(ctx, dbOptions(cfg, logger, collector)...)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}()

	switch {
	case !db.Logged():
		logger.Warn("durability log disabled, mutations will not survive a restart")
	case !db.Durable():
		logger.Warn("durability log is async, acknowledged mutations may be lost on crash")
	}

	srvOpts := []server.Option{server.WithLogger(logger.Logger)}
	if collector != nil {
		collector.Refresh(db.Stats())
		srvOpts = append(srvOpts, server.WithRequestRecorder(collector))
	}
	srv := server.New(db, srvOpts)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, lis)
	})
	if collector != nil {
		g.Go(func() error {
			return collector.Serve(gctx, cfg.Metrics.Addr, logger.With(slog.String("component", "metrics")))
		})
	}
	return g.Wait()
}

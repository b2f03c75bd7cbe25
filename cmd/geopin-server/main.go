package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/geopin/internal/app"
	"github.com/mohammed-shakir/geopin/internal/core/config"
	"github.com/mohammed-shakir/geopin/internal/core/observability"
	"github.com/mohammed-shakir/geopin/internal/core/server"
	"github.com/mohammed-shakir/geopin/internal/logger"
	"github.com/mohammed-shakir/geopin/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", "", "dotenv file to load (defaults to .env)")
	addr := flag.String("addr", "", "listen address, overrides ADDR")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	if *addr != "" {
		cfg.Addr = strings.TrimSpace(*addr)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "geopin",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	var metricsHandler http.Handler
	var p *metrics.Provider
	if cfg.MetricsEnabled {
		p = metrics.Init(metrics.Config{
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
			Schemes:   cfg.Schemes,
			CacheMode: string(cfg.CacheMode),
		})
		observability.Init(p.Registerer(), true)
		metricsHandler = p.Handler()
	} else {
		observability.Init(nil, false)
	}
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting geopin",
		"addr", cfg.Addr,
		"version", Version,
		"schemes", cfg.Schemes,
		"cache_mode", cfg.CacheMode,
		"enrichment", cfg.Enrichment.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.Options{Logger: appLog, ZL: zl}
	if p != nil {
		opts.Register = p.Registerer()
	}
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		appLog.Error("setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Error("shutdown", "err", err)
		}
	}()

	if err := a.Start(ctx); err != nil {
		appLog.Error("start failed", "err", err)
		return 1
	}

	err = server.Run(ctx, cfg, appLog, server.Deps{
		Encoder: a.Encoder,
		Ready:   a.Ready(),
		Checks:  a.Checks,
		Metrics: metricsHandler,
	})
	if err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

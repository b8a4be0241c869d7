// Package main implements the worldtz web server: the world clock dashboard and
// its JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/codeGROOVE-dev/worldtz/pkg/config"
	"github.com/codeGROOVE-dev/worldtz/pkg/country"
	"github.com/codeGROOVE-dev/worldtz/pkg/dashboard"
	"github.com/codeGROOVE-dev/worldtz/pkg/history"
	"github.com/codeGROOVE-dev/worldtz/pkg/httpcache"
	"github.com/codeGROOVE-dev/worldtz/pkg/locale"
	"github.com/codeGROOVE-dev/worldtz/pkg/metrics"
	"github.com/codeGROOVE-dev/worldtz/pkg/tzconvert"
	"github.com/codeGROOVE-dev/worldtz/pkg/zonetab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const version = "worldtz Server v1.0.0"

func main() {
	cfg := config.Default()
	fs := flag.NewFlagSet("worldtz-server", flag.ExitOnError)
	cfg.RegisterCommon(fs)
	cfg.RegisterServer(fs)
	showVersion := fs.Bool("version", false, "Show version")

	if err := config.Parse(fs, os.Args[1:], ".env", os.LookupEnv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(version)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(cfg)

	// Log configuration
	logger.Info("Server configuration",
		"port", cfg.Port,
		"verbose", cfg.Verbose,
		"default_countries", cfg.CountryA+"/"+cfg.CountryB,
		"lang", cfg.Language,
		"zonetab", cfg.ZoneTab,
		"session_ttl", cfg.SessionTTL,
		"asset_timeout", cfg.AssetTimeout,
		"rate_limit", cfg.RateLimit,
		"has_hero_image", cfg.HeroImageURL != "",
		"has_avatar", cfg.AvatarURL != "")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(cfg, logger, reg)
	if err != nil {
		logger.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if srv.limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := srv.limiter.sweep(); n > 0 {
						logger.Debug("Rate limiter swept idle clients", "removed", n)
					}
				}
			}
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newServer wires every component from cfg.
func newServer(cfg config.Config, logger *slog.Logger, reg *prometheus.Registry) (*server, error) {
	provider := zonetab.Bundled()
	if cfg.ZoneTab != "" {
		var err error
		if provider, err = zonetab.LoadFile(cfg.ZoneTab); err != nil {
			return nil, err
		}
	}

	locales, err := locale.New(logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)
	registry := country.NewRegistry()
	histories := history.NewStore(cfg.MaxSessions, cfg.SessionTTL)
	converter := tzconvert.New(provider,
		tzconvert.WithLogger(logger),
		tzconvert.WithLocationCacheSize(cfg.LocationCache),
	)
	fetcher := httpcache.NewFetcher(cfg.AssetTTL, logger,
		httpcache.WithHTTPClient(&http.Client{Timeout: cfg.AssetTimeout}),
	)

	svc := dashboard.New(converter, registry, locales,
		dashboard.WithLogger(logger),
		dashboard.WithHistory(histories),
		dashboard.WithAssets(fetcher, cfg.HeroImageURL, cfg.AvatarURL),
		dashboard.WithAssetTimeout(cfg.AssetTimeout),
		dashboard.WithMetrics(m),
	)

	var limiter *rateLimiter
	if cfg.RateLimit > 0 {
		limiter = newRateLimiter(cfg.RateLimit, time.Minute)
	}

	return &server{
		gatherer:  reg,
		zones:     provider,
		cfg:       cfg,
		dashboard: svc,
		converter: converter,
		registry:  registry,
		histories: histories,
		locales:   locales,
		metrics:   m,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

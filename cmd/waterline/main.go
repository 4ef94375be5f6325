package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/waterline-io/waterline/internal/api"
	"github.com/waterline-io/waterline/internal/baseline"
	"github.com/waterline-io/waterline/internal/buildinfo"
	"github.com/waterline-io/waterline/internal/config"
	"github.com/waterline-io/waterline/internal/dashboard"
	"github.com/waterline-io/waterline/internal/hydraulic"
	"github.com/waterline-io/waterline/internal/monitor"
	"github.com/waterline-io/waterline/internal/retention"
	"github.com/waterline-io/waterline/internal/service"
	"github.com/waterline-io/waterline/internal/simulator"
	"github.com/waterline-io/waterline/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load and validate environment config
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if config.IsWeakToken(envCfg.AdminToken) {
		return errors.New("WATERLINE_ADMIN_TOKEN is too weak; use a longer random token")
	}
	if envCfg.AdminToken == "" {
		log.Printf("[main] warning: admin token is empty, API authentication is disabled")
	}

	// 2. Open the store (migrations run here)
	if err := os.MkdirAll(envCfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(filepath.Join(envCfg.DataDir, "waterline.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// 3. Wire the registry, loops, aggregator and retention sweeper
	reg := baseline.NewRegistry(st, hydraulic.Load, nil)
	sim := simulator.New(st, reg, nil)
	mon := monitor.New(st, reg, hydraulic.Load, nil)
	agg, err := dashboard.NewAggregator(st, nil, envCfg.DashboardCacheTTL, envCfg.DashboardCacheCapacity)
	if err != nil {
		return fmt.Errorf("dashboard aggregator: %w", err)
	}
	defer agg.Close()

	sweeper := retention.New(st, nil, envCfg.RetentionSchedule, envCfg.RetentionMaxAge)
	sweeper.Start()
	defer sweeper.Stop()

	cp := service.New(st, reg, sim, mon, agg, hydraulic.Load, nil)

	// 4. Create and start the API server
	srv := api.NewServer(envCfg.ListenAddress, envCfg.APIPort, envCfg.AdminToken,
		cp, int64(envCfg.APIMaxBodyBytes))

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[main] waterline %s API server starting on %s:%d",
			buildinfo.Version, envCfg.ListenAddress, envCfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// 5. Graceful shutdown: server first, then the loops, then the store
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Printf("[main] received signal %s, shutting down...", sig)
	case err := <-serveErr:
		return fmt.Errorf("api server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] server shutdown error: %v", err)
	}

	if err := sim.Stop(); err != nil && !errors.Is(err, simulator.ErrNotRunning) {
		log.Printf("[main] simulator stop error: %v", err)
	}
	if err := mon.Stop(); err != nil && !errors.Is(err, monitor.ErrNotRunning) {
		log.Printf("[main] monitor stop error: %v", err)
	}

	log.Printf("[main] stopped")
	return nil
}

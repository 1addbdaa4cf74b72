package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scc-project/scc/internal/api"
	"github.com/scc-project/scc/internal/cli"
	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/db"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/health"
	"github.com/scc-project/scc/internal/network"
	"github.com/scc-project/scc/internal/scheduler"
	"github.com/scc-project/scc/internal/telemetry"
	"github.com/scc-project/scc/internal/util"
)

type serverFlags struct {
	port    int
	mode    int
	console bool
}

func newServerCmd() *cobra.Command {
	var flags serverFlags
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				srv := cfg.GetServer()
				if cmd.Flags().Changed("port") {
					srv.Port = flags.port
				}
				if cmd.Flags().Changed("mode") {
					srv.Mode = flags.mode
				}
				cfg.SetServer(srv)
			})
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, flags.console)
		},
	}

	cmd.Flags().IntVarP(&flags.port, "port", "p", config.DefaultGamePort, "game port")
	cmd.Flags().IntVarP(&flags.mode, "mode", "m", config.ModeSolo, "1 plays against the house, 2 pairs two players")
	cmd.Flags().BoolVar(&flags.console, "console", false, "read operator commands from stdin")
	return cmd
}

func runServer(parent context.Context, cfg *config.Config, console bool) error {
	logger := util.ComponentLogger("main")
	srv := cfg.GetServer()

	fmt.Fprintf(os.Stderr, Banner, AppVersion)
	fmt.Fprintln(os.Stderr)

	sysInfo := util.GetSystemInfo()
	logger.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Str("hostname", sysInfo.Hostname).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Int("port", srv.Port).
		Int("mode", srv.Mode).
		Msg("starting scc server")

	if !config.IsPortAvailable(srv.Port) {
		logger.Warn().Int("port", srv.Port).Msg("game port is busy, will keep retrying")
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	eventBus := events.NewEventBus()
	registry := game.NewRegistry(cfg.GetGame().InitialGems)
	listener := network.NewTCPListener(cfg, eventBus, registry)

	// Interfaces stay nil when the history is off so consumers see it as
	// absent.
	var (
		history api.HandHistory
		pruner  scheduler.Pruner
	)
	if cfg.Database.Enabled {
		store, err := db.NewHandStore(cfg.Database.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to open hand history, recording disabled")
		} else {
			defer store.Close()
			store.Subscribe(eventBus)
			history, pruner = store, store
		}
	}

	var mqttHandler *telemetry.MQTTHandler
	if cfg.MQTT.Enabled {
		h, err := telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		} else {
			mqttHandler = h
		}
	}

	healthMgr := health.NewManager(cfg, health.HostProbes())
	sched := scheduler.NewScheduler(cfg, eventBus, listener, pruner)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, listener, history)
		apiServer.SetHealth(healthMgr)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := startWithRetry(ctx, "TCP listener", listener.Start, 10); err != nil {
			errCh <- fmt.Errorf("tcp listener: %w", err)
		}
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Int("port", cfg.API.Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 10); err != nil {
				logger.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		healthMgr.Start(ctx)
	}()

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	if console {
		operator := cli.NewCLI(listener, history, cancel, os.Stdin, os.Stdout)
		// Not tracked by wg: a read on stdin cannot be interrupted.
		go operator.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("critical error, initiating shutdown")
		runErr = err
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	}

	logger.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	// Drains pending hand records before the store closes.
	eventBus.Stop()

	logger.Info().Msg("scc server stopped")
	return runErr
}

// startWithRetry retries startFn on bind errors at a fixed interval, so a
// restart can wait for the previous process to release its ports.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return nil
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			logger := util.ComponentLogger(name)
			logger.Warn().
				Err(lastErr).
				Int("retry", i+1).
				Int("max", maxRetries).
				Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mstrel/dns-fanout/internal/api"
	"github.com/mstrel/dns-fanout/internal/config"
	"github.com/mstrel/dns-fanout/internal/fanout"
	"github.com/mstrel/dns-fanout/internal/logger"
	"github.com/mstrel/dns-fanout/internal/metrics"
	"github.com/mstrel/dns-fanout/internal/orphan"
	"github.com/mstrel/dns-fanout/internal/provider"
	"github.com/mstrel/dns-fanout/internal/provider/cloudflare"
	"github.com/mstrel/dns-fanout/internal/record"
	"github.com/mstrel/dns-fanout/internal/settings"
	"github.com/mstrel/dns-fanout/internal/store"
)

// NewServeCommand creates the serve subcommand, running the API server
// and the periodic orphan sweep until interrupted.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the record distribution service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	return cmd
}

// NewSweepCommand creates the sweep subcommand for a one-shot orphan
// deletion pass.
func NewSweepCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one orphan deletion sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			res, err := app.orphan.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "examined=%d deleted=%d failed=%d skipped=%d\n",
				res.Examined, res.Deleted, res.Failed, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	return cmd
}

type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	store    *store.Store
	settings *settings.Service
	registry *provider.Registry
	executor *fanout.Executor
	orphan   *orphan.Manager
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	m := metrics.New(true)

	st, err := store.New(cfg.StorePath, m)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	sv := settings.New(st, cfg)

	registry, err := buildRegistry(cfg, m)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		metrics:  m,
		store:    st,
		settings: sv,
		registry: registry,
		executor: fanout.New(registry, cfg.Fanout.Concurrency, m),
		orphan:   orphan.New(st, registry, sv, m),
	}, nil
}

func buildRegistry(cfg *config.Config, m *metrics.Metrics) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, pc := range cfg.Providers {
		caps := provider.Capabilities{
			TTLMin:          pc.Capabilities.TTLMin,
			TTLMax:          pc.Capabilities.TTLMax,
			TTLDefault:      pc.Capabilities.TTLDefault,
			SupportsProxied: pc.Capabilities.Proxied,
		}
		for _, rt := range pc.Capabilities.RecordTypes {
			caps.SupportedTypes = append(caps.SupportedTypes, record.Type(rt))
		}
		if caps.TTLMin > caps.TTLDefault || caps.TTLDefault > caps.TTLMax {
			return nil, fmt.Errorf("provider %s: ttl bounds must satisfy min <= default <= max", pc.ID)
		}

		p := provider.Provider{
			ID:           pc.ID,
			Name:         pc.Name,
			Type:         pc.Type,
			Enabled:      pc.IsEnabled(),
			Zone:         pc.Zone,
			Capabilities: caps,
		}

		if !p.Enabled {
			registry.Register(p, nil)
			continue
		}

		switch pc.Type {
		case "cloudflare":
			client, err := cloudflare.New(pc.ID, pc.Token, []string{pc.Zone}, caps, m)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", pc.ID, err)
			}
			registry.Register(p, client)
		default:
			return nil, fmt.Errorf("provider %s: unsupported type %q", pc.ID, pc.Type)
		}
	}
	return registry, nil
}

func runServe(configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	server := api.New(a.cfg.HTTP.Addr, api.Deps{
		Store:    a.store,
		Settings: a.settings,
		Registry: a.registry,
		Executor: a.executor,
		Orphan:   a.orphan,
		Metrics:  a.metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting http server", "address", a.cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Http server failed", "error", err)
		}
	}()

	slog.Info("Starting dns-fanout service", "providers", len(a.registry.Providers()))

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go runSweepLoop(ctx, wg, a.orphan, a.cfg.SweepInterval)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	shutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServer()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Http server shutdown error", "error", err)
	}

	wg.Wait()
	slog.Info("Service shutdown complete")
	return nil
}

func runSweepLoop(ctx context.Context, wg *sync.WaitGroup, manager *orphan.Manager, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if res, err := manager.Sweep(ctx); err != nil {
			slog.Error("Sweep failed", "error", err)
		} else if res.Examined > 0 {
			slog.Info("Sweep completed",
				"examined", res.Examined,
				"deleted", res.Deleted,
				"failed", res.Failed,
				"skipped", res.Skipped)
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slog.Info("Stopping sweep loop")
			return
		}
	}
}

// automation-core is a smart-home automation engine: it subscribes to
// device telemetry over MQTT, maintains the latest known state of every
// device, evaluates declarative rules against incoming messages, and
// publishes command messages that drive actuators. An HTTP API exposes
// device definitions, live state, rule CRUD, command history, and a
// consolidated dashboard view.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ctrlhome/automation-core/internal/api"
	"github.com/ctrlhome/automation-core/internal/bus"
	"github.com/ctrlhome/automation-core/internal/device"
	"github.com/ctrlhome/automation-core/internal/infrastructure/config"
	"github.com/ctrlhome/automation-core/internal/infrastructure/logging"
	"github.com/ctrlhome/automation-core/internal/rules"
	"github.com/ctrlhome/automation-core/internal/statecache"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	fmt.Printf("automation-core %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const configPathEnv = "AUTOMATIONCORE_CONFIG"

// run builds every component in the cross-component wiring contract's
// order, starts the HTTP server and bus client together under an
// errgroup, and performs an ordered shutdown on ctx cancellation: bus
// client first, then the HTTP server.
func run(ctx context.Context) error {
	configPath := os.Getenv(configPathEnv)
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("automation-core starting", "version", version)

	registry := device.NewRegistry(device.NewFileRepository(cfg.Store.DevicesFile))
	registry.SetLogger(logger)
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := statecache.New(registry)
	cache.SetLogger(logger)

	ruleStore := rules.NewStore(rules.NewFileRepository(cfg.Store.RulesFile))
	ruleStore.SetLogger(logger)
	if err := ruleStore.Load(ctx); err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	evaluator := rules.NewEvaluator(ruleStore, registry)
	evaluator.SetLogger(logger)

	busClient := bus.NewClient(bus.DefaultConnect(cfg.MQTT), registry, evaluator, cache, bus.Options{
		QoS:                  byte(cfg.MQTT.QoS),
		ReconnectDelay:       cfg.ReconnectDelay(),
		ReconnectMaxAttempts: cfg.MQTT.ReconnectMaxAttempts,
		HistorySize:          cfg.Store.CommandHistorySize,
	})
	busClient.SetLogger(logger)

	ruleStore.SetChangeHandler(func() {
		evaluator.Reload()
		busClient.ReconcileSubscriptions()
	})
	evaluator.Reload()

	server, err := api.New(api.Deps{
		Config:    cfg.App,
		Logger:    logger,
		Registry:  registry,
		RuleStore: ruleStore,
		Evaluator: evaluator,
		Cache:     cache,
		Bus:       busClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("building API server: %w", err)
	}
	busClient.SetObserver(server.Hub())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := busClient.Start(groupCtx); err != nil {
			return fmt.Errorf("starting bus client: %w", err)
		}
		<-groupCtx.Done()
		return nil
	})

	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		<-groupCtx.Done()
		return nil
	})

	<-groupCtx.Done()
	logger.Info("shutdown signal received; stopping in order")

	if err := busClient.Stop(); err != nil {
		logger.Error("error stopping bus client", "error", err)
	}
	if err := server.Close(); err != nil {
		logger.Error("error stopping API server", "error", err)
	}

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		// A component failed on its own, not because of the outer
		// shutdown signal; surface it as a non-zero exit.
		return fmt.Errorf("component failure: %w", err)
	}

	logger.Info("automation-core stopped")
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metricagent/api/server"
	"metricagent/internal/alert"
	"metricagent/internal/collectors"
	"metricagent/internal/config"
	"metricagent/internal/database"
	"metricagent/internal/logger"
	"metricagent/internal/metrics"
	"metricagent/internal/rules"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (falls back to environment variables)")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Load()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	hostname := cfg.Agent.Hostname
	if hostname == "auto" || hostname == "" {
		if h, err := os.Hostname(); err == nil {
			hostname = h
		} else {
			hostname = "unknown"
		}
	}

	log.Info("starting metrics agent",
		zap.String("hostname", hostname),
		zap.Bool("alerting", cfg.Alerting.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Host metric collection into the agent's own registry.
	registry := prometheus.NewRegistry()
	collectorSet := collectors.Build(cfg.Collectors, registry)
	collectorService := collectors.NewService(collectorSet, log)
	collectorService.Start(ctx)

	var (
		manager   *alert.Manager
		evaluator *alert.Evaluator
		evalDone  chan struct{}
	)
	if cfg.Alerting.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			log.Fatal("failed to open alert database", zap.Error(err))
		}
		store := alert.NewGormStore(db, log)

		channels := alert.BuildChannels(cfg.Alerting.Channels, log)
		manager = alert.NewManager(store, channels, cfg.Alerting.SendResolved, log)

		ruleSet, err := rules.LoadFile(cfg.Alerting.RulesFile, log)
		if err != nil {
			log.Fatal("failed to load alert rules", zap.Error(err))
		}
		manager.RestoreActive(ruleSet)

		evaluator = alert.NewEvaluator(ruleSet, metrics.NewRegistrySource(registry), manager, log)

		evalDone = make(chan struct{})
		go func() {
			defer close(evalDone)
			evaluator.Run(ctx,
				time.Duration(cfg.Alerting.EvaluationInterval)*time.Second,
				time.Duration(cfg.Alerting.CleanupInterval)*time.Second,
				cfg.Alerting.RetentionDays,
			)
		}()

		if cfg.Alerting.WatchRules {
			go func() {
				if err := rules.Watch(ctx, cfg.Alerting.RulesFile, log, evaluator.ReplaceRules); err != nil {
					log.Error("rules watcher exited", zap.Error(err))
				}
			}()
		}
	}

	srv := server.NewServer(cfg, registry, manager, evaluator, hostname, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	collectorService.Wait()

	// The evaluation loop may have a tick in flight; let it finish
	// before the store handle goes away.
	if evalDone != nil {
		<-evalDone
	}

	if manager != nil {
		if err := manager.Shutdown(); err != nil {
			log.Error("alert manager shutdown failed", zap.Error(err))
		}
	}

	log.Info("metrics agent stopped")
}

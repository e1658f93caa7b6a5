package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"switchboard/pkg/adapters"
	_ "switchboard/pkg/adapters/autoload" // register adapter factories
	"switchboard/pkg/config"
	"switchboard/pkg/dispatch"
	"switchboard/pkg/monitor"
	"switchboard/pkg/transcript"
	"switchboard/pkg/worker"
	_ "switchboard/pkg/worker/autoload" // register worker backends

	"github.com/joho/godotenv"
)

func main() {
	// Secrets (bot tokens, API keys) may live in a local .env file.
	_ = godotenv.Load()

	cfg, sys, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	monitor.SetupSlog(sys.LogLevel)
	monitor.PrintBanner()

	runner, err := worker.NewFromConfig(cfg.Worker, sys)
	if err != nil {
		slog.Error("Failed to init worker backend", "error", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	registry := dispatch.NewRegistry(cfg.Sessions)
	transcripts := transcript.NewStore(sys.TranscriptDir, sys.MaxTranscriptTurns)

	dispatcher := dispatch.NewDispatcher(rootCtx, runner, registry, transcripts, sys, cfg.SystemPrompt)
	dispatcher.SetMonitor(monitor.NewCLIMonitor())

	adapters.LoadFromConfig(dispatcher, cfg.Adapters, sys)

	if err := dispatcher.StartAll(); err != nil {
		slog.Error("Failed to start adapters", "error", err)
		os.Exit(1)
	}

	// Routing policy edits in config.json apply without a restart. Adapter
	// and worker changes still need one; those hold live connections.
	go func() {
		for changed := range config.WatchConfig(rootCtx, "config.json") {
			newCfg, _, err := config.Load()
			if err != nil {
				slog.Warn("Ignoring config reload", "file", changed, "error", err)
				continue
			}
			registry.ReloadPolicies(newCfg.Sessions)
			slog.Info("Session policies reloaded", "file", changed)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Received shutdown signal, stopping services")
	rootCancel()
	dispatcher.StopAll()
	slog.Info("Bye!")
}

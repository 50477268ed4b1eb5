package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/deps"
	"reelsmith/internal/logging"
	"reelsmith/internal/queue"
	"reelsmith/internal/toolexec"
	"reelsmith/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(cfg))); len(missing) > 0 {
		log.Fatalf("missing required tools: %v", missing)
	}
	if err := deps.VerifyFreeSpace(cfg.Paths.ArtifactsDir, deps.MinFreeBytes); err != nil {
		logger.Warn("low disk headroom", logging.Error(err))
	}

	store, err := queue.Open(cfg)
	if err != nil {
		log.Fatalf("open queue store: %v", err)
	}

	pipeline := workflow.NewDefaultPipeline(store, cfg, toolexec.NewRunner(), logger)
	manager := workflow.NewManager(cfg, store, pipeline, logger)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("reelsmithd shutting down")
}

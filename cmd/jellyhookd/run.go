package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"jellyhook/internal/config"
	"jellyhook/internal/consumer"
	"jellyhook/internal/jellyfin"
	"jellyhook/internal/journal"
	"jellyhook/internal/logging"
	"jellyhook/internal/orchestrator"
	"jellyhook/internal/services"
	"jellyhook/internal/services/dovi"
	"jellyhook/internal/services/metadata"
	"jellyhook/internal/services/playlist"
	"jellyhook/internal/services/trackclean"
	"jellyhook/internal/tools"
)

func newRunCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the worker daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configFlag)
		},
	}
}

func runDaemon(cmd *cobra.Command, configFlag *string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configPath, err := loadConfig(configFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("starting jellyhookd", "config", configPath)

	lock := flock.New(cfg.Paths.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return errors.New("another jellyhookd instance is already running")
	}
	defer lock.Unlock()

	webhooks, err := config.LoadWebhooks(cfg.Paths.WebhookConfig)
	if err != nil {
		return err
	}

	var recorder consumer.Recorder
	if cfg.Paths.JournalPath != "" {
		history, err := journal.Open(cfg.Paths.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer history.Close()
		recorder = history
	}

	env := services.Env{
		Config: cfg,
		Logger: logger,
		Runner: tools.NewRunner(),
		Server: jellyfin.NewClient(cfg.Jellyfin),
	}
	registry := newRegistry()

	processor := orchestrator.New(webhooks, registry, env)
	worker := consumer.New(cfg, webhooks, processor, recorder, nil, logger)

	err = worker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("jellyhookd shut down")
		return nil
	}
	return err
}

// newRegistry binds the configured job names to their factories. The
// metadata job is the only non-critical one: its failures are logged but
// do not fail the event.
func newRegistry() *services.Registry {
	registry := services.NewRegistry()
	registry.Register(metadata.Name, services.Definition{Build: metadata.New})
	registry.Register(dovi.Name, services.Definition{Build: dovi.New, Critical: true})
	registry.Register(trackclean.Name, services.Definition{Build: trackclean.New, Critical: true})
	registry.Register(playlist.Name, services.Definition{Build: playlist.New, Critical: true})
	return registry
}

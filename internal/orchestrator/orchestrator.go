// Package orchestrator runs the configured job pipeline for one event.
// Jobs are resolved through the registry, ordered by priority, and run to
// completion with defined partial-failure semantics: every configured job
// gets exactly one chance per event, and only critical failures mark the
// event as not completed.
package orchestrator

import (
	"context"
	"log/slog"
	"os"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/logging"
	"jellyhook/internal/services"
)

// Orchestrator dispatches events to their configured job pipelines.
type Orchestrator struct {
	webhooks *config.WebhookConfig
	registry *services.Registry
	env      services.Env
	log      *slog.Logger
}

// New constructs an orchestrator over a read-only configuration snapshot.
func New(webhooks *config.WebhookConfig, registry *services.Registry, env services.Env) *Orchestrator {
	return &Orchestrator{
		webhooks: webhooks,
		registry: registry,
		env:      env,
		log:      env.Logger.With(logging.FieldComponent, "orchestrator"),
	}
}

// Process runs the pipeline configured for the webhook against one raw
// message body. The return value is the acknowledgment decision: true
// means the message is done (including "nothing to do"), false means at
// least one critical job failed.
func (o *Orchestrator) Process(ctx context.Context, webhookID string, body []byte) bool {
	log := o.log.With(logging.FieldWebhookID, webhookID)

	descriptors := o.webhooks.EnabledServices(webhookID)
	if descriptors == nil {
		log.Info("webhook not enabled, nothing to do")
		return true
	}

	payload, err := event.Decode(body)
	if err != nil {
		log.Error("undecodable event payload", "error", err)
		return false
	}
	log = log.With(logging.FieldItemID, payload.Flattened().ItemID())

	completed := true
	var scratchDirs []string
	defer func() { o.cleanupScratch(log, scratchDirs) }()

	for _, descriptor := range descriptors {
		jobLog := log.With(logging.FieldJob, descriptor.Name)

		definition, ok := o.registry.Resolve(descriptor.Name)
		if !ok {
			jobLog.Error("unknown job name in webhook configuration")
			continue
		}

		job, err := definition.Build(ctx, o.env, payload, descriptor.Config)
		if err != nil {
			jobLog.Error("job construction failed", "error", err)
			if definition.Critical {
				completed = false
			}
			continue
		}
		if job == nil {
			jobLog.Info("item not eligible, skipping job")
			continue
		}
		if dir := job.ScratchDir(); dir != "" {
			scratchDirs = append(scratchDirs, dir)
		}

		if err := job.Execute(ctx); err != nil {
			jobLog.Error("job failed", "error", err)
			if definition.Critical {
				completed = false
			}
			continue
		}
		jobLog.Info("job completed")
	}

	return completed
}

// cleanupScratch removes each tracked scratch directory exactly once.
// Failures are logged, never raised: cleanup must not change the
// acknowledgment decision.
func (o *Orchestrator) cleanupScratch(log *slog.Logger, dirs []string) {
	seen := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		if _, done := seen[dir]; done {
			continue
		}
		seen[dir] = struct{}{}
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("scratch directory cleanup failed", "dir", dir, "error", err)
		}
	}
}

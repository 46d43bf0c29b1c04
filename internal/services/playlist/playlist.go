// Package playlist implements the playlist assignment job. Each rule
// pairs a playlist with a condition block; every rule that matches adds
// the item to its playlist, independently of the others.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/logging"
	"jellyhook/internal/rules"
	"jellyhook/internal/services"
)

// Name is the job name used in webhook configuration.
const Name = "playlist_assignment"

// AssignmentRule binds one playlist to the conditions an item must meet.
type AssignmentRule struct {
	PlaylistID   string
	PlaylistName string
	Condition    rules.Condition
}

// DisplayName returns the human-readable rule label for logging.
func (r AssignmentRule) DisplayName() string {
	if r.PlaylistName != "" {
		return r.PlaylistName
	}
	return r.PlaylistID
}

// ParseRules decodes the job's "rules" option list.
func ParseRules(opts config.Options) ([]AssignmentRule, error) {
	blocks := opts.MapSlice("rules")
	parsed := make([]AssignmentRule, 0, len(blocks))
	for i, block := range blocks {
		rule := AssignmentRule{
			PlaylistID:   block.String("playlist_id", ""),
			PlaylistName: block.String("playlist_name", ""),
		}
		if rule.PlaylistID == "" {
			return nil, fmt.Errorf("playlist rule %d: missing playlist_id", i)
		}
		if conditions := block.Map("conditions"); conditions != nil {
			rule.Condition = rules.Condition{
				MinRuntimeMinutes: conditions.FloatPtr("min_runtime_minutes"),
				MaxRuntimeMinutes: conditions.FloatPtr("max_runtime_minutes"),
				MinReleaseYear:    conditions.IntPtr("min_release_year"),
				MaxReleaseYear:    conditions.IntPtr("max_release_year"),
				RequiredGenres:    conditions.StringSlice("required_genres"),
				RequiredTags:      conditions.StringSlice("required_tags"),
				ExcludedTags:      conditions.StringSlice("excluded_tags"),
				ItemTypes:         conditions.StringSlice("item_types"),
			}
		}
		parsed = append(parsed, rule)
	}
	return parsed, nil
}

// Job evaluates the configured rules for one item.
type Job struct {
	env     services.Env
	itemID  string
	payload event.Payload
	rules   []AssignmentRule
	log     *slog.Logger
}

// New builds a playlist job for one event. An event without rules has
// nothing to do and yields no job.
func New(ctx context.Context, env services.Env, payload event.Payload, opts config.Options) (services.Job, error) {
	parsed, err := ParseRules(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Name, "parse rules", "", err)
	}
	if len(parsed) == 0 {
		return nil, nil
	}

	flat := payload.Flattened()
	itemID := flat.ItemID()
	if itemID == "" {
		return nil, services.Wrap(services.ErrConfiguration, Name, "inspect event", "payload carries no item id", nil)
	}

	return &Job{
		env:     env,
		itemID:  itemID,
		payload: flat,
		rules:   parsed,
		log: env.Logger.With(
			logging.FieldJob, Name,
			logging.FieldItemID, itemID,
		),
	}, nil
}

// Name implements services.Job.
func (j *Job) Name() string { return Name }

// ScratchDir implements services.Job; the playlist job works in place.
func (j *Job) ScratchDir() string { return "" }

// Execute evaluates every rule against the (possibly enriched) item
// metadata. All matching rules are applied; one failed addition does not
// stop the rest, the errors are reported together.
func (j *Job) Execute(ctx context.Context) error {
	subject := j.buildSubject(ctx)

	var errs []error
	matched := 0
	for _, rule := range j.rules {
		if !rule.Condition.Matches(subject) {
			continue
		}
		matched++
		if err := j.env.Server.AddToPlaylist(ctx, rule.PlaylistID, j.itemID); err != nil {
			errs = append(errs, services.Wrap(services.ErrAPI, Name, "add to playlist", rule.DisplayName(), err))
			continue
		}
		j.log.Info("added item to playlist", "playlist", rule.DisplayName())
	}

	if matched == 0 {
		j.log.Info("no playlist rules matched")
	}
	return errors.Join(errs...)
}

// buildSubject derives the condition inputs from the webhook payload,
// fetching the full item from the server when the payload is too sparse.
// Enrichment failure is logged, not fatal: predicates that still lack a
// value fail closed on their own.
func (j *Job) buildSubject(ctx context.Context) rules.ConditionSubject {
	details := j.payload
	if !sufficient(details) && j.env.Server != nil {
		fetched, err := j.env.Server.GetItem(ctx, j.itemID)
		if err != nil {
			j.log.Warn("could not enrich item metadata", "error", err)
		} else {
			merged := make(event.Payload, len(fetched)+len(details))
			for key, value := range fetched.Flattened() {
				merged[key] = value
			}
			for key, value := range details {
				merged[key] = value
			}
			details = merged
		}
	}

	subject := rules.ConditionSubject{
		ItemType: details.ItemType(),
		Genres:   details.Genres(),
		Tags:     details.Tags(),
	}
	if minutes, ok := details.RuntimeMinutes(); ok {
		subject.RuntimeMinutes = &minutes
	}
	if year, ok := details.ReleaseYear(); ok {
		subject.ReleaseYear = &year
	}
	return subject
}

func sufficient(details event.Payload) bool {
	if _, ok := details.RuntimeMinutes(); !ok {
		return false
	}
	if _, ok := details.ReleaseYear(); !ok {
		return false
	}
	return len(details.Genres()) > 0 && len(details.Tags()) > 0
}

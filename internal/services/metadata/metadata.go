// Package metadata implements the genre/tag rewriting job. Declarative
// path and pattern rules decide which items get their Genres and Tags
// fields merged or replaced; the write goes through the media server API.
package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/library"
	"jellyhook/internal/logging"
	"jellyhook/internal/rules"
	"jellyhook/internal/services"
)

// Name is the job name used in webhook configuration.
const Name = "metadata_update"

// The two item fields this job rewrites.
var mutatedFields = []string{"Genres", "Tags"}

// Job applies the matched rule mutations to one item.
type Job struct {
	env     services.Env
	item    library.Item
	itemID  string
	current map[string][]string
	matches []rules.Rule
	log     *slog.Logger
}

// New builds a metadata job for one event. It returns (nil, nil) when no
// configured rule matches the item, which the orchestrator treats as a
// skip rather than a failure.
func New(ctx context.Context, env services.Env, payload event.Payload, opts config.Options) (services.Job, error) {
	set, err := ParseRules(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, Name, "parse rules", "", err)
	}
	if len(set) == 0 {
		return nil, nil
	}

	flat := payload.Flattened()
	year, _ := flat.Year()
	item, err := library.Locate(env.Config.Paths.MediaRoots, flat.Name(), year)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, Name, "locate item", "", err)
	}

	matches := rules.FindMatches(set, rules.Subject{Path: item.Path, Fields: flat})
	if len(matches) == 0 {
		return nil, nil
	}

	return &Job{
		env:    env,
		item:   item,
		itemID: flat.ItemID(),
		current: map[string][]string{
			"Genres": flat.Genres(),
			"Tags":   flat.Tags(),
		},
		matches: matches,
		log: env.Logger.With(
			logging.FieldJob, Name,
			logging.FieldItemID, flat.ItemID(),
		),
	}, nil
}

// Name implements services.Job.
func (j *Job) Name() string { return Name }

// ScratchDir implements services.Job; the metadata job works in place.
func (j *Job) ScratchDir() string { return "" }

// Execute folds the matched mutations over the item's current field
// values and writes the result back when anything actually changed.
func (j *Job) Execute(ctx context.Context) error {
	j.log.Info("rewriting item metadata",
		"title", j.item.FullTitle(),
		"matched_rules", len(j.matches))

	fields := make(map[string]any)
	for _, field := range mutatedFields {
		next, changed := rules.Apply(field, j.current[field], j.matches)
		if !changed {
			continue
		}
		fields[field] = next
		j.log.Info("field rewrite computed", "field", field, "values", next)
	}

	if len(fields) == 0 {
		j.log.Info("metadata already correct, skipping write", "title", j.item.FullTitle())
		return nil
	}

	if err := j.env.Server.UpdateItem(ctx, j.itemID, fields); err != nil {
		return services.Wrap(services.ErrAPI, Name, "update item",
			fmt.Sprintf("item %s", j.itemID), err)
	}
	j.log.Info("metadata update complete", "title", j.item.FullTitle())
	return nil
}

// ParseRules decodes the job's option block into a compiled rule set,
// path rules first, preserving declaration order within each family.
func ParseRules(opts config.Options) ([]rules.Rule, error) {
	var set []rules.Rule

	for i, block := range opts.MapSlice("paths") {
		prefix := block.String("path", "")
		if prefix == "" {
			return nil, fmt.Errorf("path rule %d: missing path", i)
		}
		set = append(set, rules.Rule{
			Kind:       rules.KindPath,
			PathPrefix: prefix,
			Mutations:  parseMutations(block),
		})
	}

	for i, block := range opts.MapSlice("patterns") {
		pattern := block.String("match_pattern", "")
		if pattern == "" {
			return nil, fmt.Errorf("pattern rule %d: missing match_pattern", i)
		}
		rule := rules.Rule{
			Kind:            rules.KindPattern,
			Field:           block.String("match_field", "Name"),
			Pattern:         pattern,
			CaseInsensitive: block.Bool("case_insensitive", true),
			Mutations:       parseMutations(block),
		}
		if err := rule.Compile(); err != nil {
			return nil, fmt.Errorf("pattern rule %d: %w", i, err)
		}
		set = append(set, rule)
	}

	return set, nil
}

// parseMutations reads the per-field mutation blocks. "new_values" is the
// canonical key; the older field-specific spellings are still accepted.
func parseMutations(block config.Options) map[string]rules.Mutation {
	mutations := make(map[string]rules.Mutation)
	for option, field := range map[string]string{"genres": "Genres", "tags": "Tags"} {
		sub := block.Map(option)
		if sub == nil {
			continue
		}
		values := sub.StringSlice("new_values")
		if values == nil {
			values = sub.StringSlice("new_" + option)
		}
		mutations[field] = rules.Mutation{
			Values:  values,
			Replace: sub.Bool("replace", sub.Bool("replace_existing", false)),
		}
	}
	return mutations
}

package services

import (
	"context"
	"log/slog"
	"sort"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/tools"
)

// Job is one executable pipeline step bound to a single event.
type Job interface {
	// Name returns the configured job name.
	Name() string
	// ScratchDir returns the scratch directory the job created, or ""
	// when it works in place. The orchestrator owns cleanup.
	ScratchDir() string
	// Execute runs the job to completion.
	Execute(ctx context.Context) error
}

// MediaServer is the subset of the media-server API the jobs use.
type MediaServer interface {
	GetItem(ctx context.Context, itemID string) (event.Payload, error)
	UpdateItem(ctx context.Context, itemID string, fields map[string]any) error
	AddToPlaylist(ctx context.Context, playlistID, itemID string) error
}

// Env bundles the collaborators shared by all job factories.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
	Runner tools.Runner
	Server MediaServer
}

// Factory builds a job for one event. Returning (nil, nil) means the item
// is not eligible for this job; that is a skip, not an error.
type Factory func(ctx context.Context, env Env, payload event.Payload, opts config.Options) (Job, error)

// Definition describes one registered job type.
type Definition struct {
	Build Factory
	// Critical marks jobs whose failure fails the whole event.
	// Metadata rewriting is best-effort and registers as non-critical.
	Critical bool
}

// Registry is the static mapping from configured job names to definitions.
type Registry struct {
	definitions map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]Definition)}
}

// Register binds a job name to its definition. Later registrations
// replace earlier ones.
func (r *Registry) Register(name string, def Definition) {
	r.definitions[name] = def
}

// Resolve looks up the definition for a configured name.
func (r *Registry) Resolve(name string) (Definition, bool) {
	def, ok := r.definitions[name]
	return def, ok
}

// Names returns the registered job names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

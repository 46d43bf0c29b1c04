package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"jellyhook/internal/config"
)

const webhookYAML = `
webhooks:
  item_added:
    enabled: true
    queue: "jellyfin:item_added"
    services:
      - name: dovi_conversion
        priority: 10
      - name: metadata_update
        priority: 50
        config:
          paths:
            - path: /data/media/stand-up
              genres:
                new_values: ["Stand-Up"]
                replace_existing: true
      - name: playlist_assignment
        enabled: false
      - name: media_track_clean
        priority: 50
  item_deleted:
    enabled: false
    queue: "jellyfin:item_deleted"
`

func TestLoadWebhooksYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhooks.yaml")
	if err := os.WriteFile(path, []byte(webhookYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.LoadWebhooks(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	enabled := cfg.Enabled()
	if len(enabled) != 1 {
		t.Fatalf("expected one enabled webhook, got %d", len(enabled))
	}
	if enabled["item_added"].Queue != "jellyfin:item_added" {
		t.Fatalf("unexpected queue: %q", enabled["item_added"].Queue)
	}
}

func TestEnabledServicesFilterAndStableSort(t *testing.T) {
	cfg, err := config.ParseWebhooks([]byte(webhookYAML), false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	services := cfg.EnabledServices("item_added")
	got := make([]string, 0, len(services))
	for _, service := range services {
		got = append(got, service.Name)
	}
	// dovi first (10), then the two priority-50 entries in declaration
	// order; the disabled playlist job is filtered out.
	want := []string{"dovi_conversion", "metadata_update", "media_track_clean"}
	if len(got) != len(want) {
		t.Fatalf("unexpected services: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}
}

func TestEnabledServicesForDisabledWebhook(t *testing.T) {
	cfg, err := config.ParseWebhooks([]byte(webhookYAML), false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if services := cfg.EnabledServices("item_deleted"); services != nil {
		t.Fatalf("disabled webhook must yield no services, got %v", services)
	}
	if services := cfg.EnabledServices("unknown"); services != nil {
		t.Fatalf("unknown webhook must yield no services, got %v", services)
	}
}

func TestDefaultPriorityApplied(t *testing.T) {
	cfg, err := config.ParseWebhooks([]byte(`{"webhooks":{"w":{"enabled":true,"queue":"q","services":[{"name":"a"},{"name":"b","priority":1}]}}}`), true)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	services := cfg.EnabledServices("w")
	if services[0].Name != "b" {
		t.Fatalf("explicit priority 1 must sort before default, got %v", services[0].Name)
	}
	if services[1].EffectivePriority() != config.DefaultPriority {
		t.Fatalf("expected default priority, got %d", services[1].EffectivePriority())
	}
}

func TestParseWebhooksRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing webhooks key": `{}`,
		"missing queue":        `{"webhooks":{"w":{"enabled":true}}}`,
		"empty queue":          `{"webhooks":{"w":{"queue":""}}}`,
		"service without name": `{"webhooks":{"w":{"queue":"q","services":[{"priority":1}]}}}`,
		"bad priority type":    `{"webhooks":{"w":{"queue":"q","services":[{"name":"a","priority":"high"}]}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.ParseWebhooks([]byte(body), true); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseWebhooksAllowsUnknownServiceNames(t *testing.T) {
	// Unknown job names fail softly at dispatch time, never at load time.
	body := `{"webhooks":{"w":{"enabled":true,"queue":"q","services":[{"name":"not_a_real_job"}]}}}`
	cfg, err := config.ParseWebhooks([]byte(body), true)
	if err != nil {
		t.Fatalf("unknown names must pass load: %v", err)
	}
	if len(cfg.EnabledServices("w")) != 1 {
		t.Fatal("service should be listed")
	}
}

func TestOptionsAccessors(t *testing.T) {
	cfg, err := config.ParseWebhooks([]byte(webhookYAML), false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var metadata config.ServiceConfig
	for _, service := range cfg.EnabledServices("item_added") {
		if service.Name == "metadata_update" {
			metadata = service
		}
	}
	paths := metadata.Config.MapSlice("paths")
	if len(paths) != 1 {
		t.Fatalf("expected one path rule, got %d", len(paths))
	}
	genres := paths[0].Map("genres")
	if got := genres.StringSlice("new_values"); len(got) != 1 || got[0] != "Stand-Up" {
		t.Fatalf("unexpected new_values: %v", got)
	}
	if !genres.Bool("replace_existing", false) {
		t.Fatal("replace_existing should be true")
	}
	if genres.Bool("missing", true) != true {
		t.Fatal("default bool should apply")
	}
	if ptr := genres.FloatPtr("missing"); ptr != nil {
		t.Fatal("missing float should be nil")
	}
}

package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed webhook_schema.json
var webhookSchemaJSON string

var webhookSchema = jsonschema.MustCompileString("webhook_schema.json", webhookSchemaJSON)

// DefaultPriority is the job priority used when a service config omits one.
// Lower priorities run first.
const DefaultPriority = 100

// WebhookConfig maps webhook identifiers to their queue and job list.
type WebhookConfig struct {
	Webhooks map[string]Webhook `json:"webhooks"`
}

// Webhook describes one consumed queue and its configured jobs.
type Webhook struct {
	Enabled  bool            `json:"enabled"`
	Queue    string          `json:"queue"`
	Services []ServiceConfig `json:"services"`
}

// ServiceConfig is one job entry in a webhook's pipeline. Enabled defaults
// to true and Priority to DefaultPriority when omitted.
type ServiceConfig struct {
	Name     string  `json:"name"`
	Enabled  *bool   `json:"enabled"`
	Priority *int    `json:"priority"`
	Config   Options `json:"config"`
}

// IsEnabled reports whether the job should run.
func (s ServiceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// EffectivePriority returns the configured priority or the default.
func (s ServiceConfig) EffectivePriority() int {
	if s.Priority == nil {
		return DefaultPriority
	}
	return *s.Priority
}

// LoadWebhooks reads and validates the webhook configuration file. The
// format is chosen by file suffix: .json is parsed as JSON, anything else
// as YAML.
func LoadWebhooks(path string) (*WebhookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read webhook config: %w", err)
	}
	asJSON := strings.EqualFold(filepath.Ext(path), ".json")
	cfg, err := ParseWebhooks(data, asJSON)
	if err != nil {
		return nil, fmt.Errorf("webhook config %q: %w", path, err)
	}
	return cfg, nil
}

// ParseWebhooks validates and decodes webhook configuration bytes.
func ParseWebhooks(data []byte, asJSON bool) (*WebhookConfig, error) {
	jsonBytes := data
	if !asJSON {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml document: %w", err)
		}
		jsonBytes = converted
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(jsonBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := webhookSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate webhook config: %w", err)
	}

	var cfg WebhookConfig
	if err := json.Unmarshal(jsonBytes, &cfg); err != nil {
		return nil, fmt.Errorf("decode webhook config: %w", err)
	}
	return &cfg, nil
}

// Enabled returns the enabled webhooks keyed by id.
func (c *WebhookConfig) Enabled() map[string]Webhook {
	enabled := make(map[string]Webhook)
	for id, webhook := range c.Webhooks {
		if webhook.Enabled {
			enabled[id] = webhook
		}
	}
	return enabled
}

// Webhook returns the configuration for one webhook id.
func (c *WebhookConfig) Webhook(id string) (Webhook, bool) {
	webhook, ok := c.Webhooks[id]
	return webhook, ok
}

// EnabledServices returns the webhook's enabled jobs sorted ascending by
// priority. The sort is stable, so equal priorities keep declaration order.
// A disabled or unknown webhook yields nil.
func (c *WebhookConfig) EnabledServices(id string) []ServiceConfig {
	webhook, ok := c.Webhooks[id]
	if !ok || !webhook.Enabled {
		return nil
	}
	var services []ServiceConfig
	for _, service := range webhook.Services {
		if service.IsEnabled() {
			services = append(services, service)
		}
	}
	sort.SliceStable(services, func(i, j int) bool {
		return services[i].EffectivePriority() < services[j].EffectivePriority()
	})
	return services
}

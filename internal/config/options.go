package config

import (
	"fmt"
	"strings"
)

// Options is a job's schemaless option block. Values carry JSON types
// (string, float64, bool, []any, map[string]any); the accessors tolerate
// missing keys and wrong types the way the jobs expect.
type Options map[string]any

// Bool returns the named flag or the default when absent or mistyped.
func (o Options) Bool(key string, def bool) bool {
	if value, ok := o[key].(bool); ok {
		return value
	}
	return def
}

// String returns the named string or the default when absent or mistyped.
func (o Options) String(key, def string) string {
	if value, ok := o[key].(string); ok {
		return value
	}
	return def
}

// StringSlice returns the named list coerced to strings. Scalar strings
// are split on commas, matching the webhook plugin's list serialization.
func (o Options) StringSlice(key string) []string {
	switch value := o[key].(type) {
	case []any:
		items := make([]string, 0, len(value))
		for _, entry := range value {
			text := strings.TrimSpace(fmt.Sprint(entry))
			if text != "" {
				items = append(items, text)
			}
		}
		return items
	case string:
		var items []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		return items
	default:
		return nil
	}
}

// FloatPtr returns the named number, or nil when absent or unparseable.
func (o Options) FloatPtr(key string) *float64 {
	switch value := o[key].(type) {
	case float64:
		return &value
	case int:
		f := float64(value)
		return &f
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%g", &f); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// IntPtr returns the named integer, or nil when absent or unparseable.
func (o Options) IntPtr(key string) *int {
	f := o.FloatPtr(key)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// Map returns a nested option block, or nil when absent.
func (o Options) Map(key string) Options {
	if value, ok := o[key].(map[string]any); ok {
		return Options(value)
	}
	return nil
}

// MapSlice returns a list of nested option blocks, skipping entries that
// are not mappings.
func (o Options) MapSlice(key string) []Options {
	value, ok := o[key].([]any)
	if !ok {
		return nil
	}
	blocks := make([]Options, 0, len(value))
	for _, entry := range value {
		if block, isMap := entry.(map[string]any); isMap {
			blocks = append(blocks, Options(block))
		}
	}
	return blocks
}

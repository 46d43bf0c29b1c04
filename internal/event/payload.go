package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Runtime conversion constants for the media server's tick-based durations.
const (
	TicksPerSecond   = 10_000_000
	SecondsPerMinute = 60
)

// Payload is a decoded webhook message. It is constructed once per delivery
// and treated as read-only afterwards.
type Payload map[string]any

// Decode parses a raw message body into a Payload.
func Decode(body []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return payload, nil
}

// String returns the named field as a string, or "" when the field is
// missing or not a string.
func (p Payload) String(key string) string {
	value, ok := p[key]
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// ItemID returns the media server item identifier.
func (p Payload) ItemID() string {
	return p.String("ItemId")
}

// Name returns the item display name.
func (p Payload) Name() string {
	return p.String("Name")
}

// ServerURL returns the media server URL carried in the payload.
func (p Payload) ServerURL() string {
	return p.String("ServerUrl")
}

// Overview returns the free-text item overview.
func (p Payload) Overview() string {
	return p.String("Overview")
}

// ItemType returns the media server item kind ("Movie", "Episode", ...).
// The webhook plugin and the Items API use different key names.
func (p Payload) ItemType() string {
	if t := p.String("ItemType"); t != "" {
		return t
	}
	return p.String("Type")
}

// Year returns the release year used in the library directory convention.
func (p Payload) Year() (int, bool) {
	return intField(p["Year"])
}

// Genres returns the item genre list. The webhook plugin serializes list
// fields as comma-separated strings; the Items API returns real lists.
func (p Payload) Genres() []string {
	return listField(p["Genres"])
}

// Tags returns the item tag list.
func (p Payload) Tags() []string {
	return listField(p["Tags"])
}

// Flattened returns a copy of the payload with the embedded Item
// sub-object merged in. Top-level keys win over embedded ones.
func (p Payload) Flattened() Payload {
	embedded, ok := p["Item"].(map[string]any)
	if !ok {
		return p
	}
	merged := make(Payload, len(p)+len(embedded))
	for key, value := range embedded {
		merged[key] = value
	}
	for key, value := range p {
		merged[key] = value
	}
	return merged
}

// RuntimeMinutes derives the item runtime from the tick-based duration
// fields. The second return is false when no usable tick count exists.
func (p Payload) RuntimeMinutes() (float64, bool) {
	ticks, ok := tickField(p)
	if !ok {
		if embedded, isMap := p["Item"].(map[string]any); isMap {
			ticks, ok = tickField(Payload(embedded))
		}
	}
	if !ok {
		return 0, false
	}
	return ticks / TicksPerSecond / SecondsPerMinute, true
}

// ReleaseYear derives the release year, preferring explicit numeric fields
// and falling back to the leading four characters of an ISO date string.
func (p Payload) ReleaseYear() (int, bool) {
	for _, key := range []string{"ProductionYear", "Year"} {
		if year, ok := intField(p[key]); ok {
			return year, true
		}
	}
	for _, key := range []string{"PremiereDate", "DateCreated"} {
		date, _ := p[key].(string)
		if len(date) < 4 {
			continue
		}
		if year, err := strconv.Atoi(date[:4]); err == nil {
			return year, true
		}
	}
	return 0, false
}

func tickField(p Payload) (float64, bool) {
	for _, key := range []string{"RunTimeTicks", "RuntimeTicks"} {
		if value, ok := p[key]; ok {
			switch v := value.(type) {
			case float64:
				return v, true
			case int:
				return float64(v), true
			case int64:
				return float64(v), true
			}
		}
	}
	return 0, false
}

func intField(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func listField(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		parts := strings.Split(v, ",")
		items := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		return items
	case []any:
		items := make([]string, 0, len(v))
		for _, entry := range v {
			text := strings.TrimSpace(fmt.Sprint(entry))
			if text != "" {
				items = append(items, text)
			}
		}
		return items
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return nil
		}
		return []string{text}
	}
}

package rules

import "strings"

// Condition is the restricted predicate dialect used by playlist rules.
// Zero-valued bounds and empty lists are inactive.
type Condition struct {
	MinRuntimeMinutes *float64
	MaxRuntimeMinutes *float64
	MinReleaseYear    *int
	MaxReleaseYear    *int
	RequiredGenres    []string
	RequiredTags      []string
	ExcludedTags      []string
	ItemTypes         []string
}

// ConditionSubject carries the item attributes a Condition is evaluated
// against. Nil runtime or year means the value could not be derived.
type ConditionSubject struct {
	ItemType       string
	RuntimeMinutes *float64
	ReleaseYear    *int
	Genres         []string
	Tags           []string
}

// Matches reports whether every active predicate holds. Predicates that
// need a value the subject cannot provide fail closed.
func (c Condition) Matches(subject ConditionSubject) bool {
	if len(c.ItemTypes) > 0 {
		if !lowerSet(c.ItemTypes).has(strings.ToLower(subject.ItemType)) {
			return false
		}
	}

	if c.MinRuntimeMinutes != nil || c.MaxRuntimeMinutes != nil {
		if subject.RuntimeMinutes == nil {
			return false
		}
		if c.MinRuntimeMinutes != nil && *subject.RuntimeMinutes < *c.MinRuntimeMinutes {
			return false
		}
		if c.MaxRuntimeMinutes != nil && *subject.RuntimeMinutes > *c.MaxRuntimeMinutes {
			return false
		}
	}

	if c.MinReleaseYear != nil || c.MaxReleaseYear != nil {
		if subject.ReleaseYear == nil {
			return false
		}
		if c.MinReleaseYear != nil && *subject.ReleaseYear < *c.MinReleaseYear {
			return false
		}
		if c.MaxReleaseYear != nil && *subject.ReleaseYear > *c.MaxReleaseYear {
			return false
		}
	}

	if len(c.RequiredGenres) > 0 {
		if !lowerSet(subject.Genres).hasAll(c.RequiredGenres) {
			return false
		}
	}
	if len(c.RequiredTags) > 0 {
		if !lowerSet(subject.Tags).hasAll(c.RequiredTags) {
			return false
		}
	}
	if len(c.ExcludedTags) > 0 {
		if lowerSet(subject.Tags).hasAny(c.ExcludedTags) {
			return false
		}
	}

	return true
}

type stringSet map[string]struct{}

func lowerSet(values []string) stringSet {
	set := make(stringSet, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func (s stringSet) has(value string) bool {
	_, ok := s[value]
	return ok
}

func (s stringSet) hasAll(values []string) bool {
	for _, value := range values {
		if !s.has(strings.ToLower(strings.TrimSpace(value))) {
			return false
		}
	}
	return true
}

func (s stringSet) hasAny(values []string) bool {
	for _, value := range values {
		if s.has(strings.ToLower(strings.TrimSpace(value))) {
			return true
		}
	}
	return false
}

package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes the two rule families.
type Kind int

const (
	// KindPath matches when the item's resolved path starts with a prefix.
	KindPath Kind = iota
	// KindPattern matches a regular expression against an event field.
	KindPattern
)

// Mutation describes how a matching rule rewrites one metadata field.
type Mutation struct {
	Values  []string
	Replace bool
}

// Rule is one declarative matching rule together with the field mutations
// it carries. Pattern rules must be compiled before matching.
type Rule struct {
	Kind Kind

	// Path rule.
	PathPrefix string

	// Pattern rule.
	Field           string
	Pattern         string
	CaseInsensitive bool

	// Mutations keyed by target field name ("Genres", "Tags").
	Mutations map[string]Mutation

	compiled *regexp.Regexp
}

// Compile validates and prepares the rule for matching. Pattern rules with
// an invalid regular expression are rejected here so malformed rules are a
// load-time configuration error, not a per-event surprise.
func (r *Rule) Compile() error {
	if r.Kind != KindPattern {
		return nil
	}
	pattern := r.Pattern
	if r.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile pattern rule %q: %w", r.Pattern, err)
	}
	r.compiled = compiled
	return nil
}

// FieldSource provides string access to event fields. Missing or
// non-string fields read as the empty string.
type FieldSource interface {
	String(key string) string
}

// Subject is the item a rule set is evaluated against.
type Subject struct {
	// Path is the item's resolved absolute filesystem path.
	Path string
	// Fields exposes the event payload for pattern rules.
	Fields FieldSource
}

// FindMatches returns the rules that match the subject, in declaration
// order. Callers are expected to pass path rules before pattern rules;
// the engine preserves whatever order it is given.
func FindMatches(set []Rule, subject Subject) []Rule {
	var matches []Rule
	for _, rule := range set {
		if matchRule(rule, subject) {
			matches = append(matches, rule)
		}
	}
	return matches
}

func matchRule(rule Rule, subject Subject) bool {
	switch rule.Kind {
	case KindPath:
		return rule.PathPrefix != "" && strings.HasPrefix(subject.Path, rule.PathPrefix)
	case KindPattern:
		if rule.compiled == nil {
			return false
		}
		var value string
		if subject.Fields != nil {
			value = subject.Fields.String(rule.Field)
		}
		return rule.compiled.MatchString(value)
	default:
		return false
	}
}

// Apply folds the matched rules' mutations for one field over the current
// value list. Replacing rules reset the accumulator; merging rules append
// values not already present, keeping first-seen order. The second return
// is false when the resulting value set equals the current one, letting
// callers skip a redundant write.
func Apply(field string, current []string, matches []Rule) ([]string, bool) {
	values := append([]string(nil), current...)
	for _, rule := range matches {
		mutation, ok := rule.Mutations[field]
		if !ok {
			continue
		}
		if mutation.Replace {
			values = append([]string(nil), mutation.Values...)
			continue
		}
		for _, value := range mutation.Values {
			if !contains(values, value) {
				values = append(values, value)
			}
		}
	}
	return values, !sameSet(values, current)
}

func contains(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(setOf(a)) != len(setOf(b)) {
		return false
	}
	seen := setOf(b)
	for value := range setOf(a) {
		if _, ok := seen[value]; !ok {
			return false
		}
	}
	return true
}

func setOf(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}

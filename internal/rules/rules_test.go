package rules_test

import (
	"reflect"
	"testing"

	"jellyhook/internal/event"
	"jellyhook/internal/rules"
)

func compile(t *testing.T, set []rules.Rule) []rules.Rule {
	t.Helper()
	for i := range set {
		if err := set[i].Compile(); err != nil {
			t.Fatalf("compile rule %d: %v", i, err)
		}
	}
	return set
}

func TestPathRuleIsPurePrefixTest(t *testing.T) {
	set := []rules.Rule{{Kind: rules.KindPath, PathPrefix: "/media/a"}}

	if len(rules.FindMatches(set, rules.Subject{Path: "/media/a/b.mkv"})) != 1 {
		t.Fatal("expected /media/a/b.mkv to match prefix /media/a")
	}

	set = []rules.Rule{{Kind: rules.KindPath, PathPrefix: "/media/ab"}}
	if len(rules.FindMatches(set, rules.Subject{Path: "/media/a/b.mkv"})) != 0 {
		t.Fatal("prefix /media/ab must not match /media/a/b.mkv")
	}
}

func TestPatternRuleSearchesFieldValue(t *testing.T) {
	set := compile(t, []rules.Rule{{
		Kind:    rules.KindPattern,
		Field:   "Name",
		Pattern: `live at`,
	}})
	payload := event.Payload{"Name": "Comedian Live at the Apollo"}

	if len(rules.FindMatches(set, rules.Subject{Fields: payload})) != 0 {
		t.Fatal("case-sensitive pattern should not match differing case")
	}

	set[0].CaseInsensitive = true
	set = compile(t, set)
	if len(rules.FindMatches(set, rules.Subject{Fields: payload})) != 1 {
		t.Fatal("case-insensitive pattern should match")
	}
}

func TestPatternRuleMissingFieldNeverMatches(t *testing.T) {
	set := compile(t, []rules.Rule{{
		Kind:    rules.KindPattern,
		Field:   "Overview",
		Pattern: `stand.?up`,
	}})
	if len(rules.FindMatches(set, rules.Subject{Fields: event.Payload{}})) != 0 {
		t.Fatal("missing field must not match a non-trivial pattern")
	}
}

func TestCompileRejectsInvalidPattern(t *testing.T) {
	rule := rules.Rule{Kind: rules.KindPattern, Field: "Name", Pattern: "("}
	if err := rule.Compile(); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestApplyMergesWithoutDuplicates(t *testing.T) {
	matches := []rules.Rule{
		{Mutations: map[string]rules.Mutation{"Genres": {Values: []string{"Stand-Up", "Comedy"}}}},
		{Mutations: map[string]rules.Mutation{"Genres": {Values: []string{"Comedy", "Special"}}}},
	}
	got, changed := rules.Apply("Genres", []string{"Comedy"}, matches)
	want := []string{"Comedy", "Stand-Up", "Special"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected merge result: %v", got)
	}
	if !changed {
		t.Fatal("expected change report")
	}
}

func TestApplyReplaceDiscardsEarlierMerges(t *testing.T) {
	matches := []rules.Rule{
		{Mutations: map[string]rules.Mutation{"Genres": {Values: []string{"Action"}}}},
		{Mutations: map[string]rules.Mutation{"Genres": {Values: []string{"Stand-Up"}, Replace: true}}},
	}
	got, changed := rules.Apply("Genres", []string{"Comedy", "Documentary"}, matches)
	if !reflect.DeepEqual(got, []string{"Stand-Up"}) {
		t.Fatalf("replace should discard earlier values, got %v", got)
	}
	if !changed {
		t.Fatal("expected change report")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	matches := []rules.Rule{
		{Mutations: map[string]rules.Mutation{"Tags": {Values: []string{"concert", "live"}}}},
		{Mutations: map[string]rules.Mutation{"Tags": {Values: []string{"remastered"}, Replace: true}}},
		{Mutations: map[string]rules.Mutation{"Tags": {Values: []string{"live"}}}},
	}
	once, _ := rules.Apply("Tags", []string{"bootleg"}, matches)
	twice, changed := rules.Apply("Tags", once, matches)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("apply not idempotent: %v then %v", once, twice)
	}
	if changed {
		t.Fatal("second application must report no change")
	}
}

func TestApplyReportsNoChangeOnEqualSets(t *testing.T) {
	matches := []rules.Rule{
		{Mutations: map[string]rules.Mutation{"Genres": {Values: []string{"Comedy"}}}},
	}
	_, changed := rules.Apply("Genres", []string{"Comedy"}, matches)
	if changed {
		t.Fatal("adding an already-present value is not a change")
	}
}

func TestApplySkipsRulesWithoutFieldMutation(t *testing.T) {
	matches := []rules.Rule{
		{Mutations: map[string]rules.Mutation{"Tags": {Values: []string{"live"}}}},
	}
	got, changed := rules.Apply("Genres", []string{"Comedy"}, matches)
	if changed || !reflect.DeepEqual(got, []string{"Comedy"}) {
		t.Fatalf("rule without Genres mutation must be a no-op, got %v changed=%v", got, changed)
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestConditionRuntimeAndGenres(t *testing.T) {
	condition := rules.Condition{
		MinRuntimeMinutes: floatPtr(80),
		MaxRuntimeMinutes: floatPtr(110),
		RequiredGenres:    []string{"Action"},
	}
	subject := rules.ConditionSubject{
		RuntimeMinutes: floatPtr(90),
		Genres:         []string{"Action", "Adventure"},
	}
	if !condition.Matches(subject) {
		t.Fatal("expected match at 90 minutes with Action genre")
	}

	condition.MinRuntimeMinutes = floatPtr(200)
	if condition.Matches(subject) {
		t.Fatal("raising min_runtime to 200 must not match")
	}
}

func TestConditionFailsClosedOnMissingValues(t *testing.T) {
	condition := rules.Condition{MinRuntimeMinutes: floatPtr(10)}
	if condition.Matches(rules.ConditionSubject{}) {
		t.Fatal("runtime predicate with missing runtime must not match")
	}

	condition = rules.Condition{MaxReleaseYear: intPtr(2000)}
	if condition.Matches(rules.ConditionSubject{}) {
		t.Fatal("year predicate with missing year must not match")
	}
}

func TestConditionTagExclusionAndItemTypes(t *testing.T) {
	condition := rules.Condition{
		ItemTypes:    []string{"Movie"},
		RequiredTags: []string{"concert"},
		ExcludedTags: []string{"bootleg"},
	}
	subject := rules.ConditionSubject{
		ItemType: "movie",
		Tags:     []string{"Concert", "Remastered"},
	}
	if !condition.Matches(subject) {
		t.Fatal("expected case-insensitive tag and type match")
	}

	subject.Tags = append(subject.Tags, "Bootleg")
	if condition.Matches(subject) {
		t.Fatal("excluded tag must block the match")
	}

	subject.Tags = subject.Tags[:2]
	subject.ItemType = "Episode"
	if condition.Matches(subject) {
		t.Fatal("item type outside allow-list must block the match")
	}
}

func TestConditionInactivePredicatesAlwaysHold(t *testing.T) {
	if !(rules.Condition{}).Matches(rules.ConditionSubject{}) {
		t.Fatal("empty condition must match anything")
	}
}

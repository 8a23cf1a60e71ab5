package repair

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

// requireShape fails unless the encoded analysis carries every required field
// with the right JSON type.
func requireShape(t *testing.T, a models.ParsedAnalysis) {
	t.Helper()

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	sections := map[string]struct {
		lists   []string
		scalars []string
	}{
		"sourceAnalysis":  {lists: []string{"keyClaims", "keyTerms", "frameworks", "examples"}, scalars: []string{"authorVoice"}},
		"courseBlueprint": {lists: []string{"prerequisites", "learningOutcomes", "syllabus"}, scalars: []string{"targetAudience"}},
		"contentGaps":     {lists: []string{"missingConcepts", "needsVerification", "suggestedAdditions"}},
	}
	for name, want := range sections {
		section, ok := doc[name].(map[string]any)
		if !ok {
			t.Fatalf("%s missing or not an object in %s", name, data)
		}
		for _, field := range want.lists {
			if _, ok := section[field].([]any); !ok {
				t.Fatalf("%s.%s is not a list in %s", name, field, data)
			}
		}
		for _, field := range want.scalars {
			if _, ok := section[field].(string); !ok {
				t.Fatalf("%s.%s is not a string in %s", name, field, data)
			}
		}
	}

	scope, ok := doc["scopeOptions"].(map[string]any)
	if !ok {
		t.Fatalf("scopeOptions missing in %s", data)
	}
	for _, size := range []string{"lite", "core"} {
		if _, ok := scope[size].(map[string]any); !ok {
			t.Fatalf("scopeOptions.%s missing in %s", size, data)
		}
	}
}

func TestParse_FencedJSONWithProse(t *testing.T) {
	raw := "Here is your analysis: ```json\n{\"sourceAnalysis\": {\"keyClaims\": [\"A\"]}}\n``` Thanks!"

	got, rung := ParseWithRung(raw)
	if rung != RungDirect && rung != RungBasic {
		t.Fatalf("rung = %q, want %q or %q", rung, RungDirect, RungBasic)
	}
	if want := []string{"A"}; !reflect.DeepEqual(got.SourceAnalysis.KeyClaims, want) {
		t.Fatalf("keyClaims = %#v, want %#v", got.SourceAnalysis.KeyClaims, want)
	}
	if got.Fallback {
		t.Fatalf("expected no fallback, got error %q", got.Error)
	}
	requireShape(t, got)
}

func TestParse_NonStandardShapeKeptAsIs(t *testing.T) {
	raw := `{"keyTerms": ["alpha, beta"], "title": "Intro"}`

	got, rung := ParseWithRung(raw)
	if rung != RungDirect {
		t.Fatalf("rung = %q, want %q", rung, RungDirect)
	}
	if got.Extra["title"] != "Intro" {
		t.Fatalf("Extra[title] = %#v, want Intro", got.Extra["title"])
	}
	if !reflect.DeepEqual(got.Extra["keyTerms"], []any{"alpha, beta"}) {
		t.Fatalf("Extra[keyTerms] = %#v", got.Extra["keyTerms"])
	}
	if len(got.SourceAnalysis.KeyTerms) != 0 {
		t.Fatalf("top-level keyTerms must not be moved into sourceAnalysis, got %#v", got.SourceAnalysis.KeyTerms)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if doc["title"] != "Intro" {
		t.Fatalf("encoded title = %#v, want Intro", doc["title"])
	}
	requireShape(t, got)
}

func TestParse_EmptyInputFallsBack(t *testing.T) {
	got, rung := ParseWithRung("")
	if rung != RungFallback {
		t.Fatalf("rung = %q, want %q", rung, RungFallback)
	}
	if !got.Fallback {
		t.Fatal("expected fallback = true")
	}
	if len(got.SourceAnalysis.KeyClaims) == 0 {
		t.Fatal("fallback keyClaims should not be empty")
	}
	if got.Error != ErrNoObject.Error() {
		t.Fatalf("error = %q, want %q", got.Error, ErrNoObject.Error())
	}
	if got.Timestamp == "" {
		t.Fatal("fallback should be timestamped")
	}
	requireShape(t, got)
}

func TestParse_AlwaysReturnsRequiredShape(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"whitespace":     " \n\t ",
		"prose":          "I'm sorry, I can't produce that analysis right now.",
		"truncated":      `{"sourceAnalysis": {"keyClaims": ["one", "tw`,
		"raw newline":    "{\"sourceAnalysis\": {\"authorVoice\": \"warm\nand direct\"}}",
		"array":          `["a", "b"]`,
		"array of obj":   `[{"x": 1}]`,
		"only brace":     "{",
		"wrong types":    `{"sourceAnalysis": 7, "courseBlueprint": "none", "scopeOptions": []}`,
		"null sections":  `{"sourceAnalysis": null, "contentGaps": null}`,
		"nested fences":  "```json\n```json\n{}\n```\n```",
		"control chars":  "{\"sourceAnalysis\": {\"keyClaims\": [\"a\x01b\"]}}",
		"trailing comma": `{"sourceAnalysis": {"keyClaims": ["a", "b",],},}`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			requireShape(t, Parse(raw))
		})
	}
}

func TestParse_ValidInputRoundTrips(t *testing.T) {
	raw := `{
		"sourceAnalysis": {
			"keyClaims": ["Claim one", "Claim two"],
			"keyTerms": ["term"],
			"frameworks": [],
			"examples": ["An example"],
			"authorVoice": "Conversational"
		},
		"courseBlueprint": {
			"targetAudience": "Engineers",
			"prerequisites": ["Go basics"],
			"learningOutcomes": ["Build a pipeline"],
			"syllabus": ["Intro", "Depth"]
		},
		"contentGaps": {
			"missingConcepts": [],
			"needsVerification": ["Benchmarks"],
			"suggestedAdditions": ["Exercises"]
		},
		"scopeOptions": {
			"lite": {"duration": "1 hour", "modules": 2, "focus": "Basics"},
			"core": {"duration": "4 hours", "modules": 5, "focus": "Everything"},
			"deepDive": {"duration": "8 hours", "modules": 9, "focus": "Internals"}
		},
		"title": "Pipelines"
	}`

	var want any
	if err := json.Unmarshal([]byte(raw), &want); err != nil {
		t.Fatalf("json.Unmarshal(raw) error = %v", err)
	}

	data, err := json.Marshal(Parse(raw))
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var got any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal(parsed) error = %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got: %s\nwant: %s", data, raw)
	}
}

func TestParse_ZeroProvenanceRoundTrips(t *testing.T) {
	raw := `{
		"sourceAnalysis": {"keyClaims": ["Claim"], "keyTerms": [], "frameworks": [], "examples": [], "authorVoice": ""},
		"courseBlueprint": {"targetAudience": "", "prerequisites": [], "learningOutcomes": [], "syllabus": []},
		"contentGaps": {"missingConcepts": [], "needsVerification": [], "suggestedAdditions": []},
		"scopeOptions": {
			"lite": {"duration": "1 hour", "modules": 2, "focus": "Basics"},
			"core": {"duration": "4 hours", "modules": 5, "focus": "Everything"}
		},
		"fallback": false,
		"error": "",
		"timestamp": "",
		"chunkProcessingInfo": null
	}`

	var want any
	if err := json.Unmarshal([]byte(raw), &want); err != nil {
		t.Fatalf("json.Unmarshal(raw) error = %v", err)
	}

	parsed := Parse(raw)
	if parsed.Fallback {
		t.Fatalf("Parse() fallback = true, error = %q", parsed.Error)
	}
	data, err := json.Marshal(parsed)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var got any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal(parsed) error = %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got: %s\nwant: %s", data, raw)
	}
}

func TestParse_RawNewlineInsideString(t *testing.T) {
	raw := "{\"sourceAnalysis\": {\"keyClaims\": [\"line one\nline two\"]}}"

	got, rung := ParseWithRung(raw)
	if rung != RungSanitized {
		t.Fatalf("rung = %q, want %q", rung, RungSanitized)
	}
	if want := []string{"line one\nline two"}; !reflect.DeepEqual(got.SourceAnalysis.KeyClaims, want) {
		t.Fatalf("keyClaims = %#v, want %#v", got.SourceAnalysis.KeyClaims, want)
	}
}

func TestParse_BraceInsideStringNeedsQuotedMatch(t *testing.T) {
	raw := `Result: {"sourceAnalysis": {"keyClaims": ["use } carefully"]}} trailing {junk}`

	got, rung := ParseWithRung(raw)
	if rung != RungAggressive {
		t.Fatalf("rung = %q, want %q", rung, RungAggressive)
	}
	if want := []string{"use } carefully"}; !reflect.DeepEqual(got.SourceAnalysis.KeyClaims, want) {
		t.Fatalf("keyClaims = %#v, want %#v", got.SourceAnalysis.KeyClaims, want)
	}
}

func TestParse_TruncatedJSONUsesFieldExtraction(t *testing.T) {
	raw := `{"sourceAnalysis": {"keyClaims": ["alpha", "beta \"quoted\""], "keyTerms": ["gamma"], "authorVoice": "Calm", "examples": ["unfinished`

	got, rung := ParseWithRung(raw)
	if rung != RungFields {
		t.Fatalf("rung = %q, want %q", rung, RungFields)
	}
	if want := []string{"alpha", `beta "quoted"`}; !reflect.DeepEqual(got.SourceAnalysis.KeyClaims, want) {
		t.Fatalf("keyClaims = %#v, want %#v", got.SourceAnalysis.KeyClaims, want)
	}
	if want := []string{"gamma"}; !reflect.DeepEqual(got.SourceAnalysis.KeyTerms, want) {
		t.Fatalf("keyTerms = %#v, want %#v", got.SourceAnalysis.KeyTerms, want)
	}
	if got.SourceAnalysis.AuthorVoice != "Calm" {
		t.Fatalf("authorVoice = %q, want Calm", got.SourceAnalysis.AuthorVoice)
	}
	if got.Fallback {
		t.Fatal("field extraction is not a fallback")
	}
	requireShape(t, got)
}

func TestParse_LenientCoercion(t *testing.T) {
	raw := `{
		"sourceAnalysis": {"keyClaims": "single claim", "keyTerms": [1, true, null, "x"], "authorVoice": 3},
		"scopeOptions": {"lite": {"duration": "1 hour", "modules": "3 modules", "focus": "Basics"}, "core": {"modules": 4.6}}
	}`

	got := Parse(raw)
	if want := []string{"single claim"}; !reflect.DeepEqual(got.SourceAnalysis.KeyClaims, want) {
		t.Fatalf("keyClaims = %#v, want %#v", got.SourceAnalysis.KeyClaims, want)
	}
	if want := []string{"1", "true", "x"}; !reflect.DeepEqual(got.SourceAnalysis.KeyTerms, want) {
		t.Fatalf("keyTerms = %#v, want %#v", got.SourceAnalysis.KeyTerms, want)
	}
	if got.SourceAnalysis.AuthorVoice != "3" {
		t.Fatalf("authorVoice = %q, want 3", got.SourceAnalysis.AuthorVoice)
	}
	if got.ScopeOptions.Lite.Modules != 3 {
		t.Fatalf("lite.modules = %d, want 3", got.ScopeOptions.Lite.Modules)
	}
	if got.ScopeOptions.Core.Modules != 5 {
		t.Fatalf("core.modules = %d, want 5", got.ScopeOptions.Core.Modules)
	}
	if got.ScopeOptions.DeepDive != nil {
		t.Fatalf("deepDive should stay unset, got %#v", got.ScopeOptions.DeepDive)
	}
}

func TestFallback_TruncatesRawResponse(t *testing.T) {
	raw := strings.Repeat("x", 5000)

	got := Parse(raw)
	if !got.Fallback {
		t.Fatal("expected fallback")
	}
	if len(got.RawResponse) != maxRawDiagnostic {
		t.Fatalf("len(rawResponse) = %d, want %d", len(got.RawResponse), maxRawDiagnostic)
	}
}

func TestFallback_NilError(t *testing.T) {
	got := Fallback("", nil)
	if got.Error == "" {
		t.Fatal("fallback error message should not be empty")
	}
	if got.ScopeOptions.DeepDive == nil {
		t.Fatal("fallback should offer a deep dive option")
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("€", 400)

	got := truncate(s, 1000)
	if !utf8.ValidString(got) {
		t.Fatal("truncate() split a multi-byte rune")
	}
	if len(got) != 999 {
		t.Fatalf("len(truncate()) = %d, want 999", len(got))
	}
}

func TestRepairJSON_LessonObject(t *testing.T) {
	raw := "```json\n{\"title\": \"Intro\", \"content\": \"Para one\nPara two\", \"objectives\": [\"a\",],}\n```"

	out, rung, err := RepairJSON(raw)
	if err != nil {
		t.Fatalf("RepairJSON() error = %v", err)
	}
	if rung != RungSanitized {
		t.Fatalf("rung = %q, want %q", rung, RungSanitized)
	}

	var lesson struct {
		Title      string   `json:"title"`
		Content    string   `json:"content"`
		Objectives []string `json:"objectives"`
	}
	if err := json.Unmarshal(out, &lesson); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if lesson.Title != "Intro" || lesson.Content != "Para one\nPara two" || len(lesson.Objectives) != 1 {
		t.Fatalf("unexpected lesson %#v", lesson)
	}
}

func TestRepairJSON_NoObject(t *testing.T) {
	if _, _, err := RepairJSON("no json here"); err == nil {
		t.Fatal("RepairJSON() error = nil, want error")
	}
}

func TestLadder_Order(t *testing.T) {
	want := []string{RungDirect, RungSanitized, RungBasic, RungAggressive}
	if len(Ladder) != len(want) {
		t.Fatalf("len(Ladder) = %d, want %d", len(Ladder), len(want))
	}
	for i, rung := range Ladder {
		if rung.Name != want[i] {
			t.Fatalf("Ladder[%d] = %q, want %q", i, rung.Name, want[i])
		}
	}
}

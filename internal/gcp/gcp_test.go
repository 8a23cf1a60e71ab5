package gcp

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

func TestSanitizeFieldName(t *testing.T) {
	cases := map[string]string{
		"plain":        "plain",
		"a.b":          "a_b",
		"path/to[0]":   "path_to_0_",
		"*~`":          "___",
		"":             "_empty",
		"__reserved__": "_reserved",
	}
	for in, want := range cases {
		if got := SanitizeFieldName(in); got != want {
			t.Errorf("SanitizeFieldName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFieldNames_Nested(t *testing.T) {
	in := map[string]any{
		"key.terms": []any{map[string]any{"a/b": 1}},
		"meta":      map[string]any{"": "x", "ok": true},
	}
	want := map[string]any{
		"key_terms": []any{map[string]any{"a_b": 1}},
		"meta":      map[string]any{"_empty": "x", "ok": true},
	}
	if got := SanitizeFieldNames(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("SanitizeFieldNames() = %#v, want %#v", got, want)
	}
	if SanitizeFieldNames(nil) != nil {
		t.Fatal("SanitizeFieldNames(nil) should stay nil")
	}
}

func TestSanitizeFieldNames_CollisionKeepsFirstSorted(t *testing.T) {
	got := SanitizeFieldNames(map[string]any{"a.b": "dot", "a/b": "slash"})
	if len(got) != 1 || got["a_b"] != "dot" {
		t.Fatalf("SanitizeFieldNames() = %#v, want a_b=dot", got)
	}
}

func TestFitsInline(t *testing.T) {
	small, err := fitsInline(map[string]string{"a": "b"})
	if err != nil || !small {
		t.Fatalf("fitsInline(small) = %v, %v", small, err)
	}
	big := make([]byte, MaxInlineBytes+1)
	for i := range big {
		big[i] = 'x'
	}
	large, err := fitsInline(string(big))
	if err != nil || large {
		t.Fatalf("fitsInline(large) = %v, %v", large, err)
	}
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://course-src/abc/source.md")
	if err != nil {
		t.Fatalf("ParseGCSURI() error = %v", err)
	}
	if bucket != "course-src" || object != "abc/source.md" {
		t.Fatalf("ParseGCSURI() = %q, %q", bucket, object)
	}

	if _, object, err = ParseGCSURI("gs://course-src"); err != nil || object != "" {
		t.Fatalf("ParseGCSURI(bucket only) = %q, %v", object, err)
	}
	for _, bad := range []string{"", "https://x/y", "gs:///obj"} {
		if _, _, err := ParseGCSURI(bad); err == nil {
			t.Errorf("ParseGCSURI(%q) expected error", bad)
		}
	}
	if got := GCSURI("b", "o/p.json"); got != "gs://b/o/p.json" {
		t.Fatalf("GCSURI() = %q", got)
	}
}

func TestMatchesSuffix(t *testing.T) {
	if !matchesSuffix("a/b.md", []string{".md", ".txt"}) {
		t.Fatal("expected .md to match")
	}
	if matchesSuffix("a/b.pdf", []string{".md", ".txt"}) {
		t.Fatal("expected .pdf not to match")
	}
	if !matchesSuffix("anything", nil) {
		t.Fatal("empty suffix list should match everything")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("COURSE_TEST_INT", "7")
	t.Setenv("COURSE_TEST_BAD_INT", "seven")
	t.Setenv("COURSE_TEST_DURATION", "45s")
	t.Setenv("COURSE_TEST_BAD_DURATION", "soon")

	if got := GetEnvInt("COURSE_TEST_INT", 1); got != 7 {
		t.Errorf("GetEnvInt() = %d, want 7", got)
	}
	if got := GetEnvInt("COURSE_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("GetEnvInt(bad) = %d, want 1", got)
	}
	if got := GetEnvInt("COURSE_TEST_UNSET_INT", 3); got != 3 {
		t.Errorf("GetEnvInt(unset) = %d, want 3", got)
	}
	if got := GetEnvDuration("COURSE_TEST_DURATION", time.Second); got != 45*time.Second {
		t.Errorf("GetEnvDuration() = %v, want 45s", got)
	}
	if got := GetEnvDuration("COURSE_TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration(bad) = %v, want 1s", got)
	}
	if got := GetEnv("COURSE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv(unset) = %q", got)
	}
}

func TestWorkflowRef_Parent(t *testing.T) {
	wf := WorkflowRef{ProjectID: "p", Location: "us-central1", ID: "course-generation"}
	if got, want := wf.Parent(), "projects/p/locations/us-central1/workflows/course-generation"; got != want {
		t.Fatalf("Parent() = %q, want %q", got, want)
	}
}

func TestIsRefusal(t *testing.T) {
	if !IsRefusal("I am unable to help with that request.") {
		t.Fatal("expected refusal")
	}
	if IsRefusal(`{"title": "Module 1"}`) {
		t.Fatal("unexpected refusal")
	}
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestNonEmptyText(t *testing.T) {
	text, err := nonEmptyText(textResponse(" {\"a\":", "1} "))
	if err != nil {
		t.Fatalf("nonEmptyText() error = %v", err)
	}
	if text != `{"a":1}` {
		t.Fatalf("nonEmptyText() = %q", text)
	}

	if _, err := nonEmptyText(nil); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestNonEmptyText_KeepsQuotedRefusalPhrase(t *testing.T) {
	payload := `{"sourceAnalysis":{"keyClaims":["Customers who say \"I am unable to log in\" need a reset flow"]}}`
	text, err := nonEmptyText(textResponse(payload))
	if err != nil {
		t.Fatalf("nonEmptyText() error = %v", err)
	}
	if text != payload {
		t.Fatalf("nonEmptyText() = %q, want payload unchanged", text)
	}
}

func TestExtractedText_RejectsRefusal(t *testing.T) {
	refusal := textResponse("As a large language model I cannot provide that.")
	if _, err := extractedText(refusal); err != ErrRefusal {
		t.Fatalf("extractedText(refusal) error = %v, want ErrRefusal", err)
	}
	text, err := extractedText(textResponse("# Chapter 1\n\nConsensus keeps replicas aligned."))
	if err != nil {
		t.Fatalf("extractedText() error = %v", err)
	}
	if !strings.HasPrefix(text, "# Chapter 1") {
		t.Fatalf("extractedText() = %q", text)
	}
}

package repair

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

var (
	listFieldRegex = regexp.MustCompile(
		`"(keyClaims|keyTerms|frameworks|examples|prerequisites|learningOutcomes|syllabus|missingConcepts|needsVerification|suggestedAdditions)"\s*:\s*\[((?s:.*?))\]`,
	)
	scalarFieldRegex = regexp.MustCompile(`"(authorVoice|targetAudience)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	quotedItemRegex  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// ExtractFields scans raw for known "field": [...] and "field": "..." pairs
// anywhere in the text, ignoring overall well-formedness. It reports false
// when no field could be recovered.
func ExtractFields(raw string) (models.ParsedAnalysis, bool) {
	var a models.ParsedAnalysis
	found := 0
	seen := make(map[string]bool)

	for _, m := range listFieldRegex.FindAllStringSubmatch(raw, -1) {
		name, body := m[1], m[2]
		if seen[name] {
			continue
		}
		items := quotedItems(body)
		if len(items) == 0 {
			continue
		}
		seen[name] = true
		found++

		switch name {
		case "keyClaims":
			a.SourceAnalysis.KeyClaims = items
		case "keyTerms":
			a.SourceAnalysis.KeyTerms = items
		case "frameworks":
			a.SourceAnalysis.Frameworks = items
		case "examples":
			a.SourceAnalysis.Examples = items
		case "prerequisites":
			a.CourseBlueprint.Prerequisites = items
		case "learningOutcomes":
			a.CourseBlueprint.LearningOutcomes = items
		case "syllabus":
			a.CourseBlueprint.Syllabus = items
		case "missingConcepts":
			a.ContentGaps.MissingConcepts = items
		case "needsVerification":
			a.ContentGaps.NeedsVerification = items
		case "suggestedAdditions":
			a.ContentGaps.SuggestedAdditions = items
		}
	}

	for _, m := range scalarFieldRegex.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		value := unquote(m[2])
		if strings.TrimSpace(value) == "" {
			continue
		}
		seen[name] = true
		found++

		switch name {
		case "authorVoice":
			a.SourceAnalysis.AuthorVoice = value
		case "targetAudience":
			a.CourseBlueprint.TargetAudience = value
		}
	}

	if found == 0 {
		return models.ParsedAnalysis{}, false
	}
	a.Normalize()
	return a, true
}

func quotedItems(body string) []string {
	matches := quotedItemRegex.FindAllStringSubmatch(body, -1)
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		items = append(items, unquote(m[1]))
	}
	return items
}

// unquote decodes JSON escapes in a string literal body, returning the body
// unchanged if it is not a valid literal.
func unquote(body string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &s); err != nil {
		return body
	}
	return s
}

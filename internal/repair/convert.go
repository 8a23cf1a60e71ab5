package repair

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

// canonicalKeys are the top-level keys mapped onto ParsedAnalysis fields.
// Anything else is kept in Extra.
var canonicalKeys = map[string]bool{
	"sourceAnalysis":      true,
	"courseBlueprint":     true,
	"contentGaps":         true,
	"scopeOptions":        true,
	"fallback":            true,
	"error":               true,
	"timestamp":           true,
	"rawResponse":         true,
	"chunkProcessingInfo": true,
}

// FromMap builds a ParsedAnalysis from a decoded JSON object. Values are
// coerced leniently so a single mistyped field does not discard the rest.
func FromMap(obj map[string]any) models.ParsedAnalysis {
	var a models.ParsedAnalysis

	sa := asMap(obj["sourceAnalysis"])
	a.SourceAnalysis = models.SourceAnalysis{
		KeyClaims:   stringList(sa["keyClaims"]),
		KeyTerms:    stringList(sa["keyTerms"]),
		Frameworks:  stringList(sa["frameworks"]),
		Examples:    stringList(sa["examples"]),
		AuthorVoice: text(sa["authorVoice"]),
	}

	cb := asMap(obj["courseBlueprint"])
	a.CourseBlueprint = models.CourseBlueprint{
		TargetAudience:   text(cb["targetAudience"]),
		Prerequisites:    stringList(cb["prerequisites"]),
		LearningOutcomes: stringList(cb["learningOutcomes"]),
		Syllabus:         stringList(cb["syllabus"]),
	}

	cg := asMap(obj["contentGaps"])
	a.ContentGaps = models.ContentGaps{
		MissingConcepts:    stringList(cg["missingConcepts"]),
		NeedsVerification:  stringList(cg["needsVerification"]),
		SuggestedAdditions: stringList(cg["suggestedAdditions"]),
	}

	so := asMap(obj["scopeOptions"])
	a.ScopeOptions.Lite = scopeOption(so["lite"])
	a.ScopeOptions.Core = scopeOption(so["core"])
	if v, ok := so["deepDive"]; ok && v != nil {
		deep := scopeOption(v)
		a.ScopeOptions.DeepDive = &deep
	}

	a.Fallback, _ = obj["fallback"].(bool)
	a.Error = text(obj["error"])
	a.Timestamp = text(obj["timestamp"])
	a.RawResponse = text(obj["rawResponse"])
	if info := asMap(obj["chunkProcessingInfo"]); info != nil {
		a.ChunkProcessingInfo = &models.ChunkProcessingInfo{
			TotalChunks:         integer(info["totalChunks"]),
			SuccessfulChunks:    integer(info["successfulChunks"]),
			FailedChunks:        integer(info["failedChunks"]),
			ProcessingTimestamp: text(info["processingTimestamp"]),
		}
	}

	// omitempty drops zero provenance values, so present ones are carried
	// in Extra to re-encode as given.
	omitted := map[string]bool{
		"fallback":            !a.Fallback,
		"error":               a.Error == "",
		"timestamp":           a.Timestamp == "",
		"rawResponse":         a.RawResponse == "",
		"chunkProcessingInfo": a.ChunkProcessingInfo == nil,
	}
	for k, v := range obj {
		if canonicalKeys[k] && !omitted[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}

	a.Normalize()
	return a
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func scopeOption(v any) models.ScopeOption {
	m := asMap(v)
	return models.ScopeOption{
		Duration: text(m["duration"]),
		Modules:  integer(m["modules"]),
		Focus:    text(m["focus"]),
	}
}

// stringList accepts a list of scalars or a single string.
func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, text(item))
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}
		}
		return []string{t}
	default:
		return []string{}
	}
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

var leadingDigitsRegex = regexp.MustCompile(`\d+`)

// integer reads numbers and numeric prefixes of strings such as "5 modules".
func integer(v any) int {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t))
	case string:
		if m := leadingDigitsRegex.FindString(t); m != "" {
			n, err := strconv.Atoi(m)
			if err == nil {
				return n
			}
		}
	}
	return 0
}

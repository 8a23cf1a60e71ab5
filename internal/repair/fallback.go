package repair

import (
	"github.com/Lllllllleong/coursecreator/internal/models"
)

// maxRawDiagnostic bounds the copy of the raw output kept on a fallback.
const maxRawDiagnostic = 1000

// Fallback synthesizes a ParsedAnalysis with generic placeholder content. The
// result is flagged so consumers can show degraded quality.
func Fallback(raw string, err error) models.ParsedAnalysis {
	msg := "model output could not be parsed"
	if err != nil {
		msg = err.Error()
	}

	a := models.ParsedAnalysis{
		SourceAnalysis: models.SourceAnalysis{
			KeyClaims:   []string{"Content analysis performed with parsing limitations"},
			KeyTerms:    []string{"Core concepts from the source material"},
			Frameworks:  []string{"Structured learning approach"},
			Examples:    []string{"Examples drawn from the source material"},
			AuthorVoice: "Informative",
		},
		CourseBlueprint: models.CourseBlueprint{
			TargetAudience:   "Learners interested in the subject matter",
			Prerequisites:    []string{"Basic familiarity with the topic"},
			LearningOutcomes: []string{"Understand the main ideas presented in the source material"},
			Syllabus:         []string{"Introduction", "Core Concepts", "Application", "Review"},
		},
		ContentGaps: models.ContentGaps{
			MissingConcepts:    []string{"Detailed analysis unavailable due to parsing limitations"},
			NeedsVerification:  []string{"All generated content should be reviewed against the source"},
			SuggestedAdditions: []string{"Additional examples and practice activities"},
		},
		ScopeOptions: models.ScopeOptions{
			Lite: models.ScopeOption{Duration: "1-2 hours", Modules: 3, Focus: "Essential concepts"},
			Core: models.ScopeOption{Duration: "3-5 hours", Modules: 5, Focus: "Comprehensive coverage"},
			DeepDive: &models.ScopeOption{
				Duration: "6-10 hours", Modules: 8, Focus: "In-depth exploration with practice",
			},
		},
		Fallback:    true,
		Error:       msg,
		RawResponse: truncate(raw, maxRawDiagnostic),
	}
	a.Stamp()
	return a
}

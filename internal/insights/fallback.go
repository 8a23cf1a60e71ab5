package insights

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/repair"
)

// FallbackAnalysis builds a flagged analysis from the source text itself.
// Fields the heuristics cannot fill keep the generic placeholders.
func FallbackAnalysis(content, reason string) models.ParsedAnalysis {
	a := repair.Fallback("", errors.New(reason))
	in := Extract(content)

	if claims := leadSentences(content, 3); len(claims) > 0 {
		a.SourceAnalysis.KeyClaims = claims
	}
	if len(in.KeyTerms) > 0 {
		a.SourceAnalysis.KeyTerms = in.KeyTerms
	}
	if len(in.Concepts) > 0 {
		a.SourceAnalysis.Frameworks = head(in.Concepts, 5)
		outcomes := make([]string, 0, 4)
		for _, c := range head(in.Concepts, 4) {
			outcomes = append(outcomes, "Explain "+c+" and how it applies")
		}
		a.CourseBlueprint.LearningOutcomes = outcomes
	}
	if len(in.Examples) > 0 {
		a.SourceAnalysis.Examples = in.Examples
	}
	if len(in.Sections) > 0 {
		a.CourseBlueprint.Syllabus = in.Sections
	} else if len(in.Concepts) > 0 {
		a.CourseBlueprint.Syllabus = head(in.Concepts, 6)
	}

	a.ScopeOptions = scopeFor(in.WordCount)
	return a
}

// FallbackLesson builds a flagged lesson for one module from its assigned text.
func FallbackLesson(assignment models.ModuleContentAssignment, title, reason string) models.Lesson {
	in := Extract(assignment.Content)
	if title == "" {
		title = fmt.Sprintf("Module %d", assignment.ModuleIndex+1)
	}

	topics := in.Concepts
	if len(topics) == 0 {
		topics = in.KeyTerms
	}

	objectives := []string{}
	for _, t := range head(topics, 4) {
		objectives = append(objectives, "Understand "+t)
	}
	if len(objectives) == 0 {
		objectives = append(objectives, "Understand the main ideas of "+title)
	}

	takeaways := head(leadSentences(assignment.Content, 3), 3)
	if len(in.Sections) > 0 {
		takeaways = head(in.Sections, 5)
	}
	if len(takeaways) == 0 {
		takeaways = []string{"Review the source material for this module"}
	}

	activities := []string{"Summarize this module in your own words"}
	for _, t := range head(topics, 2) {
		activities = append(activities, "Find an example of "+t+" in your own work")
	}
	for _, e := range head(in.Examples, 1) {
		activities = append(activities, "Discuss this example: "+e)
	}

	return models.Lesson{
		Title:        title,
		Objectives:   objectives,
		Content:      assignment.Content,
		KeyTakeaways: takeaways,
		Activities:   activities,
		Fallback:     true,
		Error:        reason,
	}
}

// scopeFor sizes the offered scopes by source length, at roughly one core
// module per thousand words.
func scopeFor(words int) models.ScopeOptions {
	core := min(max(words/1000, 3), 12)
	lite := max(core/2, 2)
	deep := core + core/2
	return models.ScopeOptions{
		Lite: models.ScopeOption{Duration: hours(lite), Modules: lite, Focus: "Essential concepts"},
		Core: models.ScopeOption{Duration: hours(core), Modules: core, Focus: "Comprehensive coverage"},
		DeepDive: &models.ScopeOption{
			Duration: hours(deep), Modules: deep, Focus: "In-depth exploration with practice",
		},
	}
}

func hours(modules int) string {
	lo := (modules + 1) / 2
	return fmt.Sprintf("%d-%d hours", lo, lo+1)
}

func leadSentences(content string, n int) []string {
	var out []string
	for _, s := range splitSentences(content) {
		if len(strings.Fields(s)) < 5 {
			continue
		}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

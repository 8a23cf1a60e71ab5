package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/coursecreator/internal/gcp"
	"github.com/Lllllllleong/coursecreator/internal/insights"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/repair"
)

const (
	DefaultModuleCount       = 5
	MaxModuleCount           = 20
	DefaultLessonConcurrency = 3
)

const lessonSchema = `{
  "type": "object",
  "required": ["title", "objectives", "content", "keyTakeaways", "activities"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "objectives": {"type": "array", "items": {"type": "string"}},
    "content": {"type": "string", "minLength": 1},
    "keyTakeaways": {"type": "array", "items": {"type": "string"}},
    "activities": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	lessonSchemaOnce sync.Once
	lessonSchemaVal  *jsonschema.Schema
	lessonSchemaErr  error
)

func compiledLessonSchema() (*jsonschema.Schema, error) {
	lessonSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("lesson.json", strings.NewReader(lessonSchema)); err != nil {
			lessonSchemaErr = fmt.Errorf("failed to load lesson schema: %w", err)
			return
		}
		lessonSchemaVal, lessonSchemaErr = compiler.Compile("lesson.json")
	})
	return lessonSchemaVal, lessonSchemaErr
}

// ParseLesson repairs raw model output and checks it against the lesson schema.
func ParseLesson(raw string) (models.Lesson, error) {
	repaired, rung, err := repair.RepairJSON(raw)
	if err != nil {
		return models.Lesson{}, fmt.Errorf("lesson JSON could not be repaired: %w", err)
	}
	if rung != repair.RungDirect {
		slog.Debug("Lesson output required repair.", "rung", rung)
	}

	schema, err := compiledLessonSchema()
	if err != nil {
		return models.Lesson{}, err
	}
	var doc any
	if err := json.Unmarshal(repaired, &doc); err != nil {
		return models.Lesson{}, fmt.Errorf("failed to decode lesson for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return models.Lesson{}, fmt.Errorf("lesson does not match schema: %w", err)
	}

	var lesson models.Lesson
	if err := json.Unmarshal(repaired, &lesson); err != nil {
		return models.Lesson{}, fmt.Errorf("failed to decode lesson: %w", err)
	}
	return lesson, nil
}

// ResolveModuleCount picks the first positive count from the request, the
// stored course, and the analysis's core scope, then clamps it.
func ResolveModuleCount(requested int, course *models.Course) int {
	n := requested
	if n <= 0 && course != nil {
		n = course.ModuleCount
		if n <= 0 && course.Analysis != nil {
			n = course.Analysis.ScopeOptions.Core.Modules
		}
	}
	if n <= 0 {
		n = DefaultModuleCount
	}
	return min(n, MaxModuleCount)
}

// ModuleTitles names modules after the analysis syllabus where it has entries.
func ModuleTitles(analysis *models.ParsedAnalysis, n int) []string {
	titles := make([]string, n)
	for i := range titles {
		if analysis != nil && i < len(analysis.CourseBlueprint.Syllabus) {
			titles[i] = strings.TrimSpace(analysis.CourseBlueprint.Syllabus[i])
		}
		if titles[i] == "" {
			titles[i] = fmt.Sprintf("Module %d", i+1)
		}
	}
	return titles
}

// LessonBuilder generates one lesson per module assignment.
type LessonBuilder struct {
	Request     llm.RequestFunc
	Concurrency int
}

// Build returns modules in assignment order and the number that fell back to
// a content-derived lesson. A failing module never stops its siblings.
func (b *LessonBuilder) Build(ctx context.Context, assignments []models.ModuleContentAssignment, titles []string) ([]models.Module, int) {
	limit := b.Concurrency
	if limit <= 0 {
		limit = DefaultLessonConcurrency
	}

	modules := make([]models.Module, len(assignments))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, assignment := range assignments {
		title := fmt.Sprintf("Module %d", i+1)
		if i < len(titles) {
			title = titles[i]
		}
		g.Go(func() (err error) {
			modules[i] = models.Module{Index: i, Title: title, Assignment: assignment}
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("module %d lesson panicked: %v", i+1, r)
					modules[i].Lesson = insights.FallbackLesson(assignment, title, err.Error())
				}
			}()
			modules[i].Lesson = b.lesson(ctx, assignment, len(assignments), title)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("Module fell back after panic.", "error", err)
	}

	fallbacks := 0
	for _, m := range modules {
		if m.Lesson.Fallback {
			fallbacks++
		}
	}
	return modules, fallbacks
}

func (b *LessonBuilder) lesson(ctx context.Context, assignment models.ModuleContentAssignment, total int, title string) models.Lesson {
	if strings.TrimSpace(assignment.Content) == "" {
		return insights.FallbackLesson(assignment, title, "module has no assigned source content")
	}

	prompt := fmt.Sprintf(gcp.LessonUserPrompt, assignment.ModuleIndex+1, total, title, assignment.PositionLabel, assignment.Content)
	raw, err := b.Request(ctx, prompt)
	if err != nil {
		slog.Warn("Lesson request failed, using fallback lesson.", "module", assignment.ModuleIndex+1, "error", err)
		return insights.FallbackLesson(assignment, title, fmt.Sprintf("lesson request failed: %v", err))
	}

	lesson, err := ParseLesson(raw)
	if err != nil {
		slog.Warn("Lesson output unusable, using fallback lesson.", "module", assignment.ModuleIndex+1, "error", err)
		return insights.FallbackLesson(assignment, title, err.Error())
	}
	return lesson
}

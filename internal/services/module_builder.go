package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/coursecreator/internal/distribute"
	"github.com/Lllllllleong/coursecreator/internal/gcp"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/models"
)

// CourseModulesOperation is the operation name used for provider selection.
const CourseModulesOperation = "generate course module lesson"

type ModuleBuilderConfig struct {
	ProjectID         string
	VertexAIRegion    string
	CollectionName    string
	LessonConcurrency int
	LLM               LLMConfig
}

type ModuleBuilderFunction struct {
	storageClient *storage.Client
	store         *gcp.CourseStore
	router        *llm.Router
	config        ModuleBuilderConfig
}

func NewModuleBuilder(ctx context.Context) (*ModuleBuilderFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	llmConfig, err := loadLLMConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config := ModuleBuilderConfig{
		ProjectID:         projectID,
		VertexAIRegion:    gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		CollectionName:    gcp.GetEnv("FIRESTORE_COLLECTION", "courses"),
		LessonConcurrency: gcp.GetEnvInt("LESSON_CONCURRENCY", DefaultLessonConcurrency),
		LLM:               *llmConfig,
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.LLM.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	f := &ModuleBuilderFunction{
		storageClient: storageClient,
		store:         gcp.NewCourseStore(firestoreClient, config.CollectionName),
		router:        newRouter(&config.LLM, vertexClient.LessonModel, gcp.LessonSystemPrompt),
		config:        config,
	}
	slog.Info("Module builder logic initialized.", "lessonConcurrency", config.LessonConcurrency)
	return f, nil
}

// Process distributes the course source across modules and generates a
// lesson for each one.
func (f *ModuleBuilderFunction) Process(ctx context.Context, req *models.ModuleBuilderRequest) (*models.ModuleBuilderResponse, error) {
	logCtx := slog.With("courseId", req.CourseID, "executionId", req.ExecutionID)
	logCtx.Info("Starting module build.")

	if req.CourseID == "" {
		return nil, fmt.Errorf("courseId must be provided")
	}
	course, err := f.store.Get(ctx, req.CourseID)
	if err != nil {
		logCtx.Error("Failed to load course", "error", err)
		return nil, err
	}
	if err := f.store.UpdateStatus(ctx, req.CourseID, models.StatusBuilding, ""); err != nil {
		logCtx.Error("Failed to update status to BUILDING", "error", err)
		return nil, err
	}

	sourceURI := req.SourceURI
	if sourceURI == "" {
		sourceURI = course.SourceURI
	}
	content, err := gcp.ReadSource(ctx, f.storageClient, sourceURI)
	if err != nil {
		return nil, failCourse(ctx, logCtx, f.store, req.CourseID, "failed to read course source", err)
	}

	moduleCount := ResolveModuleCount(req.ModuleCount, course)
	assignments, strategy, err := distribute.Distribute(content, moduleCount)
	if err != nil {
		return nil, failCourse(ctx, logCtx, f.store, req.CourseID, "failed to distribute content", err)
	}
	var detail string
	valid := distribute.Validate(assignments, content)
	if !valid {
		detail = strings.Join(distribute.Inspect(assignments, content).Violations, "; ")
	}
	logCtx = logCtx.With("moduleCount", moduleCount, "strategy", strategy)
	logCtx.Info("Content distributed.", "valid", valid)

	request := f.router.For(CourseModulesOperation, len(content)/moduleCount)
	builder := &LessonBuilder{Request: request, Concurrency: f.config.LessonConcurrency}
	modules, fallbacks := builder.Build(ctx, assignments, ModuleTitles(course.Analysis, moduleCount))

	if err := f.store.SaveModules(ctx, req.CourseID, modules); err != nil {
		return nil, failCourse(ctx, logCtx, f.store, req.CourseID, "failed to save modules", err)
	}

	logCtx.Info("Module build complete.", "fallbackLessons", fallbacks)
	return &models.ModuleBuilderResponse{
		Status:             "SUCCESS",
		ModuleCount:        len(modules),
		FallbackLessons:    fallbacks,
		DistributionValid:  valid,
		DistributionDetail: detail,
	}, nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/Lllllllleong/coursecreator/internal/gcp"
	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/pipeline"
)

// CourseAnalyzerConfig holds all configuration for the analyzer service.
type CourseAnalyzerConfig struct {
	ProjectID      string
	VertexAIRegion string
	ArtifactBucket string
	CollectionName string
	LLM            LLMConfig
}

// CourseAnalyzerFunction holds the dependencies for the analysis logic.
type CourseAnalyzerFunction struct {
	storageClient *storage.Client
	store         *gcp.CourseStore
	analyzer      *Analyzer
	config        CourseAnalyzerConfig
}

func loadAnalyzerConfig() (*CourseAnalyzerConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	artifactBucket := gcp.GetEnv("ARTIFACT_BUCKET", "")
	if artifactBucket == "" {
		return nil, fmt.Errorf("ARTIFACT_BUCKET environment variable must be set")
	}
	llmConfig, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	return &CourseAnalyzerConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ArtifactBucket: artifactBucket,
		CollectionName: gcp.GetEnv("FIRESTORE_COLLECTION", "courses"),
		LLM:            *llmConfig,
	}, nil
}

// NewCourseAnalyzer creates a new CourseAnalyzerFunction instance.
func NewCourseAnalyzer(ctx context.Context) (*CourseAnalyzerFunction, error) {
	config, err := loadAnalyzerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.LLM.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	analyzer := &Analyzer{
		Router:    newRouter(&config.LLM, vertexClient.AnalyzerModel, gcp.AnalyzerSystemPrompt),
		Processor: pipeline.NewProcessor(config.LLM.BatchSize, config.LLM.BatchDelay),
		Chunking:  config.LLM.Chunking,
	}

	slog.Info("Course analyzer logic initialized.", "collection", config.CollectionName)
	return &CourseAnalyzerFunction{
		storageClient: storageClient,
		store:         gcp.NewCourseStore(firestoreClient, config.CollectionName),
		analyzer:      analyzer,
		config:        *config,
	}, nil
}

// Process analyzes one course's source text and persists the result.
func (f *CourseAnalyzerFunction) Process(ctx context.Context, req *models.CourseAnalyzerRequest) (*models.CourseAnalyzerResponse, error) {
	logCtx := slog.With("courseId", req.CourseID, "executionId", req.ExecutionID)
	logCtx.Info("Starting course analysis.")

	if req.CourseID == "" {
		return nil, fmt.Errorf("courseId must be provided")
	}
	if err := f.store.UpdateStatus(ctx, req.CourseID, models.StatusAnalyzing, ""); err != nil {
		logCtx.Error("Failed to update status to ANALYZING", "error", err)
		return nil, err
	}

	sourceURI := req.SourceURI
	if sourceURI == "" {
		course, err := f.store.Get(ctx, req.CourseID)
		if err != nil {
			return nil, f.handleError(ctx, logCtx, req.CourseID, "failed to load course", err)
		}
		sourceURI = course.SourceURI
	}
	content, err := gcp.ReadSource(ctx, f.storageClient, sourceURI)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, req.CourseID, "failed to read course source", err)
	}
	logCtx = logCtx.With("sourceChars", len(content))

	analysis, run := f.analyzer.Analyze(ctx, content)
	logCtx.Info("Analysis produced.",
		"provider", run.Provider,
		"rung", run.Rung,
		"totalChunks", run.TotalChunks,
		"successfulChunks", run.SuccessfulChunks,
		"fallback", analysis.Fallback,
	)

	analysisURI, err := f.saveArtifact(ctx, req, analysis)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, req.CourseID, "failed to save analysis artifact", err)
	}
	if _, err := f.store.SaveAnalysis(ctx, req.CourseID, analysis, analysisURI); err != nil {
		return nil, f.handleError(ctx, logCtx, req.CourseID, "failed to save analysis", err)
	}

	logCtx.Info("Course analysis complete.", "analysisUri", analysisURI)
	return &models.CourseAnalyzerResponse{
		Status:           "SUCCESS",
		Fallback:         analysis.Fallback,
		TotalChunks:      run.TotalChunks,
		SuccessfulChunks: run.SuccessfulChunks,
		AnalysisURI:      analysisURI,
	}, nil
}

// saveArtifact writes the analysis JSON once per execution.
func (f *CourseAnalyzerFunction) saveArtifact(ctx context.Context, req *models.CourseAnalyzerRequest, analysis models.ParsedAnalysis) (string, error) {
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}
	runID := req.ExecutionID
	if runID == "" {
		runID = uuid.NewString()
	}
	objectName := fmt.Sprintf("%s/analysis/%s.json", req.CourseID, gcp.SanitizeFieldName(runID))
	if err := gcp.SaveToGCSAtomically(ctx, f.storageClient.Bucket(f.config.ArtifactBucket), objectName, string(data)); err != nil {
		return "", err
	}
	return gcp.GCSURI(f.config.ArtifactBucket, objectName), nil
}

func (f *CourseAnalyzerFunction) handleError(ctx context.Context, logCtx *slog.Logger, courseID, message string, originalErr error) error {
	return failCourse(ctx, logCtx, f.store, courseID, message, originalErr)
}

// failCourse logs the failure and records it on the course document.
func failCourse(ctx context.Context, logCtx *slog.Logger, store *gcp.CourseStore, courseID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := store.UpdateStatus(ctx, courseID, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s", fullError)
}

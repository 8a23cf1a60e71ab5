package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/avast/retry-go/v4"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/coursecreator/internal/gcp"
	"github.com/Lllllllleong/coursecreator/internal/models"
)

// Source kinds accepted by the ingest function.
const (
	SourceKindPDF      = "pdf"
	SourceKindMarkdown = "markdown"
	SourceKindText     = "text"
)

type SourceIngestConfig struct {
	ProjectID          string
	VertexAIRegion     string
	SourceBucket       string
	CollectionName     string
	WorkflowID         string
	WorkflowLocation   string
	MaxPDFPages        int
	DefaultModuleCount int
	GeminiModel        string
}

type SourceIngestFunction struct {
	storageClient    *storage.Client
	store            *gcp.CourseStore
	executionsClient *executions.Client
	vertexClient     *gcp.VertexClient
	config           SourceIngestConfig
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewSourceIngest(ctx context.Context) (*SourceIngestFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := SourceIngestConfig{
		ProjectID:          projectID,
		VertexAIRegion:     gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		SourceBucket:       gcp.GetEnv("SOURCE_BUCKET", ""),
		CollectionName:     gcp.GetEnv("FIRESTORE_COLLECTION", "courses"),
		WorkflowLocation:   gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:         gcp.GetEnv("WORKFLOW_ID", "course-generation"),
		MaxPDFPages:        gcp.GetEnvInt("MAX_PDF_PAGES", 300),
		DefaultModuleCount: gcp.GetEnvInt("DEFAULT_MODULE_COUNT", 0),
		GeminiModel:        gcp.GetEnv("GEMINI_MODEL", ""),
	}
	if config.SourceBucket == "" {
		return nil, fmt.Errorf("SOURCE_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	f := &SourceIngestFunction{
		storageClient:    storageClient,
		store:            gcp.NewCourseStore(firestoreClient, config.CollectionName),
		executionsClient: executionsClient,
		vertexClient:     vertexClient,
		config:           config,
	}
	slog.Info("Source ingest logic initialized.", "workflowId", config.WorkflowID)
	return f, nil
}

// SourceKind classifies an uploaded object by extension. Unsupported files
// return "".
func SourceKind(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return SourceKindPDF
	case ".md", ".markdown":
		return SourceKindMarkdown
	case ".txt":
		return SourceKindText
	}
	return ""
}

func (f *SourceIngestFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	kind := SourceKind(e.Name)
	if kind == "" {
		logCtx.Info("Unsupported source type. Skipping.")
		return nil
	}
	logCtx = logCtx.With("sourceKind", kind)
	logCtx.Info("Processing new source upload.")

	tempDir, err := os.MkdirTemp("", "source-ingest-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, "source"+path.Ext(e.Name))
	if err := f.streamGCSObject(ctx, e.Bucket, e.Name, localPath); err != nil {
		logCtx.Error("Failed to download source", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(localPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, isDuplicate, err := f.store.FindBySourceHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate source detected. Skipping.", "existingCourseId", existingID)
		return nil
	}

	courseID, err := f.store.Create(ctx, models.Course{
		SourceHash:       fileHash,
		OriginalFilename: e.Name,
		ModuleCount:      f.config.DefaultModuleCount,
		Status:           models.StatusReceived,
	})
	if err != nil {
		logCtx.Error("Failed to create course document", "error", err)
		return err
	}
	logCtx = logCtx.With("courseId", courseID)
	logCtx.Info("Created course document in Firestore.")

	var content string
	var pageCount int
	if kind == SourceKindPDF {
		content, pageCount, err = f.extractPDF(ctx, logCtx, courseID, localPath)
	} else {
		content, err = readTextSource(localPath)
	}
	if err != nil {
		return failCourse(ctx, logCtx, f.store, courseID, "failed to extract source text", err)
	}

	objectName := courseID + "/source.md"
	if err := gcp.SaveToGCSAtomically(ctx, f.storageClient.Bucket(f.config.SourceBucket), objectName, content); err != nil {
		return failCourse(ctx, logCtx, f.store, courseID, "failed to save source text", err)
	}
	sourceURI := gcp.GCSURI(f.config.SourceBucket, objectName)

	err = f.store.Update(ctx, courseID,
		firestore.Update{Path: "sourceUri", Value: sourceURI},
		firestore.Update{Path: "sourceChars", Value: len(content)},
		firestore.Update{Path: "pageCount", Value: pageCount},
		firestore.Update{Path: "status", Value: models.StatusIngested},
	)
	if err != nil {
		return failCourse(ctx, logCtx, f.store, courseID, "failed to update status to INGESTED", err)
	}
	logCtx.Info("Source text ready.", "sourceUri", sourceURI, "sourceChars", len(content))

	if err := f.triggerWorkflow(ctx, logCtx, courseID, sourceURI); err != nil {
		return err
	}
	logCtx.Info("Hand-off to workflow complete.")
	return nil
}

// extractPDF validates the PDF, uploads the optimized copy and has Gemini
// convert it to markdown.
func (f *SourceIngestFunction) extractPDF(ctx context.Context, logCtx *slog.Logger, courseID, source string) (string, int, error) {
	optimized := filepath.Join(filepath.Dir(source), "optimized.pdf")
	if err := optimizePDF(source, optimized); err != nil {
		return "", 0, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return "", 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if f.config.MaxPDFPages > 0 && pageCount > f.config.MaxPDFPages {
		return "", pageCount, fmt.Errorf("PDF has %d pages, limit is %d", pageCount, f.config.MaxPDFPages)
	}
	logCtx.Info("PDF optimized locally.", "pageCount", pageCount)

	objectName := courseID + "/original.pdf"
	if err := f.uploadFile(ctx, optimized, objectName); err != nil {
		return "", pageCount, err
	}

	markdown, err := f.vertexClient.ExtractPDF(ctx, gcp.GCSURI(f.config.SourceBucket, objectName))
	if err != nil {
		return "", pageCount, err
	}
	return markdown, pageCount, nil
}

func (f *SourceIngestFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, courseID, sourceURI string) error {
	logCtx.Info("Triggering workflow.")
	wf := gcp.WorkflowRef{ProjectID: f.config.ProjectID, Location: f.config.WorkflowLocation, ID: f.config.WorkflowID}
	execName, err := gcp.TriggerWorkflow(ctx, f.executionsClient, wf, models.WorkflowArgument{
		CourseID:    courseID,
		SourceURI:   sourceURI,
		ModuleCount: f.config.DefaultModuleCount,
	})
	if err != nil {
		return failCourse(ctx, logCtx, f.store, courseID, "failed to trigger workflow execution", err)
	}
	if err := f.store.Update(ctx, courseID, firestore.Update{Path: "workflowExecutionId", Value: execName}); err != nil {
		logCtx.Warn("Failed to record workflow execution", "executionName", execName, "error", err)
	}
	return nil
}

// readTextSource loads a markdown or text upload.
func readTextSource(localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("source file is not valid UTF-8")
	}
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return "", fmt.Errorf("source file is empty")
	}
	return content, nil
}

func (f *SourceIngestFunction) streamGCSObject(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := f.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

func (f *SourceIngestFunction) uploadFile(ctx context.Context, localPath, destObject string) error {
	err := retry.Do(
		func() error {
			localFileReader, err := os.Open(localPath)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("could not open local file %s: %w", localPath, err))
			}
			defer localFileReader.Close()

			writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
			defer cancel()

			gcsWriter := f.storageClient.Bucket(f.config.SourceBucket).Object(destObject).NewWriter(writeCtx)
			if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
				_ = gcsWriter.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := gcsWriter.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Upload failed, will retry.", "gcsObject", destObject, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("upload for %s failed after all retries: %w", destObject, err)
	}
	return nil
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

// MaxInlineBytes is the largest encoded analysis or module list kept inside
// the course document. Firestore rejects documents over 1 MiB.
const MaxInlineBytes = 900 * 1024

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// CourseStore reads and writes course documents in one collection.
type CourseStore struct {
	client     *firestore.Client
	collection string
}

func NewCourseStore(client *firestore.Client, collection string) *CourseStore {
	return &CourseStore{client: client, collection: collection}
}

func (s *CourseStore) doc(courseID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(courseID)
}

// FindBySourceHash returns the ID of a course created from the same source bytes.
func (s *CourseStore) FindBySourceHash(ctx context.Context, hash string) (string, bool, error) {
	docs, err := s.client.Collection(s.collection).Where("sourceHash", "==", hash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

// Create adds a new course document and returns its ID.
func (s *CourseStore) Create(ctx context.Context, course models.Course) (string, error) {
	now := time.Now()
	course.CreatedAt, course.UpdatedAt = now, now
	ref, _, err := s.client.Collection(s.collection).Add(ctx, course)
	if err != nil {
		return "", fmt.Errorf("failed to create course document: %w", err)
	}
	return ref.ID, nil
}

// Get loads a course document.
func (s *CourseStore) Get(ctx context.Context, courseID string) (*models.Course, error) {
	snap, err := s.doc(courseID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get course %s: %w", courseID, err)
	}
	var course models.Course
	if err := snap.DataTo(&course); err != nil {
		return nil, fmt.Errorf("failed to decode course %s: %w", courseID, err)
	}
	return &course, nil
}

// Update applies field updates and bumps updatedAt.
func (s *CourseStore) Update(ctx context.Context, courseID string, updates ...firestore.Update) error {
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now()})
	if _, err := s.doc(courseID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update course %s: %w", courseID, err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status, with error details when given.
func (s *CourseStore) UpdateStatus(ctx context.Context, courseID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	return s.Update(ctx, courseID, updates...)
}

// SaveAnalysis stores the analysis and marks the course ANALYZED. An analysis
// too large for the document is left in GCS and only its URI is stored. It
// reports whether the analysis was stored inline.
func (s *CourseStore) SaveAnalysis(ctx context.Context, courseID string, analysis models.ParsedAnalysis, analysisURI string) (bool, error) {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusAnalyzed},
		{Path: "analysisUri", Value: analysisURI},
	}

	inline, err := fitsInline(analysis)
	if err != nil {
		return false, err
	}
	if inline {
		analysis.Extra = SanitizeFieldNames(analysis.Extra)
		updates = append(updates, firestore.Update{Path: "analysis", Value: analysis})
	} else {
		slog.Warn("Analysis too large for course document, keeping GCS copy only.", "courseId", courseID, "analysisUri", analysisURI)
	}
	return inline, s.Update(ctx, courseID, updates...)
}

// SaveModules stores generated modules and marks the course COMPLETE. When the
// list is too large the assigned source text is dropped from each module.
func (s *CourseStore) SaveModules(ctx context.Context, courseID string, modules []models.Module) error {
	inline, err := fitsInline(modules)
	if err != nil {
		return err
	}
	if !inline {
		trimmed := make([]models.Module, len(modules))
		for i, m := range modules {
			m.Assignment.Content = ""
			trimmed[i] = m
		}
		modules = trimmed
		slog.Warn("Modules too large for course document, dropping assigned source text.", "courseId", courseID)
	}
	return s.Update(ctx, courseID,
		firestore.Update{Path: "modules", Value: modules},
		firestore.Update{Path: "moduleCount", Value: len(modules)},
		firestore.Update{Path: "status", Value: models.StatusComplete},
	)
}

func fitsInline(v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode document payload: %w", err)
	}
	return len(data) <= MaxInlineBytes, nil
}

var (
	illegalFieldChars = strings.NewReplacer(".", "_", "/", "_", "[", "_", "]", "_", "*", "_", "~", "_", "`", "_")
	reservedFieldName = regexp.MustCompile(`^__.*__$`)
)

// SanitizeFieldName makes a free-form key usable as a Firestore field name.
func SanitizeFieldName(key string) string {
	key = illegalFieldChars.Replace(key)
	if key == "" {
		return "_empty"
	}
	if reservedFieldName.MatchString(key) {
		return "_" + strings.Trim(key, "_")
	}
	return key
}

// SanitizeFieldNames returns a copy of m with every nested map key sanitized.
// Keys that collide after sanitizing keep the first value in sorted order.
func SanitizeFieldNames(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for _, k := range sortedKeys(m) {
		key := SanitizeFieldName(k)
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = sanitizeValue(m[k])
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return SanitizeFieldNames(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// sourceSeparator is written between source objects when they are joined.
const sourceSeparator = "\n\n"

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// It's a shared utility for all services.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, object, nil
}

// GCSURI formats a gs:// URI.
func GCSURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ReadObject returns the full contents of an object.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) (string, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return string(data), nil
}

// ListObjects returns the sorted names of objects under prefix with one of
// the given suffixes. An empty suffix list matches everything.
func ListObjects(ctx context.Context, client *storage.Client, bucket, prefix string, suffixes ...string) ([]string, error) {
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if matchesSuffix(attrs.Name, suffixes) {
			names = append(names, attrs.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func matchesSuffix(name string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// ReadSource loads course source text from a URI. A URI ending in "/" is a
// prefix: every .md and .txt object under it is read in name order and joined
// with blank lines.
func ReadSource(ctx context.Context, client *storage.Client, uri string) (string, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return "", err
	}
	if object != "" && !strings.HasSuffix(object, "/") {
		return ReadObject(ctx, client, bucket, object)
	}

	names, err := ListObjects(ctx, client, bucket, object, ".md", ".txt")
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no source objects under %s", uri)
	}

	parts := make([]string, 0, len(names))
	for _, name := range names {
		text, err := ReadObject(ctx, client, bucket, name)
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, sourceSeparator), nil
}

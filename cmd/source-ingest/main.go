package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/coursecreator/internal/services"
)

var (
	ingestInstance *services.SourceIngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework will handle routing the event here.
	functions.CloudEvent("IngestSource", ingestSource)
}

// main is required by the Go Functions Framework.
func main() {}

// ingestSource is the Cloud Function entry point for GCS finalize events.
func ingestSource(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ingestInstance, initErr = services.NewSourceIngest(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The error is already logged with context within Process.
	return ingestInstance.Process(ctx, gcsEvent)
}

// Package pipeline runs one model request per chunk and folds the partial
// analyses back into a single result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/repair"
)

const (
	DefaultBatchSize  = 3
	DefaultBatchDelay = time.Second
)

// Processor sends chunks upstream in sequential batches. At most BatchSize
// requests are in flight at once.
type Processor struct {
	BatchSize  int
	BatchDelay time.Duration
}

// NewProcessor returns a Processor, substituting defaults for non-positive
// values.
func NewProcessor(batchSize int, batchDelay time.Duration) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchDelay < 0 {
		batchDelay = DefaultBatchDelay
	}
	return &Processor{BatchSize: batchSize, BatchDelay: batchDelay}
}

// Process requests every chunk and returns one result per chunk in chunk
// order. A failed request or an unparseable response marks only that chunk
// as unprocessed. If ctx is cancelled between batches the remaining chunks
// are marked failed with the context error.
func (p *Processor) Process(ctx context.Context, chunks []models.Chunk, operation string, request llm.RequestFunc) []models.ChunkResult {
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results := make([]models.ChunkResult, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		if start > 0 {
			if err := sleep(ctx, p.BatchDelay); err != nil {
				for i := start; i < len(chunks); i++ {
					results[i] = failed(chunks[i], fmt.Errorf("processing stopped: %w", err))
				}
				slog.Warn("Chunk processing cancelled.", "operation", operation, "remaining", len(chunks)-start)
				break
			}
		}

		end := min(start+batchSize, len(chunks))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("chunk %d request panicked: %v", chunks[i].ChunkNumber, r)
						results[i] = failed(chunks[i], err)
					}
				}()
				results[i] = processChunk(ctx, chunks[i], operation, request)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			slog.Error("Chunk marked failed after panic.", "operation", operation, "error", err)
		}
		slog.Debug("Chunk batch settled.", "operation", operation, "from", start+1, "to", end, "total", len(chunks))
	}
	return results
}

func processChunk(ctx context.Context, chunk models.Chunk, operation string, request llm.RequestFunc) models.ChunkResult {
	raw, err := request(ctx, BuildChunkPrompt(operation, chunk))
	if err != nil {
		slog.Warn("Chunk request failed.", "operation", operation, "chunkNumber", chunk.ChunkNumber, "error", err)
		return failed(chunk, err)
	}

	analysis, rung := repair.ParseWithRung(raw)
	if analysis.Fallback {
		res := failed(chunk, fmt.Errorf("response could not be repaired: %s", analysis.Error))
		res.Raw = raw
		return res
	}
	if rung != repair.RungDirect {
		slog.Debug("Chunk response repaired.", "chunkNumber", chunk.ChunkNumber, "rung", rung)
	}

	return models.ChunkResult{
		ChunkID:     chunk.ID,
		ChunkNumber: chunk.ChunkNumber,
		Processed:   true,
		Result:      &analysis,
		Raw:         raw,
		Timestamp:   now(),
	}
}

func failed(chunk models.Chunk, err error) models.ChunkResult {
	return models.ChunkResult{
		ChunkID:     chunk.ID,
		ChunkNumber: chunk.ChunkNumber,
		Processed:   false,
		Error:       err.Error(),
		Timestamp:   now(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

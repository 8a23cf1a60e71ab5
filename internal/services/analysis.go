package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/coursecreator/internal/chunking"
	"github.com/Lllllllleong/coursecreator/internal/insights"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/pipeline"
	"github.com/Lllllllleong/coursecreator/internal/repair"
)

// AnalyzeOperation is the task line sent with every analysis request.
const AnalyzeOperation = "analyze this source material for course creation"

// AnalysisRun describes how an analysis was produced.
type AnalysisRun struct {
	Provider         llm.ProviderID
	TotalChunks      int
	SuccessfulChunks int
	Rung             string
}

// Analyzer turns source text into a ParsedAnalysis. It always returns a
// usable analysis; failures surface as Fallback on the result.
type Analyzer struct {
	Router    *llm.Router
	Processor *pipeline.Processor
	// Chunking overrides the selected provider's budget when set.
	Chunking *chunking.Config
}

func (a *Analyzer) Analyze(ctx context.Context, content string) (models.ParsedAnalysis, AnalysisRun) {
	var run AnalysisRun

	provider, err := a.Router.Select(AnalyzeOperation, len(content))
	if err != nil {
		return insights.FallbackAnalysis(content, err.Error()), run
	}
	run.Provider = provider

	budget := provider.Budget()
	if a.Chunking != nil {
		budget = *a.Chunking
	}
	// Requests never exceed the budget, so failover only reaches providers
	// that can hold a full chunk.
	request := a.Router.Failover(AnalyzeOperation, provider, min(len(content), budget.MaxChunkSize))

	if len(content) <= budget.MaxChunkSize {
		return a.analyzeWhole(ctx, content, request, run)
	}

	chunks, err := chunking.Split(content, budget)
	if err != nil {
		return insights.FallbackAnalysis(content, err.Error()), run
	}
	run.TotalChunks = len(chunks)

	processor := a.Processor
	if processor == nil {
		processor = pipeline.NewProcessor(pipeline.DefaultBatchSize, pipeline.DefaultBatchDelay)
	}
	results := processor.Process(ctx, chunks, AnalyzeOperation, request)
	for _, r := range results {
		if r.Processed {
			run.SuccessfulChunks++
		}
	}

	merged, err := pipeline.Merge(results, AnalyzeOperation)
	if errors.Is(err, pipeline.ErrNoSuccessfulChunks) {
		slog.Warn("All chunks failed, using content-derived fallback.", "chunks", len(chunks))
		fb := insights.FallbackAnalysis(content, err.Error())
		fb.ChunkProcessingInfo = &models.ChunkProcessingInfo{
			TotalChunks:         len(results),
			FailedChunks:        len(results),
			ProcessingTimestamp: fb.Timestamp,
		}
		return fb, run
	}
	if err != nil {
		return insights.FallbackAnalysis(content, err.Error()), run
	}
	run.Rung = "merged"
	return merged, run
}

func (a *Analyzer) analyzeWhole(ctx context.Context, content string, request llm.RequestFunc, run AnalysisRun) (models.ParsedAnalysis, AnalysisRun) {
	run.TotalChunks = 1

	raw, err := request(ctx, pipeline.BuildDocumentPrompt(AnalyzeOperation, content))
	if err != nil {
		return insights.FallbackAnalysis(content, fmt.Sprintf("analysis request failed: %v", err)), run
	}

	parsed, rung := repair.ParseWithRung(raw)
	run.Rung = rung
	if parsed.Fallback {
		fb := insights.FallbackAnalysis(content, parsed.Error)
		fb.RawResponse = parsed.RawResponse
		return fb, run
	}
	run.SuccessfulChunks = 1
	return parsed, run
}

package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Lllllllleong/coursecreator/internal/chunking"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/pipeline"
)

const smallSource = `Distributed systems coordinate many machines to act as one service.
Consensus protocols keep replicas in agreement even when some of them fail.

For example, a leader based protocol elects one node to order every write.`

func testAnalyzer(fn llm.RequestFunc, chunkCfg *chunking.Config) *Analyzer {
	router := llm.NewRouter(nil)
	router.Use(llm.Retrying(llm.RetryConfig{Attempts: 1}))
	router.Register(llm.ProviderOpenAI, fn)
	return &Analyzer{
		Router:    router,
		Processor: pipeline.NewProcessor(3, 0),
		Chunking:  chunkCfg,
	}
}

func TestAnalyze_SingleRequest(t *testing.T) {
	calls := 0
	a := testAnalyzer(func(ctx context.Context, prompt string) (string, error) {
		calls++
		if !strings.Contains(prompt, "--- SOURCE START ---") {
			t.Errorf("expected a whole-document prompt, got %q", prompt)
		}
		return "```json\n" + `{"sourceAnalysis": {"keyClaims": ["Consensus keeps replicas aligned"]}}` + "\n```", nil
	}, nil)

	analysis, run := a.Analyze(context.Background(), smallSource)
	if calls != 1 {
		t.Fatalf("expected 1 request, got %d", calls)
	}
	if analysis.Fallback {
		t.Fatalf("unexpected fallback: %s", analysis.Error)
	}
	if want := []string{"Consensus keeps replicas aligned"}; !reflect.DeepEqual(analysis.SourceAnalysis.KeyClaims, want) {
		t.Fatalf("keyClaims = %v, want %v", analysis.SourceAnalysis.KeyClaims, want)
	}
	if run.Provider != llm.ProviderOpenAI || run.TotalChunks != 1 || run.SuccessfulChunks != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestAnalyze_RequestFailureUsesContentFallback(t *testing.T) {
	a := testAnalyzer(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("invalid api key")
	}, nil)

	analysis, run := a.Analyze(context.Background(), smallSource)
	if !analysis.Fallback {
		t.Fatal("expected fallback analysis")
	}
	if !strings.Contains(analysis.Error, "invalid api key") {
		t.Fatalf("error = %q, want upstream cause", analysis.Error)
	}
	if len(analysis.SourceAnalysis.KeyClaims) == 0 || !strings.Contains(analysis.SourceAnalysis.KeyClaims[0], "Distributed systems") {
		t.Fatalf("expected claims drawn from the source, got %v", analysis.SourceAnalysis.KeyClaims)
	}
	if run.SuccessfulChunks != 0 {
		t.Fatalf("successfulChunks = %d, want 0", run.SuccessfulChunks)
	}
}

func TestAnalyze_UnparseableResponseUsesContentFallback(t *testing.T) {
	a := testAnalyzer(func(ctx context.Context, prompt string) (string, error) {
		return "Sorry, no JSON today.", nil
	}, nil)

	analysis, run := a.Analyze(context.Background(), smallSource)
	if !analysis.Fallback || analysis.RawResponse == "" {
		t.Fatalf("expected fallback carrying the raw response, got %+v", analysis)
	}
	if run.Rung == "" {
		t.Fatal("expected the repair rung to be reported")
	}
}

func TestAnalyze_ChunkedMerge(t *testing.T) {
	content := strings.Repeat("Consensus keeps replicas in agreement. ", 150)
	cfg := &chunking.Config{MaxChunkSize: 2000, Overlap: 100, MinChunkSize: 500, MaxChunks: 20}

	a := testAnalyzer(func(ctx context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "--- SOURCE PART START ---") {
			t.Errorf("expected a chunk prompt")
		}
		return `{"sourceAnalysis": {"keyTerms": ["consensus"]}}`, nil
	}, cfg)

	analysis, run := a.Analyze(context.Background(), content)
	if analysis.Fallback {
		t.Fatalf("unexpected fallback: %s", analysis.Error)
	}
	if run.TotalChunks < 2 || run.SuccessfulChunks != run.TotalChunks {
		t.Fatalf("unexpected run %+v", run)
	}
	if want := []string{"consensus"}; !reflect.DeepEqual(analysis.SourceAnalysis.KeyTerms, want) {
		t.Fatalf("keyTerms = %v, want %v", analysis.SourceAnalysis.KeyTerms, want)
	}
	info := analysis.ChunkProcessingInfo
	if info == nil || info.TotalChunks != run.TotalChunks || info.FailedChunks != 0 {
		t.Fatalf("unexpected chunk info %+v", info)
	}
}

func TestAnalyze_AllChunksFailed(t *testing.T) {
	content := strings.Repeat("Consensus keeps replicas in agreement. ", 150)
	cfg := &chunking.Config{MaxChunkSize: 2000, Overlap: 100, MinChunkSize: 500, MaxChunks: 20}

	a := testAnalyzer(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("503 unavailable")
	}, cfg)

	analysis, run := a.Analyze(context.Background(), content)
	if !analysis.Fallback {
		t.Fatal("expected fallback analysis")
	}
	if !strings.Contains(analysis.Error, pipeline.ErrNoSuccessfulChunks.Error()) {
		t.Fatalf("error = %q", analysis.Error)
	}
	info := analysis.ChunkProcessingInfo
	if info == nil || info.FailedChunks != run.TotalChunks || info.SuccessfulChunks != 0 {
		t.Fatalf("unexpected chunk info %+v", info)
	}
}

func TestAnalyze_NoProvider(t *testing.T) {
	a := &Analyzer{Router: llm.NewRouter(nil)}
	analysis, _ := a.Analyze(context.Background(), smallSource)
	if !analysis.Fallback || !strings.Contains(analysis.Error, llm.ErrNoProvider.Error()) {
		t.Fatalf("expected no-provider fallback, got %q", analysis.Error)
	}
}

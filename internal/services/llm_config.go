package services

import (
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/time/rate"

	"github.com/Lllllllleong/coursecreator/internal/chunking"
	"github.com/Lllllllleong/coursecreator/internal/gcp"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/pipeline"
	"github.com/Lllllllleong/coursecreator/internal/providers"
)

// LLMConfig holds the model and request settings shared by the course functions.
type LLMConfig struct {
	OpenAIAPIKey      string
	OpenAIModel       string
	GeminiModel       string
	Retry             llm.RetryConfig
	RequestsPerMinute int
	BatchSize         int
	BatchDelay        time.Duration
	Chunking          *chunking.Config
}

func loadLLMConfig() (*LLMConfig, error) {
	attempts := gcp.GetEnvInt("LLM_MAX_ATTEMPTS", int(llm.DefaultRetryConfig.Attempts))
	if attempts < 1 {
		return nil, fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", attempts)
	}

	cfg := &LLMConfig{
		OpenAIAPIKey: gcp.GetEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  gcp.GetEnv("OPENAI_MODEL", ""),
		GeminiModel:  gcp.GetEnv("GEMINI_MODEL", ""),
		Retry: llm.RetryConfig{
			Attempts:  uint(attempts),
			Timeout:   gcp.GetEnvDuration("LLM_TIMEOUT", llm.DefaultRetryConfig.Timeout),
			BaseDelay: llm.DefaultRetryConfig.BaseDelay,
		},
		RequestsPerMinute: gcp.GetEnvInt("LLM_RPM", 0),
		BatchSize:         gcp.GetEnvInt("BATCH_SIZE", pipeline.DefaultBatchSize),
		BatchDelay:        gcp.GetEnvDuration("BATCH_DELAY", pipeline.DefaultBatchDelay),
	}

	// Chunk sizes follow the selected provider unless CHUNK_MAX_SIZE is set.
	if maxSize := gcp.GetEnvInt("CHUNK_MAX_SIZE", 0); maxSize > 0 {
		chunkCfg := chunking.Config{
			MaxChunkSize: maxSize,
			Overlap:      gcp.GetEnvInt("CHUNK_OVERLAP", chunking.DefaultOverlap),
			MinChunkSize: gcp.GetEnvInt("CHUNK_MIN_SIZE", chunking.DefaultMinChunkSize),
			MaxChunks:    gcp.GetEnvInt("CHUNK_MAX_COUNT", chunking.DefaultMaxChunks),
		}
		if err := chunkCfg.Validate(); err != nil {
			return nil, err
		}
		cfg.Chunking = &chunkCfg
	}
	return cfg, nil
}

// limiter returns the shared request pacer, or nil when unpaced.
func (c *LLMConfig) limiter() *rate.Limiter {
	return llm.PerMinute(c.RequestsPerMinute)
}

// newRouter registers Gemini through model and OpenAI when a key is configured.
// Every provider call is paced and retried on its own.
func newRouter(cfg *LLMConfig, model *genai.GenerativeModel, openAISystem string) *llm.Router {
	router := llm.NewRouter(llm.DefaultSelector)
	router.Use(llm.Retrying(cfg.Retry), llm.RateLimited(cfg.limiter()))
	if model != nil {
		router.Register(llm.ProviderGemini, gcp.Requester(model))
	}
	if cfg.OpenAIAPIKey != "" {
		client := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Retry.Timeout,
		})
		router.Register(llm.ProviderOpenAI, client.Requester(openAISystem))
	} else {
		slog.Info("OPENAI_API_KEY not set, Gemini is the only provider.")
	}
	return router
}

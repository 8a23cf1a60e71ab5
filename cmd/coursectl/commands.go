package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/coursecreator/internal/chunking"
	"github.com/Lllllllleong/coursecreator/internal/distribute"
	"github.com/Lllllllleong/coursecreator/internal/gcp"
	"github.com/Lllllllleong/coursecreator/internal/insights"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/pipeline"
	"github.com/Lllllllleong/coursecreator/internal/providers"
	"github.com/Lllllllleong/coursecreator/internal/repair"
	"github.com/Lllllllleong/coursecreator/internal/services"
)

const previewLength = 80

type chunkSummary struct {
	ChunkNumber int    `json:"chunkNumber"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
	Size        int    `json:"size"`
	IsComplete  bool   `json:"isComplete"`
	Position    string `json:"position"`
	Preview     string `json:"preview"`
}

var (
	chunkProvider string
	chunkConfig   chunking.Config
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Split source text into request-sized chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readInput(args[0])
		if err != nil {
			return err
		}
		cfg := withBudget(chunkConfig, chunkProvider)
		chunks, err := chunking.Split(content, cfg)
		if err != nil {
			return err
		}

		summaries := make([]chunkSummary, len(chunks))
		for i, ch := range chunks {
			summaries[i] = chunkSummary{
				ChunkNumber: ch.ChunkNumber,
				StartIndex:  ch.StartIndex,
				EndIndex:    ch.EndIndex,
				Size:        ch.Size,
				IsComplete:  ch.IsComplete,
				Position:    pipeline.Position(ch.ChunkNumber, ch.TotalChunks),
				Preview:     preview(ch.Content),
			}
		}
		return output(map[string]any{
			"sourceBytes": len(content),
			"config":      cfg,
			"chunks":      summaries,
		})
	},
}

type assignmentSummary struct {
	ModuleIndex   int    `json:"moduleIndex"`
	PositionLabel string `json:"positionLabel"`
	WordCount     int    `json:"wordCount"`
	Bytes         int    `json:"bytes"`
	Preview       string `json:"preview"`
}

var distributeModules int

var distributeCmd = &cobra.Command{
	Use:   "distribute <file>",
	Short: "Assign source text to course modules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readInput(args[0])
		if err != nil {
			return err
		}
		assignments, strategy, err := distribute.Distribute(content, distributeModules)
		if err != nil {
			return err
		}

		summaries := make([]assignmentSummary, len(assignments))
		for i, a := range assignments {
			summaries[i] = assignmentSummary{
				ModuleIndex:   a.ModuleIndex,
				PositionLabel: a.PositionLabel,
				WordCount:     a.WordCount,
				Bytes:         len(a.Content),
				Preview:       preview(a.Content),
			}
		}
		report := distribute.Inspect(assignments, content)
		return output(map[string]any{
			"strategy":   strategy,
			"valid":      report.Valid(),
			"coverage":   report.Coverage,
			"violations": report.Violations,
			"modules":    summaries,
		})
	},
}

var insightsFallback bool

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Extract key terms, concepts, examples and sections heuristically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readInput(args[0])
		if err != nil {
			return err
		}
		if insightsFallback {
			return output(insights.FallbackAnalysis(content, "generated offline by coursectl"))
		}
		return output(insights.Extract(content))
	},
}

var repairLesson bool

var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Recover structured output from raw model text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(args[0])
		if err != nil {
			return err
		}
		if repairLesson {
			lesson, err := services.ParseLesson(raw)
			if err != nil {
				return err
			}
			return output(lesson)
		}
		analysis, rung := repair.ParseWithRung(raw)
		return output(map[string]any{
			"rung":     rung,
			"analysis": analysis,
		})
	},
}

var (
	analyzeModules int
	analyzeConfig  chunking.Config
)

type analyzeResult struct {
	RunID    string                `json:"runId"`
	Provider llm.ProviderID        `json:"provider"`
	Chunks   int                   `json:"totalChunks"`
	Success  int                   `json:"successfulChunks"`
	Duration string                `json:"duration"`
	Analysis models.ParsedAnalysis `json:"analysis"`
	Modules  []models.Module       `json:"modules,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze source text with OpenAI and optionally build lessons",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key must be set (COURSECTL_OPENAI_API_KEY or coursectl.yaml)")
		}
		content, err := readInput(args[0])
		if err != nil {
			return err
		}

		client := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
			BaseURL: cfg.OpenAIBaseURL,
		})
		// Only OpenAI is reachable offline, so its budget applies at any size.
		onlyOpenAI := func(string, int) llm.ProviderID { return llm.ProviderOpenAI }
		retryCfg := llm.RetryConfig{Attempts: cfg.Attempts, Timeout: cfg.Timeout}
		limiter := llm.PerMinute(cfg.RequestsPerMinute)
		router := llm.NewRouter(onlyOpenAI)
		router.Use(llm.Retrying(retryCfg), llm.RateLimited(limiter))
		router.Register(llm.ProviderOpenAI, client.Requester(gcp.AnalyzerSystemPrompt))
		chunkCfg := withBudget(analyzeConfig, string(llm.ProviderOpenAI))
		analyzer := &services.Analyzer{
			Router:    router,
			Processor: pipeline.NewProcessor(cfg.BatchSize, cfg.BatchDelay),
			Chunking:  &chunkCfg,
		}

		started := time.Now()
		analysis, run := analyzer.Analyze(cmd.Context(), content)
		result := analyzeResult{
			RunID:    uuid.NewString(),
			Provider: run.Provider,
			Chunks:   run.TotalChunks,
			Success:  run.SuccessfulChunks,
			Analysis: analysis,
		}

		if analyzeModules > 0 {
			assignments, _, err := distribute.Distribute(content, analyzeModules)
			if err != nil {
				return err
			}
			distribute.Validate(assignments, content)
			builder := &services.LessonBuilder{
				Request: llm.WithRateLimit(llm.WithRetry(client.Requester(gcp.LessonSystemPrompt), retryCfg), limiter),
			}
			result.Modules, _ = builder.Build(cmd.Context(), assignments, services.ModuleTitles(&analysis, analyzeModules))
		}

		result.Duration = time.Since(started).Round(time.Millisecond).String()
		return output(result)
	},
}

func init() {
	chunkCmd.Flags().StringVar(&chunkProvider, "provider", string(llm.ProviderOpenAI), "provider budget to use: openai or gemini")
	chunkFlags(chunkCmd, &chunkConfig)

	distributeCmd.Flags().IntVarP(&distributeModules, "modules", "m", services.DefaultModuleCount, "number of modules")

	insightsCmd.Flags().BoolVar(&insightsFallback, "fallback", false, "print the full fallback analysis instead of raw insights")

	repairCmd.Flags().BoolVar(&repairLesson, "lesson", false, "treat input as a lesson object and validate it")

	analyzeCmd.Flags().IntVarP(&analyzeModules, "modules", "m", 0, "also build this many module lessons")
	chunkFlags(analyzeCmd, &analyzeConfig)
}

// preview returns the first line of s, cut to previewLength runes.
func preview(s string) string {
	s = strings.TrimSpace(s)
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[:nl]
	}
	if r := []rune(s); len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return s
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/coursecreator/internal/chunking"
	"github.com/Lllllllleong/coursecreator/internal/llm"
	"github.com/Lllllllleong/coursecreator/internal/pipeline"
)

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

// config is the operator configuration, read from coursectl.yaml and
// COURSECTL_* environment variables.
type config struct {
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	OpenAIModel       string `mapstructure:"openai_model"`
	OpenAIBaseURL     string `mapstructure:"openai_base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`

	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   uint          `mapstructure:"attempts"`
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

var rootCmd = &cobra.Command{
	Use:   "coursectl",
	Short: "Run the course generation core locally",
	Long: `coursectl runs the course pipeline stages on local files.

Offline commands:
  coursectl chunk source.md          # Split source text into request-sized chunks
  coursectl distribute source.md     # Assign source text to course modules
  coursectl insights source.md       # Heuristic key terms, concepts and examples
  coursectl repair response.txt      # Recover an analysis from raw model output

Online commands (need an OpenAI API key):
  coursectl analyze source.md        # Full analysis, optionally with lessons`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./coursectl.yaml or ~/.coursectl/coursectl.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline decisions to stderr")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		if outputFormat != "yaml" && outputFormat != "json" {
			return fmt.Errorf("unknown output format: %s", outputFormat)
		}
		return initViper(cfgFile)
	}

	rootCmd.AddCommand(chunkCmd, distributeCmd, insightsCmd, repairCmd, analyzeCmd)
}

func initViper(cfgFile string) error {
	viper.SetDefault("openai_api_key", "")
	viper.SetDefault("openai_model", "")
	viper.SetDefault("openai_base_url", "")
	viper.SetDefault("requests_per_minute", 0)
	viper.SetDefault("timeout", llm.DefaultRetryConfig.Timeout)
	viper.SetDefault("attempts", llm.DefaultRetryConfig.Attempts)
	viper.SetDefault("batch_size", pipeline.DefaultBatchSize)
	viper.SetDefault("batch_delay", pipeline.DefaultBatchDelay)

	// Environment variables with COURSECTL_ prefix
	viper.SetEnvPrefix("COURSECTL")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("coursectl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.coursectl")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func loadConfig() (*config, error) {
	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// chunkFlags registers the chunking knobs on cmd. Zero values keep the
// provider budget.
func chunkFlags(cmd *cobra.Command, cfg *chunking.Config) {
	cmd.Flags().IntVar(&cfg.MaxChunkSize, "max-size", 0, "max chunk size in bytes")
	cmd.Flags().IntVar(&cfg.Overlap, "overlap", 0, "overlap between chunks in bytes")
	cmd.Flags().IntVar(&cfg.MinChunkSize, "min-size", 0, "minimum chunk size before a break is accepted")
	cmd.Flags().IntVar(&cfg.MaxChunks, "max-chunks", 0, "maximum number of chunks")
}

// withBudget fills unset fields of cfg from the provider budget.
func withBudget(cfg chunking.Config, provider string) chunking.Config {
	budget := chunking.BudgetFor(provider)
	if cfg.MaxChunkSize > 0 {
		budget.MaxChunkSize = cfg.MaxChunkSize
	}
	if cfg.Overlap > 0 {
		budget.Overlap = cfg.Overlap
	}
	if cfg.MinChunkSize > 0 {
		budget.MinChunkSize = cfg.MinChunkSize
	}
	if cfg.MaxChunks > 0 {
		budget.MaxChunks = cfg.MaxChunks
	}
	return budget
}

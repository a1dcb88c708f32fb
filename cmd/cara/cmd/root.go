// Package cmd provides the CLI commands for the context-aware research
// assistant.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/prajwal-28/context-aware-research-assistant/internal/config"
	"github.com/prajwal-28/context-aware-research-assistant/internal/embed"
	"github.com/prajwal-28/context-aware-research-assistant/internal/llm"
	"github.com/prajwal-28/context-aware-research-assistant/internal/logging"
	"github.com/prajwal-28/context-aware-research-assistant/pkg/version"
)

var (
	flagDataDir string
	flagDebug   bool

	cfg            *config.Config
	loggingCleanup func()
)

// NewRootCmd creates the root command for the cara CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cara",
		Short: "Context-aware research assistant",
		Long: `cara answers questions over your own documents using hybrid
retrieval: vector similarity search combined with knowledge graph
traversal, synthesized into an answer by a local LLM via Ollama.

Get started:
  cara ingest ./docs
  cara query "what is the remote work policy?"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("cara version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.cara)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupConfigAndLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupConfigAndLogging loads configuration and initializes slog before
// any subcommand runs.
func setupConfigAndLogging(_ *cobra.Command, _ []string) error {
	if flagDataDir != "" {
		if err := os.Setenv("CARA_DATA_DIR", flagDataDir); err != nil {
			return err
		}
	}

	dataDir := flagDataDir
	if dataDir == "" {
		if v := os.Getenv("CARA_DATA_DIR"); v != "" {
			dataDir = v
		} else {
			dataDir = config.DefaultDataDir()
		}
	}

	loaded, err := config.Load(filepath.Join(dataDir, config.DefaultConfigName))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = filepath.Join(cfg.Paths.DataDir, "logs", "cara.log")
	}
	if flagDebug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// newQueryEmbedder builds the configured embedder.
func newQueryEmbedder(cmd *cobra.Command) (embed.Embedder, error) {
	return embed.NewEmbedder(cmd.Context(), embed.Options{
		Provider:   embed.ProviderType(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
}

// newCompleter builds the Ollama completer from synthesis config.
func newCompleter() *llm.OllamaCompleter {
	llmCfg := llm.DefaultConfig()
	if cfg.Synthesis.Model != "" {
		llmCfg.Model = cfg.Synthesis.Model
	}
	if cfg.Synthesis.OllamaHost != "" {
		llmCfg.Host = cfg.Synthesis.OllamaHost
	}
	if d, err := time.ParseDuration(cfg.Synthesis.Timeout); err == nil && d > 0 {
		llmCfg.Timeout = d
	}
	return llm.NewOllamaCompleter(llmCfg)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

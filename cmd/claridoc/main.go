package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"claridoc/internal/config"
	"claridoc/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration
	plain      bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claridoc",
	Short: "claridoc - documents you edit together with an AI assistant",
	Long: `claridoc keeps plain-text documents in a local SQLite store and lets a
Gemini model edit them through a small set of line-based commands.

Every edit, whether typed or made by the assistant, goes through undo history
and is autosaved. Chat history is kept per document.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			if workspace, err = config.FindWorkspaceRoot(); err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath(workspace)
		}
		if cfg, err = config.Load(path); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}

		if err := logging.Initialize(workspace, cfg.Logging.Options()); err != nil {
			logger.Warn("Category logging disabled", zap.Error(err))
		}
		logger.Debug("Configuration loaded",
			zap.String("workspace", workspace),
			zap.String("config", path),
			zap.String("model", cfg.LLM.Model))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.claridoc/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest .claridoc or go.mod)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Print replies without markdown rendering or colour")

	// Document subcommands
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsNewCmd)
	docsCmd.AddCommand(docsRenameCmd)

	// Add commands to root
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(usageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout and cancels it on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

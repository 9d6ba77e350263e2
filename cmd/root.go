package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreply/internal/config"
	"github.com/teemow/inboxreply/internal/logging"
)

var (
	debugMode bool
	logFormat string
	envFile   string
)

// rootCmd represents the base command for the inboxreply application
var rootCmd = &cobra.Command{
	Use:   "inboxreply",
	Short: "Drafts and sends replies to action-required Gmail messages",
	Long: `inboxreply watches your Gmail inbox for unread messages, filters out bulk
mail, and answers the messages that need a reply with a draft written by a
local Ollama model.

It runs until you type "exit", press Ctrl+C, or call the assistant_stop tool
on the control endpoint.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadDotEnv(envFile)
		if err != nil {
			return err
		}

		handler, err := logging.NewHandler(os.Stderr, logFormat, debugMode)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(handler))

		if loaded {
			slog.Debug("loaded environment file", "path", envFile)
		}
		return nil
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxreply version %s\n" .Version}}`)

	// If no subcommand is provided, run the assistant by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, fmt.Sprintf("Log format: %s or %s", logging.FormatText, logging.FormatJSON))
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded at startup if it exists")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}

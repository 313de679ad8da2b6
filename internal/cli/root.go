// Package cli implements chatctl, the operator tool for out-of-band room
// creation, moderation and tailing rooms.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pentia/chatcore/internal/config"
	"github.com/pentia/chatcore/internal/log"
	"github.com/pentia/chatcore/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Operator tool for the chat backend",
	Long: `chatctl talks to the chat store directly to create rooms, moderate
messages and follow a room's live stream.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log backend activity to stderr")
}

// openBackend loads configuration and opens the store selected by it.
func openBackend(ctx context.Context, cmd *cobra.Command) (*store.Backend, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger := log.Nop()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Pretty = true
		logger = log.New(cfg.Log).Output(cmd.ErrOrStderr())
	}
	return store.Open(ctx, cfg, logger)
}

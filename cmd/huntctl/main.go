// Command huntctl validates game definitions and creates games from them.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	redisURL string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "huntctl",
	Short: "Manage duck hunt game definitions",
	Long: `huntctl works with game definition files (JSON or YAML).

Available subcommands:
  validate - Check a definition and list every problem
  create   - Plan and write a game straight to Redis
  enqueue  - Queue a definition for the setup worker
  show     - Print the result of a queued setup request
  progress - Print a team's levels and recent coordinates`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379/0"), "Redis connection URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(validateCmd, createCmd, enqueueCmd, showCmd, progressCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cliLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

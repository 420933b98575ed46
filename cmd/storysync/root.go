package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/storyapp/storysync/internal/app"
	"github.com/storyapp/storysync/internal/config"
	"github.com/storyapp/storysync/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "storysync",
	Short: "Offline-first client for the story sharing API",
	Long: "storysync keeps a local copy of the story feed, queues submissions " +
		"made while offline, and replays them when connectivity returns.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// withApp builds a fully wired App for one command invocation and tears it
// down afterwards.
func withApp(run func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		log := logging.NewTextLogger(os.Stderr, level)

		cfg := config.LoadConfig()
		ctx := cmd.Context()

		prompter := newTerminalPrompter()
		a, err := app.New(ctx, cfg, log, newTerminalNotifier(), prompter, terminalRouter{})
		if err != nil {
			return err
		}
		defer a.Close()
		prompter.meta = a.Store.Metadata

		return run(ctx, a, args)
	}
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/storyapp/storysync/internal/app"
	"github.com/storyapp/storysync/internal/bus"
)

var workerWarmURLs []string

func init() {
	workerCmd.Flags().StringSliceVar(&workerWarmURLs, "warm", nil, "extra URLs to cache on startup")
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker",
	Long: "The worker precaches the app shell, drops caches left by previous " +
		"versions, listens for incoming pushes, watches connectivity, and " +
		"drains the outbox whenever the network comes back.",
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, err := a.Engine()
		if err != nil {
			return err
		}
		if err := engine.Install(ctx); err != nil {
			a.Log.Warn(ctx, "app shell precache failed", "error", err)
		}
		if err := engine.Activate(ctx); err != nil {
			return err
		}
		if len(workerWarmURLs) > 0 {
			a.Bus.Publish(ctx, bus.Message{Event: bus.EventCacheURLs, URLs: workerWarmURLs})
		}

		// Deliver pushes only when a subscription exists.
		state, err := a.Push.State(ctx)
		if err != nil {
			return err
		}
		if state.Subscribed {
			if err := a.PushService().Connect(ctx); err != nil {
				a.Log.Warn(ctx, "push gateway unreachable, continuing without pushes", "error", err)
			}
		}

		// Drain anything queued before we started watching.
		a.Bus.Publish(ctx, bus.Message{Event: bus.EventSyncOfflineData})

		fmt.Println("Worker running. Press Ctrl+C to stop.")
		a.StartOnlineStatusWatcher(ctx, a.Config.OnlineCheckInterval)
		return nil
	}),
}

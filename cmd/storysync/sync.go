package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storyapp/storysync/internal/app"
)

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload queued stories",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		res, err := a.Syncer.Sync(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Sync finished: %d succeeded, %d failed.\n", res.Succeeded, res.Failed)
		if res.Failed > 0 {
			fmt.Println("Failed entries stay queued and will retry on the next sync.")
		}
		return nil
	}),
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued entries waiting for sync",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		pending, err := a.Store.Outbox.Unsynced(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("Outbox is empty.")
			return nil
		}
		for _, e := range pending {
			fmt.Printf("#%d queued %s: %s\n", e.ID, e.Timestamp, e.Description)
		}
		return nil
	}),
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storyapp/storysync/internal/app"
)

func init() {
	bookmarkCmd.AddCommand(bookmarkListCmd)
	rootCmd.AddCommand(bookmarkCmd)
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <story-id>",
	Short: "Toggle a bookmark on a cached story",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		id := args[0]
		story, err := a.Store.Stories.Get(ctx, id)
		if err != nil {
			return err
		}
		if story == nil {
			return fmt.Errorf("story %s is not in the local cache; run 'storysync list' first", id)
		}

		on, err := a.Store.Bookmarks.Toggle(ctx, story)
		if err != nil {
			return err
		}
		if on {
			fmt.Printf("Bookmarked %q.\n", story.Name)
		} else {
			fmt.Printf("Removed bookmark on %q.\n", story.Name)
		}
		return nil
	}),
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show bookmarked stories, most recent first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		bookmarks, err := a.Store.Bookmarks.List(ctx)
		if err != nil {
			return err
		}
		if len(bookmarks) == 0 {
			fmt.Println("No bookmarks.")
			return nil
		}
		for _, b := range bookmarks {
			fmt.Printf("* %-24s %-20s bookmarked %s\n", b.ID, b.Name, b.BookmarkedAt)
		}
		return nil
	}),
}

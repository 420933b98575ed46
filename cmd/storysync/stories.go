package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storyapp/storysync/internal/app"
	"github.com/storyapp/storysync/internal/gateway"
	"github.com/storyapp/storysync/internal/models"
	"github.com/storyapp/storysync/internal/store"
)

var (
	addPhotoPath string
	addLat       float64
	addLon       float64
	addQueue     bool
	listSortBy   string
	listDesc     bool
)

func init() {
	addCmd.Flags().StringVar(&addPhotoPath, "photo", "", "path to the photo file (required)")
	addCmd.Flags().Float64Var(&addLat, "lat", 0, "latitude")
	addCmd.Flags().Float64Var(&addLon, "lon", 0, "longitude")
	addCmd.Flags().BoolVar(&addQueue, "queue", false, "queue for later sync instead of uploading now")
	_ = addCmd.MarkFlagRequired("photo")

	listCmd.Flags().StringVar(&listSortBy, "sort", "createdAt", "sort field: createdAt, name, description, id")
	listCmd.Flags().BoolVar(&listDesc, "desc", false, "sort descending")

	rootCmd.AddCommand(listCmd, addCmd, searchCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the story feed, from the network when possible",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		stories, fresh, err := a.RefreshStories(ctx)
		if err != nil {
			return err
		}
		if !fresh {
			fmt.Println("(offline: showing locally cached stories)")
		}

		store.SortStories(stories, store.SortField(listSortBy), sortOrder())
		printStories(ctx, a, stories)
		return nil
	}),
}

var addCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Share a story, or queue it when offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var lat, lon *float64
		if cmd.Flags().Changed("lat") {
			lat = &addLat
		}
		if cmd.Flags().Changed("lon") {
			lon = &addLon
		}

		return withApp(func(ctx context.Context, a *app.App, args []string) error {
			description := args[0]
			photo, err := os.ReadFile(addPhotoPath)
			if err != nil {
				return fmt.Errorf("read photo: %w", err)
			}

			if !addQueue {
				err := a.Gateway.AddStory(ctx, gateway.AddStoryInput{
					Description: description,
					Photo:       photo,
					Lat:         lat,
					Lon:         lon,
				})
				if err == nil {
					fmt.Println("Story shared.")
					return nil
				}
				a.Log.Warn(ctx, "direct upload failed, queueing instead", "error", err)
			}

			id, err := a.Store.Outbox.Add(ctx, &models.OutboxEntry{
				Description: description,
				PhotoBlob:   photo,
				PhotoRef:    addPhotoPath,
				Lat:         lat,
				Lon:         lon,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Story queued for sync (entry %d). Run 'storysync sync' when online.\n", id)
			return nil
		})(cmd, args)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search locally cached stories by name or description",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		stories, err := a.Store.Stories.Search(ctx, args[0])
		if err != nil {
			return err
		}
		printStories(ctx, a, stories)
		return nil
	}),
}

func sortOrder() store.SortOrder {
	if listDesc {
		return store.Descending
	}
	return store.Ascending
}

func printStories(ctx context.Context, a *app.App, stories []models.Story) {
	if len(stories) == 0 {
		fmt.Println("No stories.")
		return
	}
	for _, s := range stories {
		marker := " "
		if ok, err := a.Store.Bookmarks.IsBookmarked(ctx, s.ID); err == nil && ok {
			marker = "*"
		}
		fmt.Printf("%s %-24s %-20s %s\n", marker, s.ID, s.Name, s.CreatedAt)
		fmt.Printf("    %s\n", s.Description)
	}
}

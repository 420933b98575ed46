package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storyapp/storysync/internal/app"
	"github.com/storyapp/storysync/internal/common"
)

func init() {
	notifyCmd.AddCommand(notifyOnCmd, notifyOffCmd, notifyStatusCmd)
	rootCmd.AddCommand(notifyCmd)
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage push notification subscription",
}

var notifyOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Subscribe to push notifications",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		state, err := a.Push.Enable(ctx)
		if errors.Is(err, common.ErrPermissionDenied) || errors.Is(err, common.ErrAborted) {
			fmt.Println("Notifications stay in notification-only mode: no push subscription was created.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Push notifications enabled (endpoint %s).\n", state.Subscription.Endpoint)
		return nil
	}),
}

var notifyOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Unsubscribe from push notifications",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		if err := a.Push.Disable(ctx); err != nil {
			return err
		}
		fmt.Println("Push notifications disabled.")
		return nil
	}),
}

var notifyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current subscription state",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		state, err := a.Push.State(ctx)
		if err != nil {
			return err
		}
		switch {
		case state.Subscribed && state.Subscription != nil:
			fmt.Printf("Subscribed (endpoint %s).\n", state.Subscription.Endpoint)
		case state.NotificationOnlyMode:
			fmt.Println("Notification-only mode: local notifications work, push is off.")
		default:
			fmt.Println("Not subscribed.")
		}
		return nil
	}),
}

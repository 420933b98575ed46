package main

import (
	"context"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/storyapp/storysync/internal/app"
)

var authPassword string

func init() {
	for _, cmd := range []*cobra.Command{registerCmd, loginCmd} {
		cmd.Flags().StringVar(&authPassword, "password", "", "password (prompted interactively when omitted)")
	}
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register <name> <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		name, email := args[0], args[1]
		password, err := resolvePassword()
		if err != nil {
			return err
		}
		if err := a.Gateway.Register(ctx, name, email, password); err != nil {
			return err
		}
		fmt.Println("Account created. You can now log in.")
		return nil
	}),
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session locally",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		email := args[0]
		password, err := resolvePassword()
		if err != nil {
			return err
		}
		sess, err := a.Gateway.Login(ctx, email, password)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s.\n", sess.Name)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
		if err := a.Gateway.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	}),
}

// resolvePassword uses the --password flag when given, otherwise prompts
// without echoing.
func resolvePassword() (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/models"
	"github.com/storyapp/storysync/internal/push"
	"github.com/storyapp/storysync/internal/store"
)

// terminalNotifier renders notifications to the terminal.
type terminalNotifier struct{}

func newTerminalNotifier() *terminalNotifier {
	return &terminalNotifier{}
}

func (terminalNotifier) Notify(ctx context.Context, n models.Notification) {
	fmt.Printf("\n[%s] %s\n", n.Title, n.Body)
	if n.URL != "" && n.URL != "/" {
		fmt.Printf("  -> %s\n", n.URL)
	}
}

// terminalRouter is the CLI stand-in for client window routing. A terminal
// has no windows to focus, so every click opens the target URL.
type terminalRouter struct{}

func (terminalRouter) Focus(ctx context.Context, url string) (bool, error) {
	return false, nil
}

func (terminalRouter) Open(ctx context.Context, url string) error {
	fmt.Printf("Opening %s\n", url)
	return nil
}

// terminalPrompter is the CLI stand-in for a notification permission prompt.
// The answer is persisted so the user is asked at most once.
type terminalPrompter struct {
	meta *store.MetadataRepository
	in   *bufio.Reader
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(os.Stdin)}
}

func (p *terminalPrompter) Permission(ctx context.Context) (push.Permission, error) {
	raw, err := p.meta.Get(ctx, store.MetaNotifyToggle)
	if err != nil {
		return push.PermissionPrompt, err
	}
	switch string(raw) {
	case string(push.PermissionGranted):
		return push.PermissionGranted, nil
	case string(push.PermissionDenied):
		return push.PermissionDenied, nil
	default:
		return push.PermissionPrompt, nil
	}
}

func (p *terminalPrompter) RequestPermission(ctx context.Context) (push.Permission, error) {
	fmt.Print("Allow notifications? [y/n, Enter to decide later]: ")
	line, err := p.in.ReadString('\n')
	if err != nil {
		return push.PermissionPrompt, fmt.Errorf("%w: %v", common.ErrAborted, err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		perm := push.PermissionGranted
		return perm, p.meta.Set(ctx, store.MetaNotifyToggle, []byte(perm))
	case "n", "no":
		perm := push.PermissionDenied
		return perm, p.meta.Set(ctx, store.MetaNotifyToggle, []byte(perm))
	default:
		return push.PermissionPrompt, fmt.Errorf("%w: no answer given", common.ErrAborted)
	}
}

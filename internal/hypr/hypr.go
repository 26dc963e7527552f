// Package hypr drives Hyprland's notification dispatchers through hyprctl.
package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon is a hyprctl notify icon index.
type Icon int

const (
	IconNone    Icon = -1
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconError   Icon = 3
)

const defaultColor = "rgb(89b4fa)"

// Notification is one "hyprctl dispatch notify" payload.
type Notification struct {
	Icon      Icon
	TimeoutMS int
	Color     string
	Text      string
}

// Notify shows n. Hyprland has no replace-by-id, so callers dismiss before
// showing a new state.
func Notify(ctx context.Context, n Notification) error {
	text := strings.TrimSpace(n.Text)
	if text == "" {
		return fmt.Errorf("hypr notify requires text")
	}
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = defaultColor
	}
	timeout := n.TimeoutMS
	if timeout <= 0 {
		timeout = 1
	}
	return run(ctx,
		"--quiet", "dispatch", "notify",
		strconv.Itoa(int(n.Icon)),
		strconv.Itoa(timeout),
		color,
		text,
	)
}

// DismissNotify dismisses every active Hyprland notification.
func DismissNotify(ctx context.Context) error {
	return run(ctx, "--quiet", "dispatch", "dismissnotify")
}

func run(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("hyprctl %s failed: %w", strings.Join(args[1:], " "), err)
		}
		return fmt.Errorf("hyprctl %s failed: %w (%s)", strings.Join(args[1:], " "), err, trimmed)
	}
	return nil
}

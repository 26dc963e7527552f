// Package output commits assembled transcripts to the clipboard.
package output

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/locale"
	"github.com/rbright/sauti/internal/transcript"
)

const clipboardTimeout = 2 * time.Second

// Committer accumulates one recording's finals and mirrors the assembled
// text into the clipboard after each one.
type Committer struct {
	logger *slog.Logger
	acc    *transcript.Accumulator

	mu   sync.Mutex
	argv []string
}

func NewCommitter(cfg config.Config, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Committer{
		logger: logger,
		acc:    transcript.NewAccumulator(transcriptOptions(cfg)),
		argv:   append([]string(nil), cfg.Output.Clipboard.Argv...),
	}
}

// Apply switches to a reloaded config without dropping accumulated text.
func (c *Committer) Apply(cfg config.Config) {
	c.acc.SetOptions(transcriptOptions(cfg))
	c.mu.Lock()
	c.argv = append([]string(nil), cfg.Output.Clipboard.Argv...)
	c.mu.Unlock()
}

// Commit adds final to the recording and writes the assembled text.
func (c *Committer) Commit(ctx context.Context, final string) error {
	text := c.acc.Add(final)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	argv := c.argv
	c.mu.Unlock()

	clipboardCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := runCommandWithInput(clipboardCtx, argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logger.Debug("clipboard updated", "chars", len(text))
	return nil
}

// Text returns the transcript assembled so far.
func (c *Committer) Text() string {
	return c.acc.Text()
}

// Reset starts a new recording.
func (c *Committer) Reset() {
	c.acc.Reset()
}

func transcriptOptions(cfg config.Config) transcript.Options {
	return transcript.Options{
		TrailingSpace:       cfg.Transcript.TrailingSpace,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
		Language:            locale.Resolve(cfg.ASR.Language),
	}
}

// runCommandWithInput executes argv with input on stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("run %s: %w: %s", argv[0], err, detail)
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}

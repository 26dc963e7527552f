// Package indicator mirrors session state into desktop notifications and
// audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/hypr"
	"github.com/rbright/sauti/internal/session"
)

const (
	dispatchTimeout     = 400 * time.Millisecond
	listeningTimeoutMS  = 300000
	defaultErrorTimeout = 1200
	queueSize           = 16
)

// Notifier is a session.Observer. Dispatches run in order on one worker
// goroutine so observer calls never block on busctl, hyprctl or Pulse.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	lastVersion    uint64
	recording      bool
	notificationID uint32
	closed         bool

	jobs      chan func(context.Context)
	done      chan struct{}
	closeOnce sync.Once
	soundMu   sync.Mutex
}

// NewNotifier creates a notifier speaking language (a BCP-47 tag).
func NewNotifier(cfg config.IndicatorConfig, language string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFor(language),
		jobs:     make(chan func(context.Context), queueSize),
		done:     make(chan struct{}),
	}
	go n.work()
	return n
}

// StateChanged shows the listening notification when recording begins and
// dismisses it once the session is idle again.
func (n *Notifier) StateChanged(snap session.Snapshot) {
	n.mu.Lock()
	if snap.Version != 0 && snap.Version <= n.lastVersion {
		n.mu.Unlock()
		return
	}
	n.lastVersion = snap.Version
	began := snap.IsRecording && !n.recording
	ended := !snap.IsRecording && n.recording
	n.recording = snap.IsRecording
	n.mu.Unlock()

	switch {
	case began:
		n.playCue(cueStart)
		n.enqueue(func(ctx context.Context) error {
			return n.notify(ctx, hypr.IconInfo, listeningTimeoutMS, n.messages.listening)
		})
	case ended:
		n.playCue(cueStop)
		n.enqueue(n.dismiss)
	}
}

func (n *Notifier) InterimChanged(string) {}

// ShowError displays text, or the localized generic error when empty.
func (n *Notifier) ShowError(text string) {
	n.playCue(cueError)
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorTimeout
	}
	n.enqueue(func(ctx context.Context) error {
		return n.notify(ctx, hypr.IconError, timeout, text)
	})
}

// Close drains queued dispatches and stops the worker.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.jobs)
		n.mu.Unlock()
		<-n.done
	})
}

func (n *Notifier) enqueue(fn func(context.Context) error) {
	if !n.cfg.Enable {
		return
	}
	job := func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			n.logger.Debug("indicator dispatch failed", "error", err.Error())
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.jobs <- job:
	default:
		n.logger.Debug("indicator queue full; dropping dispatch")
	}
}

func (n *Notifier) work() {
	defer close(n.done)
	for job := range n.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		job(ctx)
		cancel()
	}
}

// notify shows text on the configured backend. Desktop notifications are
// replaced in place by ID; Hyprland ones are dismissed first.
func (n *Notifier) notify(ctx context.Context, icon hypr.Icon, timeoutMS int, text string) error {
	if n.cfg.Backend == "hypr" {
		if err := hypr.DismissNotify(ctx); err != nil {
			return err
		}
		return hypr.Notify(ctx, hypr.Notification{Icon: icon, TimeoutMS: timeoutMS, Text: text})
	}

	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	id, err := desktopNotify(ctx, desktopNotification{
		AppName:   n.appName(),
		ReplaceID: replaceID,
		Summary:   text,
		TimeoutMS: timeoutMS,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.cfg.Backend == "hypr" {
		return hypr.DismissNotify(ctx)
	}

	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(context.Background(), n.appName(), kind); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}

func (n *Notifier) appName() string {
	if name := strings.TrimSpace(n.cfg.DesktopAppName); name != "" {
		return name
	}
	return "sauti"
}

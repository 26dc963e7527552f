package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rbright/sauti/internal/cli"
	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/fsm"
	"github.com/rbright/sauti/internal/indicator"
	"github.com/rbright/sauti/internal/ipc"
	"github.com/rbright/sauti/internal/locale"
	"github.com/rbright/sauti/internal/logging"
	"github.com/rbright/sauti/internal/output"
	"github.com/rbright/sauti/internal/session"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
)

type ownerMode int

const (
	// modeListen stays up across idle periods until the context ends.
	modeListen ownerMode = iota
	// modeToggle exits once the session it started is idle again.
	modeToggle
)

func (m ownerMode) String() string {
	if m == modeToggle {
		return "toggle"
	}
	return "listen"
}

func (r Runner) commandListen(ctx context.Context, loaded config.Loaded, parsed cli.Parsed, logRuntime logging.Runtime, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return r.runOwner(ctx, socketPath, loaded, parsed, logRuntime, logger, modeListen)
}

func (r Runner) commandToggle(ctx context.Context, loaded config.Loaded, parsed cli.Parsed, logRuntime logging.Runtime, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandToggle)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, resp.Message)
		return 0
	}
	return r.runOwner(ctx, socketPath, loaded, parsed, logRuntime, logger, modeToggle)
}

// runOwner holds the control socket and the session controller for the
// lifetime of this process.
func (r Runner) runOwner(
	ctx context.Context,
	socketPath string,
	loaded config.Loaded,
	parsed cli.Parsed,
	logRuntime logging.Runtime,
	logger *slog.Logger,
	mode ownerMode,
) int {
	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) && mode == modeToggle {
			return r.forwardOrFail(ctx, ipc.CommandToggle)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	factory, err := newFactory(loaded.Config, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	o := newOwner(r.Stdout, r.Stderr, loaded.Config, factory, logger)
	defer o.notifier.Close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, logging.Component(logger, "ipc"), listener, o)
	}()

	if loaded.Watch(o.reload(parsed, logRuntime)) {
		logger.Debug("watching config for changes", "path", loaded.Path)
	}

	exitCode := 0
	if !o.controller.IsSupported() {
		_ = o.controller.Toggle()
		exitCode = 1
	} else if err := o.controller.Toggle(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		exitCode = 1
	} else {
		select {
		case <-ctx.Done():
		case <-o.idleSignal(mode):
		}
		if mode == modeToggle && o.failed() {
			exitCode = 1
		}
	}

	o.controller.Close()
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logger.Info("session owner exiting",
		"mode", mode.String(),
		"transcript_length", len(o.committer.Text()),
		"errors", o.errorCount(),
	)
	return exitCode
}

type owner struct {
	logger     *slog.Logger
	console    *console
	committer  *output.Committer
	notifier   *indicator.Notifier
	controller *session.Controller

	idle chan struct{}

	mu          sync.Mutex
	lastVersion uint64
	recording   bool
	active      bool
	errorsSeen  int
}

func newOwner(stdout, stderr io.Writer, cfg config.Config, factory session.RecognizerFactory, logger *slog.Logger) *owner {
	o := &owner{
		logger:    logging.Component(logger, "owner"),
		console:   newConsole(stdout, stderr),
		committer: output.NewCommitter(cfg, logging.Component(logger, "output")),
		notifier:  indicator.NewNotifier(cfg.Indicator, locale.Resolve(cfg.ASR.Language), logging.Component(logger, "indicator")),
		idle:      make(chan struct{}, 1),
	}
	o.controller = session.NewController(logging.Component(logger, "session"), factory, o.callbacks(cfg), session.Options{
		Language:    cfg.ASR.Language,
		EndWatchdog: cfg.Session.EndWatchdog,
		MaxRestarts: cfg.Session.MaxRestarts,
		Observer:    session.Observers(o.console, o.notifier, o),
	})
	return o
}

// callbacks builds the caller hooks for cfg. Reloads replace them through
// SetCallbacks so the next event sees the new output settings.
func (o *owner) callbacks(cfg config.Config) session.Callbacks {
	commit := cfg.Output.Enable
	return session.Callbacks{
		OnFinalTranscript: func(text string) {
			o.console.final(text)
			if !commit {
				return
			}
			if err := o.committer.Commit(context.Background(), text); err != nil {
				o.logger.Error("commit transcript failed", "error", err.Error())
				o.console.errorLine(err.Error())
			}
		},
		OnError: func(message string) {
			o.mu.Lock()
			o.errorsSeen++
			o.mu.Unlock()
			o.console.errorLine(message)
			o.notifier.ShowError(message)
		},
	}
}

func (o *owner) reload(parsed cli.Parsed, logRuntime logging.Runtime) func(config.Loaded, error) {
	return func(next config.Loaded, err error) {
		if err == nil {
			err = applyOverrides(&next, parsed)
		}
		if err != nil {
			o.logger.Warn("config reload rejected", "error", err.Error())
			return
		}

		o.committer.Apply(next.Config)
		o.controller.SetCallbacks(o.callbacks(next.Config))
		if err := logRuntime.SetLevel(next.Config.Log.Level); err != nil {
			o.logger.Warn("invalid log level", "error", err.Error())
		}
		o.logger.Info("config reloaded", "path", next.Path)
	}
}

// StateChanged resets the transcript when recording begins and signals
// once the session is back at Idle, whether or not the engine ever started.
func (o *owner) StateChanged(snap session.Snapshot) {
	o.mu.Lock()
	if snap.Version <= o.lastVersion {
		o.mu.Unlock()
		return
	}
	o.lastVersion = snap.Version
	began := snap.IsRecording && !o.recording
	settled := snap.State == fsm.StateIdle && o.active
	o.recording = snap.IsRecording
	o.active = snap.State != fsm.StateIdle
	o.mu.Unlock()

	o.logger.Debug("session state",
		"state", snap.State,
		"recording", snap.IsRecording,
		"session_id", snap.SessionID,
		"restarts", snap.Restarts,
	)

	if began {
		o.committer.Reset()
	}
	if settled {
		select {
		case o.idle <- struct{}{}:
		default:
		}
	}
}

func (o *owner) InterimChanged(string) {}

func (o *owner) idleSignal(mode ownerMode) <-chan struct{} {
	if mode == modeToggle {
		return o.idle
	}
	return nil
}

func (o *owner) failed() bool {
	return o.errorCount() > 0
}

func (o *owner) errorCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errorsSeen
}

// Handle serves IPC requests against the controller.
func (o *owner) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandToggle:
		if err := o.controller.Toggle(); err != nil {
			return ipc.Response{Error: err.Error()}
		}
	case ipc.CommandReset:
		o.controller.Reset()
	}

	resp := responseFor(o.controller.Snapshot())
	resp.Message = commandMessage(req.Command, resp)
	return resp
}

func responseFor(snap session.Snapshot) ipc.Response {
	return ipc.Response{
		OK:        true,
		State:     string(snap.State),
		Recording: snap.IsRecording,
		Supported: snap.IsSupported,
		Interim:   snap.InterimTranscript,
		SessionID: snap.SessionID,
		Restarts:  snap.Restarts,
	}
}

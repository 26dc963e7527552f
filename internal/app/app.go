// Package app wires the CLI to config, logging, IPC forwarding, and the
// session owner.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/sauti/internal/audio"
	"github.com/rbright/sauti/internal/cli"
	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/doctor"
	"github.com/rbright/sauti/internal/fsm"
	"github.com/rbright/sauti/internal/ipc"
	"github.com/rbright/sauti/internal/logging"
	"github.com/rbright/sauti/internal/version"
)

const (
	binaryName     = "sauti"
	forwardTimeout = 220 * time.Millisecond
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if err := applyOverrides(&loaded, parsed); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	if err := logRuntime.SetLevel(loaded.Config.Log.Level); err != nil {
		logger.Warn("invalid log level", "error", err.Error())
	}
	for _, w := range loaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"engine", loaded.Config.Engine,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, loaded, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandReset:
		return r.forwardOrFail(ctx, ipc.CommandReset)
	case cli.CommandToggle:
		return r.commandToggle(ctx, loaded, parsed, logRuntime, logger)
	case cli.CommandListen:
		return r.commandListen(ctx, loaded, parsed, logRuntime, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// applyOverrides folds --engine and --language into the loaded config and
// revalidates it.
func applyOverrides(loaded *config.Loaded, parsed cli.Parsed) error {
	if parsed.Engine == "" && parsed.Language == "" {
		return nil
	}
	if parsed.Engine != "" {
		loaded.Config.Engine = parsed.Engine
	}
	if parsed.Language != "" {
		loaded.Config.ASR.Language = parsed.Language
	}
	warnings, err := config.Validate(loaded.Config)
	if err != nil {
		return err
	}
	loaded.Warnings = warnings
	return nil
}

func (r Runner) commandDoctor(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	factory, err := newFactory(loaded.Config, logger)
	if err != nil {
		logger.Warn("recognizer unavailable", "error", err.Error())
	}

	report := doctor.Run(ctx, loaded, factory, nil)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printStatus(resp)
	return 0
}

func (r Runner) printStatus(resp ipc.Response) {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(r.Stdout, state)
	if resp.Interim != "" {
		fmt.Fprintf(r.Stdout, "~ %s\n", resp.Interim)
	}
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active %s session\n", binaryName)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward sends command to a running owner. handled is false when no
// owner is listening.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, command, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if ipc.NoOwner(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

// commandMessage summarizes the owner's state after handling command.
func commandMessage(command string, resp ipc.Response) string {
	if command == ipc.CommandToggle && !resp.Supported {
		return "speech recognition unsupported"
	}
	switch fsm.State(resp.State) {
	case fsm.StateStarting, fsm.StateListening:
		return "recording"
	case fsm.StateStopping:
		return "stopping"
	default:
		return strings.TrimSpace(resp.State)
	}
}

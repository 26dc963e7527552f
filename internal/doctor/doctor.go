// Package doctor runs readiness diagnostics for config, engine, audio,
// clipboard output and the indicator backend.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/sauti/internal/audio"
	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/deepgram"
	"github.com/rbright/sauti/internal/locale"
	"github.com/rbright/sauti/internal/scripted"
	"github.com/rbright/sauti/internal/session"
)

const probeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run checks a loaded config and the recognizer factory built from it.
// client may be nil.
func Run(ctx context.Context, loaded config.Loaded, factory session.RecognizerFactory, client *http.Client) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkLanguage(cfg)}

	supported := session.DetectSupport(factory)
	checks = append(checks, Check{Name: "recognizer", Pass: supported, Message: supportMessage(cfg.Engine, supported)})

	switch cfg.Engine {
	case "scripted":
		checks = append(checks, checkScript(cfg.Script))
	default:
		checks = append(checks, checkAudioSelection(ctx, cfg.Audio))
		checks = append(checks, checkDeepgram(ctx, cfg.Deepgram, client))
	}

	if cfg.Output.Enable {
		checks = append(checks, checkCommand(cfg.Output.Clipboard.Argv, "output.clipboard_cmd"))
	}
	if cfg.Indicator.Enable && cfg.Indicator.Backend == "hypr" {
		checks = append(checks, checkBinary("hyprctl", "hyprctl"))
	}
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	for _, warning := range loaded.Warnings {
		message += "; warning: " + warning.Message
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkLanguage(cfg config.Config) Check {
	selected := locale.Resolve(cfg.ASR.Language)
	source := "system locale"
	if strings.TrimSpace(cfg.ASR.Language) != "" {
		source = "asr.language"
	}
	return Check{Name: "language", Pass: true, Message: fmt.Sprintf("%s (from %s)", selected, source)}
}

func supportMessage(engine string, supported bool) string {
	if supported {
		return fmt.Sprintf("%s engine available", engine)
	}
	return fmt.Sprintf("%s engine unavailable on this system", engine)
}

func checkScript(cfg config.ScriptConfig) Check {
	script, err := scripted.Load(cfg.Path)
	if err != nil {
		return Check{Name: "script", Pass: false, Message: err.Error()}
	}
	return Check{Name: "script", Pass: true, Message: fmt.Sprintf("%d sessions in %q", len(script.Sessions), cfg.Path)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(name, argv[0])
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(name, bin string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkDeepgram(ctx context.Context, cfg config.DeepgramConfig, client *http.Client) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := deepgram.Ping(ctx, client, deepgram.FromConfig(cfg)); err != nil {
		return Check{Name: "deepgram", Pass: false, Message: err.Error()}
	}
	return Check{Name: "deepgram", Pass: true, Message: fmt.Sprintf("api key accepted by %s", cfg.APIBase)}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.yaml"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "sauti", "config.yaml"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "sauti", "config.yaml"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("SAUTI_DEEPGRAM_API_KEY", "")
	path := filepath.Join(t.TempDir(), "missing.yaml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
	require.False(t, loaded.Watch(func(Loaded, error) {}))
}

func TestLoadExistingYAMLDecodesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
engine: scripted
asr:
  language: sw_KE
script:
  path: /tmp/script.yaml
  pace: 20ms
session:
  end_watchdog: 1500ms
  max_restarts: 4
output:
  clipboard_cmd: xclip -selection "clipboard"
deepgram:
  keywords: ["Nairobi:2", "sauti"]
transcript:
  trailing_space: false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)

	cfg := loaded.Config
	require.Equal(t, "scripted", cfg.Engine)
	require.Equal(t, "sw_KE", cfg.ASR.Language)
	require.Equal(t, 20*time.Millisecond, cfg.Script.Pace)
	require.Equal(t, 1500*time.Millisecond, cfg.Session.EndWatchdog)
	require.Equal(t, 4, cfg.Session.MaxRestarts)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Output.Clipboard.Argv)
	require.Equal(t, []string{"Nairobi:2", "sauti"}, cfg.Deepgram.Keywords)
	require.False(t, cfg.Transcript.TrailingSpace)
	require.True(t, cfg.Transcript.CapitalizeSentences)
	require.Equal(t, "nova-2", cfg.Deepgram.Model)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deepgram:\n  model: nova-2\n"), 0o600))

	t.Setenv("SAUTI_DEEPGRAM_MODEL", "nova-3")
	t.Setenv("SAUTI_SESSION_MAX_RESTARTS", "7")
	t.Setenv("SAUTI_DEEPGRAM_KEYWORDS", "habari,jambo:1.5")
	t.Setenv("SAUTI_DEEPGRAM_API_KEY", "")
	t.Setenv("DEEPGRAM_API_KEY", "dg-secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "nova-3", loaded.Config.Deepgram.Model)
	require.Equal(t, 7, loaded.Config.Session.MaxRestarts)
	require.Equal(t, []string{"habari", "jambo:1.5"}, loaded.Config.Deepgram.Keywords)
	require.Equal(t, "dg-secret", loaded.Config.Deepgram.APIKey)
	for _, w := range loaded.Warnings {
		require.NotContains(t, w.Message, "api_key")
	}
}

func TestLoadDotEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: deepgram\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SAUTI_DEEPGRAM_API_KEY=from-dotenv\n"), 0o600))

	t.Setenv("DEEPGRAM_API_KEY", "")
	// Registers cleanup for the variable godotenv is about to set.
	t.Setenv("SAUTI_DEEPGRAM_API_KEY", "")
	require.NoError(t, os.Unsetenv("SAUTI_DEEPGRAM_API_KEY"))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", loaded.Config.Deepgram.APIKey)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unterminated\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadValidationErrorNamesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("deepgram:\n  dial_timeout: 0s\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "deepgram.dial_timeout")
}

func TestWatchDeliversReloadedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transcript:\n  trailing_space: true\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan Loaded, 16)
	require.True(t, loaded.Watch(func(next Loaded, err error) {
		if err != nil {
			return
		}
		select {
		case reloaded <- next:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("transcript:\n  trailing_space: false\n"), 0o600))

	// A rewrite may surface as several write events, the first of which can
	// observe a truncated file.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case next := <-reloaded:
			if next.Config.Transcript.TrailingSpace {
				continue
			}
			require.Equal(t, path, next.Path)
			return
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

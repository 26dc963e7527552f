package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultWarnsAboutMissingAPIKey(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "deepgram.api_key")

	cfg := Default()
	cfg.Deepgram.APIKey = "key"
	warnings, err = Validate(cfg)
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "riva" }, wantErr: "engine"},
		{name: "empty api base", mutate: func(c *Config) { c.Deepgram.APIBase = "" }, wantErr: "deepgram.api_base"},
		{name: "bad api base", mutate: func(c *Config) { c.Deepgram.APIBase = "not a url" }, wantErr: "deepgram.api_base"},
		{name: "empty model", mutate: func(c *Config) { c.Deepgram.Model = "" }, wantErr: "deepgram.model"},
		{name: "zero dial timeout", mutate: func(c *Config) { c.Deepgram.DialTimeout = 0 }, wantErr: "deepgram.dial_timeout"},
		{name: "negative watchdog", mutate: func(c *Config) { c.Session.EndWatchdog = -1 }, wantErr: "session.end_watchdog"},
		{name: "negative restarts", mutate: func(c *Config) { c.Session.MaxRestarts = -1 }, wantErr: "session.max_restarts"},
		{name: "empty audio input", mutate: func(c *Config) { c.Audio.Input = "" }, wantErr: "audio.input"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "indicator without app name", mutate: func(c *Config) { c.Indicator.DesktopAppName = "" }, wantErr: "indicator.desktop_app_name"},
		{name: "unknown indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "osd" }, wantErr: "indicator.backend"},
		{name: "scripted without path", mutate: func(c *Config) { c.Engine = "scripted" }, wantErr: "script.path"},
		{name: "bad language", mutate: func(c *Config) { c.ASR.Language = "!!" }, wantErr: "asr.language"},
		{name: "bad keyword boost", mutate: func(c *Config) { c.Deepgram.Keywords = []string{"jambo:high"} }, wantErr: "non-numeric boost"},
		{name: "empty keyword", mutate: func(c *Config) { c.Deepgram.Keywords = []string{":2"} }, wantErr: "empty term"},
		{name: "empty clipboard", mutate: func(c *Config) { c.Output.Clipboard = CommandConfig{} }, wantErr: "output.clipboard_cmd"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Deepgram.APIKey = "key"
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateAllowsDisabledOutputWithoutClipboard(t *testing.T) {
	cfg := Default()
	cfg.Deepgram.APIKey = "key"
	cfg.Output = OutputConfig{Enable: false}
	cfg.Indicator = IndicatorConfig{Enable: false}

	_, err := Validate(cfg)
	require.NoError(t, err)
}

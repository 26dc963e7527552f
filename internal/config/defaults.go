package config

import (
	"time"

	"github.com/spf13/viper"
)

const defaultClipboardCmd = "wl-copy --trim-newline"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: "deepgram",
		Deepgram: DeepgramConfig{
			APIBase:        "https://api.deepgram.com/v1",
			Model:          "nova-2",
			SmartFormat:    true,
			DialTimeout:    10 * time.Second,
			SilenceTimeout: 8 * time.Second,
			Keywords:       []string{},
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Script: ScriptConfig{
			Pace: 150 * time.Millisecond,
		},
		Session: SessionConfig{
			EndWatchdog: 3 * time.Second,
			MaxRestarts: 0,
		},
		Output: OutputConfig{
			Enable:    true,
			Clipboard: CommandConfig{Raw: defaultClipboardCmd, Argv: mustSplitCommand(defaultClipboardCmd)},
		},
		Transcript: TranscriptConfig{
			TrailingSpace:       true,
			CapitalizeSentences: true,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			SoundEnable:    true,
			DesktopAppName: "sauti",
			ErrorTimeoutMS: 1600,
		},
		Log: LogConfig{Level: "info"},
	}
}

// setDefaults registers every key with viper so environment overrides reach
// Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("engine", d.Engine)
	v.SetDefault("asr.language", d.ASR.Language)

	v.SetDefault("deepgram.api_key", d.Deepgram.APIKey)
	v.SetDefault("deepgram.api_base", d.Deepgram.APIBase)
	v.SetDefault("deepgram.model", d.Deepgram.Model)
	v.SetDefault("deepgram.smart_format", d.Deepgram.SmartFormat)
	v.SetDefault("deepgram.dial_timeout", d.Deepgram.DialTimeout)
	v.SetDefault("deepgram.silence_timeout", d.Deepgram.SilenceTimeout)
	v.SetDefault("deepgram.keywords", d.Deepgram.Keywords)

	v.SetDefault("audio.input", d.Audio.Input)
	v.SetDefault("audio.fallback", d.Audio.Fallback)
	v.SetDefault("audio.debug_dump", d.Audio.DebugDump)

	v.SetDefault("script.path", d.Script.Path)
	v.SetDefault("script.pace", d.Script.Pace)

	v.SetDefault("session.end_watchdog", d.Session.EndWatchdog)
	v.SetDefault("session.max_restarts", d.Session.MaxRestarts)

	v.SetDefault("output.enable", d.Output.Enable)
	v.SetDefault("output.clipboard_cmd", d.Output.Clipboard.Raw)

	v.SetDefault("transcript.trailing_space", d.Transcript.TrailingSpace)
	v.SetDefault("transcript.capitalize_sentences", d.Transcript.CapitalizeSentences)

	v.SetDefault("indicator.enable", d.Indicator.Enable)
	v.SetDefault("indicator.backend", d.Indicator.Backend)
	v.SetDefault("indicator.sound_enable", d.Indicator.SoundEnable)
	v.SetDefault("indicator.desktop_app_name", d.Indicator.DesktopAppName)
	v.SetDefault("indicator.error_timeout_ms", d.Indicator.ErrorTimeoutMS)

	v.SetDefault("log.level", d.Log.Level)
}

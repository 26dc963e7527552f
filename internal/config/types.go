// Package config resolves, decodes, validates, and watches sauti configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Engine     string           `mapstructure:"engine" validate:"oneof=deepgram scripted"`
	ASR        ASRConfig        `mapstructure:"asr"`
	Deepgram   DeepgramConfig   `mapstructure:"deepgram"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Script     ScriptConfig     `mapstructure:"script"`
	Session    SessionConfig    `mapstructure:"session"`
	Output     OutputConfig     `mapstructure:"output"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Indicator  IndicatorConfig  `mapstructure:"indicator"`
	Log        LogConfig        `mapstructure:"log"`
}

// ASRConfig holds engine-independent recognition settings.
type ASRConfig struct {
	// Language overrides locale detection when set.
	Language string `mapstructure:"language"`
}

// DeepgramConfig configures the live streaming engine.
type DeepgramConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	APIBase        string        `mapstructure:"api_base" validate:"required,url"`
	Model          string        `mapstructure:"model" validate:"required"`
	SmartFormat    bool          `mapstructure:"smart_format"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	SilenceTimeout time.Duration `mapstructure:"silence_timeout" validate:"gte=0"`
	Keywords       []string      `mapstructure:"keywords"`
}

// AudioConfig controls preferred and fallback input-source selection.
// DebugDump saves each capture as a WAV file under the XDG state dir.
type AudioConfig struct {
	Input     string `mapstructure:"input" validate:"required"`
	Fallback  string `mapstructure:"fallback" validate:"required"`
	DebugDump bool   `mapstructure:"debug_dump"`
}

// ScriptConfig configures the file-driven engine.
type ScriptConfig struct {
	Path string        `mapstructure:"path"`
	Pace time.Duration `mapstructure:"pace" validate:"gte=0"`
}

type SessionConfig struct {
	EndWatchdog time.Duration `mapstructure:"end_watchdog" validate:"gte=0"`
	MaxRestarts int           `mapstructure:"max_restarts" validate:"gte=0"`
}

// OutputConfig controls where final transcripts are committed.
type OutputConfig struct {
	Enable    bool          `mapstructure:"enable"`
	Clipboard CommandConfig `mapstructure:"clipboard_cmd"`
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace       bool `mapstructure:"trailing_space"`
	CapitalizeSentences bool `mapstructure:"capitalize_sentences"`
}

// IndicatorConfig controls notifications and audio cues. Backend selects
// freedesktop notifications over busctl ("desktop", the default) or
// Hyprland's notify dispatcher ("hypr").
type IndicatorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	Backend        string `mapstructure:"backend" validate:"omitempty,oneof=desktop hypr"`
	SoundEnable    bool   `mapstructure:"sound_enable"`
	DesktopAppName string `mapstructure:"desktop_app_name" validate:"required_with=Enable"`
	ErrorTimeoutMS int    `mapstructure:"error_timeout_ms" validate:"gte=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal load or validation message.
type Warning struct {
	Message string
}

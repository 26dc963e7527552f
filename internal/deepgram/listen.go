// Package deepgram implements a continuous recognizer on Deepgram's live
// streaming API, fed by PulseAudio capture.
package deepgram

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/sauti/internal/config"
)

const (
	DefaultAPIBase = "https://api.deepgram.com/v1"
	DefaultModel   = "nova-2"

	defaultDialTimeout = 10 * time.Second
	sampleRate         = 16000
)

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// Config controls Deepgram connection settings.
type Config struct {
	APIKey      string
	APIBase     string
	Model       string
	SmartFormat bool
	DialTimeout time.Duration
	// SilenceTimeout ends the stream with a no-speech error when no
	// transcript text arrives for this long. Zero disables it.
	SilenceTimeout time.Duration
	Keywords       []string
}

// FromConfig maps the deepgram config section.
func FromConfig(c config.DeepgramConfig) Config {
	return Config{
		APIKey:         c.APIKey,
		APIBase:        c.APIBase,
		Model:          c.Model,
		SmartFormat:    c.SmartFormat,
		DialTimeout:    c.DialTimeout,
		SilenceTimeout: c.SilenceTimeout,
		Keywords:       append([]string(nil), c.Keywords...),
	}
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.APIBase) == "" {
		c.APIBase = DefaultAPIBase
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return c
}

// listenMessage is the subset of Deepgram's streaming responses sauti reads.
type listenMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (m listenMessage) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

func (m listenMessage) final() bool {
	return m.IsFinal || m.SpeechFinal
}

func (m listenMessage) errorText() string {
	for _, s := range []string{m.Description, m.Message} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "deepgram returned an unknown error"
}

// buildListenURL converts the HTTP API base into the /listen websocket URL.
func buildListenURL(cfg Config, language string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram api base %q: %w", cfg.APIBase, err)
	}
	if listenURL.Host == "" {
		return "", fmt.Errorf("invalid deepgram api base %q: missing host", cfg.APIBase)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(sampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if language != "" {
		query.Set("language", language)
	}
	for _, keyword := range cfg.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			query.Add("keywords", keyword)
		}
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

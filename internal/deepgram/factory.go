package deepgram

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/sauti/internal/audio"
	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/session"
)

const supportCheckTimeout = 2 * time.Second

// Capture is one open microphone stream.
type Capture interface {
	Chunks() <-chan []byte
	Stop() error
}

// CaptureSource resolves and opens microphone streams.
type CaptureSource interface {
	Check(context.Context) error
	Open(context.Context) (Capture, error)
}

type pulseSource struct {
	source audio.Source
	dump   bool
	logger *slog.Logger
}

// PulseSource captures from the PulseAudio device chosen by cfg.Input and
// cfg.Fallback.
func PulseSource(cfg config.AudioConfig, logger *slog.Logger) CaptureSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return pulseSource{
		source: audio.Source{Input: cfg.Input, Fallback: cfg.Fallback},
		dump:   cfg.DebugDump,
		logger: logger,
	}
}

func (p pulseSource) Check(ctx context.Context) error {
	_, err := p.source.Check(ctx)
	return err
}

func (p pulseSource) Open(ctx context.Context) (Capture, error) {
	capture, selection, err := p.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		p.logger.Warn(selection.Warning)
	}
	p.logger.Debug("capture opened", "device", selection.Device.ID)
	if p.dump {
		return newDumpCapture(capture, p.logger), nil
	}
	return capture, nil
}

// dumpCapture tees chunks into an audio.Dump and saves it once the inner
// capture closes. After Stop, chunks that would block are recorded but not
// forwarded.
type dumpCapture struct {
	inner   Capture
	chunks  chan []byte
	stopped chan struct{}
	once    sync.Once
}

func newDumpCapture(inner Capture, logger *slog.Logger) *dumpCapture {
	d := &dumpCapture{inner: inner, chunks: make(chan []byte, 8), stopped: make(chan struct{})}
	go func() {
		defer close(d.chunks)
		var dump audio.Dump
		for chunk := range inner.Chunks() {
			_, _ = dump.Write(chunk)
			select {
			case d.chunks <- chunk:
			case <-d.stopped:
				select {
				case d.chunks <- chunk:
				default:
				}
			}
		}
		path, err := dump.Save()
		if err != nil {
			logger.Warn("unable to write debug audio dump", "error", err.Error())
			return
		}
		if path != "" {
			logger.Info("debug audio dump written", "path", path)
		}
	}()
	return d
}

func (d *dumpCapture) Chunks() <-chan []byte { return d.chunks }

func (d *dumpCapture) Stop() error {
	d.once.Do(func() { close(d.stopped) })
	return d.inner.Stop()
}

// Factory creates one Recognizer per engine handle.
type Factory struct {
	cfg    Config
	source CaptureSource
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewFactory(cfg Config, source CaptureSource, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{
		cfg:    cfg.withDefaults(),
		source: source,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Supported requires an API key and a resolvable capture device. It does
// not contact Deepgram.
func (f *Factory) Supported() bool {
	if strings.TrimSpace(f.cfg.APIKey) == "" {
		f.logger.Info("deepgram unsupported: api key not configured")
		return false
	}
	if f.source == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), supportCheckTimeout)
	defer cancel()
	if err := f.source.Check(ctx); err != nil {
		f.logger.Warn("deepgram unsupported: no capture device", "error", err.Error())
		return false
	}
	return true
}

func (f *Factory) New(opts session.RecognizerOptions) (session.Recognizer, error) {
	return &Recognizer{
		cfg:      f.cfg,
		language: opts.Language,
		source:   f.source,
		dialer:   f.dialer,
		logger:   f.logger.With("language", opts.Language),
	}, nil
}

package app

import (
	"log/slog"

	"github.com/rbright/sauti/internal/config"
	"github.com/rbright/sauti/internal/deepgram"
	"github.com/rbright/sauti/internal/logging"
	"github.com/rbright/sauti/internal/scripted"
	"github.com/rbright/sauti/internal/session"
)

// newFactory builds the recognizer factory selected by cfg.Engine.
func newFactory(cfg config.Config, logger *slog.Logger) (session.RecognizerFactory, error) {
	switch cfg.Engine {
	case "scripted":
		script, err := scripted.Load(cfg.Script.Path)
		if err != nil {
			return nil, err
		}
		return scripted.NewFactory(script, cfg.Script.Pace, logging.Component(logger, "scripted")), nil
	default:
		source := deepgram.PulseSource(cfg.Audio, logging.Component(logger, "audio"))
		return deepgram.NewFactory(deepgram.FromConfig(cfg.Deepgram), source, logging.Component(logger, "deepgram")), nil
	}
}

package scripted

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/sauti/internal/session"
)

// Factory hands each new engine instance the next scripted session.
type Factory struct {
	script Script
	pace   time.Duration
	logger *slog.Logger
	next   atomic.Int64
}

func NewFactory(script Script, pace time.Duration, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{script: script, pace: max(pace, 0), logger: logger}
}

func (f *Factory) Supported() bool { return true }

// Instances reports how many engine instances were created.
func (f *Factory) Instances() int { return int(f.next.Load()) }

func (f *Factory) New(opts session.RecognizerOptions) (session.Recognizer, error) {
	n := int(f.next.Add(1) - 1)

	rec := &Recognizer{
		pace:   f.pace,
		logger: f.logger.With("instance", n, "language", opts.Language),
		stop:   make(chan struct{}),
	}
	if n < len(f.script.Sessions) {
		s := f.script.Sessions[n]
		rec.session = &s
	}
	return rec, nil
}

// Recognizer replays one Session on its own goroutine.
type Recognizer struct {
	session *Session
	pace    time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	handlers session.Handlers
	started  bool
	ended    bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *Recognizer) SetHandlers(h session.Handlers) {
	r.mu.Lock()
	r.handlers = h
	r.mu.Unlock()
}

func (r *Recognizer) Start() error {
	r.mu.Lock()
	if r.started || r.ended {
		r.mu.Unlock()
		return errors.New("scripted recognizer already used")
	}
	r.started = true
	r.mu.Unlock()

	go r.run()
	return nil
}

func (r *Recognizer) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	idle := !r.started && !r.ended
	if idle {
		r.ended = true
	}
	h := r.handlers
	r.mu.Unlock()

	if idle && h.OnEnd != nil {
		h.OnEnd()
	}
	return nil
}

func (r *Recognizer) run() {
	h := r.currentHandlers()
	if h.OnStart != nil {
		h.OnStart()
	}
	r.replay()
	r.finish()
}

func (r *Recognizer) replay() {
	if r.session == nil {
		r.logger.Debug("script exhausted; listening until stopped")
		<-r.stop
		return
	}

	var finals []session.Result
	for _, utterance := range r.session.Utterances {
		for _, text := range utterance.Interim {
			if !r.wait() {
				return
			}
			results := append(append([]session.Result(nil), finals...), session.Result{Transcript: text})
			r.result(session.ResultEvent{Index: len(finals), Results: results})
		}
		if utterance.Final == "" {
			continue
		}
		if !r.wait() {
			return
		}
		finals = append(finals, session.Result{Transcript: utterance.Final, IsFinal: true})
		r.result(session.ResultEvent{Index: len(finals) - 1, Results: append([]session.Result(nil), finals...)})
	}

	if r.session.Error != "" && r.wait() {
		if h := r.currentHandlers(); h.OnError != nil {
			h.OnError(r.session.Error)
		}
	}
}

func (r *Recognizer) wait() bool {
	select {
	case <-r.stop:
		return false
	default:
	}
	if r.pace == 0 {
		return true
	}

	timer := time.NewTimer(r.pace)
	defer timer.Stop()
	select {
	case <-r.stop:
		return false
	case <-timer.C:
		return true
	}
}

func (r *Recognizer) result(ev session.ResultEvent) {
	if h := r.currentHandlers(); h.OnResult != nil {
		h.OnResult(ev)
	}
}

func (r *Recognizer) finish() {
	r.mu.Lock()
	r.ended = true
	h := r.handlers
	r.mu.Unlock()
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

func (r *Recognizer) currentHandlers() session.Handlers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers
}

// Package session drives a continuous speech recognition engine through its
// lifecycle and forwards final transcripts to the caller.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/sauti/internal/fsm"
	"github.com/rbright/sauti/internal/locale"
)

// DefaultEndWatchdog bounds how long a handle may stay silent after a stop
// request or a transient error before it is treated as ended.
const DefaultEndWatchdog = 3 * time.Second

// Options tunes controller behavior. The zero value is usable.
type Options struct {
	// Language overrides host locale selection when set.
	Language string
	// EndWatchdog of zero disables the watchdog.
	EndWatchdog time.Duration
	// MaxRestarts bounds consecutive restarts without a final transcript.
	// Zero means unlimited.
	MaxRestarts int
	Observer    Observer
}

// handle is one engine instance plus the controller's bookkeeping for it.
// Handles are compared by identity; events from a handle that is no longer
// current are dropped.
type handle struct {
	id         string
	language   string
	recognizer Recognizer
	emitted    map[int]struct{}
	watchdog   *time.Timer
}

func (h *handle) disarm() {
	if h.watchdog != nil {
		h.watchdog.Stop()
		h.watchdog = nil
	}
}

// Controller owns at most one live engine handle and the recording intent
// that decides whether an ended handle is replaced.
//
// Engine calls, observer calls and caller callbacks are never made while mu
// is held, so engines may deliver events synchronously from Start or Stop.
type Controller struct {
	logger         *slog.Logger
	factory        RecognizerFactory
	supported      bool
	observer       Observer
	opts           Options
	callbacks      CallbackRegistry
	selectLanguage func() string

	mu        sync.RWMutex
	state     fsm.State
	intent    bool
	recording bool
	interim   string
	current   *handle
	restarts  int
	barren    int
	version   uint64
	closed    bool
}

// NewController constructs a controller with safe default fallbacks.
// Capability support is detected once here.
func NewController(logger *slog.Logger, factory RecognizerFactory, callbacks Callbacks, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.MaxRestarts < 0 {
		opts.MaxRestarts = 0
	}

	c := &Controller{
		logger:    logger,
		factory:   factory,
		supported: DetectSupport(factory),
		observer:  opts.Observer,
		opts:      opts,
		state:     fsm.StateIdle,
	}
	override := opts.Language
	c.selectLanguage = func() string { return locale.Resolve(override) }
	c.callbacks.Set(callbacks)

	logger.Debug("session controller ready", "supported", c.supported)
	return c
}

// SetCallbacks replaces the caller's hooks. The next event uses them.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.callbacks.Set(cb)
}

// Snapshot returns a consistent view of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) IsRecording() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recording
}

func (c *Controller) InterimTranscript() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interim
}

func (c *Controller) IsSupported() bool {
	return c.supported
}

// Toggle starts dictation when idle and stops it otherwise. Engine failures
// are reported through OnError; the only returned error is ErrClosed.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.intent {
		stop := c.requestStopLocked("toggle")
		c.mu.Unlock()
		stop()
		return nil
	}

	if c.current != nil {
		// Still winding down; its end event restarts a fresh handle.
		c.intent = true
		c.barren = 0
		c.transitionLocked(fsm.EventResume)
		snap := c.changedLocked()
		id := c.current.id
		c.mu.Unlock()
		c.logger.Info("dictation resumed before previous handle ended", "session_id", id)
		c.notify(snap)
		return nil
	}

	if !c.supported {
		c.mu.Unlock()
		c.logger.Warn("toggle ignored", "error", ErrUnsupported.Error())
		c.callbacks.emitError(unsupportedMessage())
		return nil
	}

	c.intent = true
	c.barren = 0
	c.transitionLocked(fsm.EventStart)
	h, err := c.spawnLocked()
	if err != nil {
		snap := c.failLocked()
		c.mu.Unlock()
		c.logger.Error("create recognizer", "error", err.Error())
		c.callbacks.emitError(startFailureMessage(err))
		c.notify(snap)
		return nil
	}
	snap := c.changedLocked()
	c.mu.Unlock()

	c.notify(snap)
	c.start(h)
	return nil
}

// Reset stops dictation if it is running. It is a no-op otherwise.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.closed || !c.intent {
		c.mu.Unlock()
		return
	}
	stop := c.requestStopLocked("reset")
	c.mu.Unlock()
	stop()
}

// Close detaches and stops the live handle. Events that arrive afterwards
// are dropped and no callback fires. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.intent = false
	c.recording = false
	c.interim = ""
	h := c.current
	c.current = nil
	if h != nil {
		h.disarm()
	}
	c.transitionLocked(fsm.EventClose)
	snap := c.changedLocked()
	c.mu.Unlock()

	c.notify(snap)
	if h != nil {
		c.logger.Info("session closed", "session_id", h.id)
		c.stopRecognizer(h)
	}
}

// requestStopLocked clears intent and returns the work to run once mu is
// released.
func (c *Controller) requestStopLocked(reason string) func() {
	c.intent = false
	h := c.current
	if h == nil {
		c.recording = false
		c.interim = ""
		c.transitionLocked(fsm.EventFail)
		snap := c.changedLocked()
		return func() { c.notify(snap) }
	}

	c.transitionLocked(fsm.EventStop)
	c.armWatchdogLocked(h)
	snap := c.changedLocked()
	c.logger.Info("stop requested", "session_id", h.id, "reason", reason)
	return func() {
		c.notify(snap)
		c.stopRecognizer(h)
	}
}

// spawnLocked creates and wires a new current handle without starting it.
func (c *Controller) spawnLocked() (*handle, error) {
	if c.factory == nil {
		return nil, ErrUnsupported
	}
	lang := c.selectLanguage()
	rec, err := c.factory.New(RecognizerOptions{
		Language:       lang,
		Continuous:     true,
		InterimResults: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("create recognizer: %w", ErrUnsupported)
	}

	h := &handle{
		id:         uuid.NewString(),
		language:   lang,
		recognizer: rec,
		emitted:    make(map[int]struct{}),
	}
	rec.SetHandlers(c.wire(h))
	c.current = h
	c.logger.Info("recognizer created", "session_id", h.id, "language", lang, "restarts", c.restarts)
	return h, nil
}

func (c *Controller) start(h *handle) {
	if err := h.recognizer.Start(); err != nil {
		c.fail(h, startFailureMessage(err), err)
	}
}

// fail settles to idle and reports message once, if h is still current.
func (c *Controller) fail(h *handle, message string, cause error) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	snap := c.failLocked()
	c.mu.Unlock()

	c.logger.Error("session failed", "session_id", h.id, "error", cause.Error())
	c.callbacks.emitError(message)
	c.notify(snap)
	c.stopRecognizer(h)
}

func (c *Controller) failLocked() Snapshot {
	c.intent = false
	c.recording = false
	c.interim = ""
	if c.current != nil {
		c.current.disarm()
		c.current = nil
	}
	c.transitionLocked(fsm.EventFail)
	return c.changedLocked()
}

func (c *Controller) stopRecognizer(h *handle) {
	if err := h.recognizer.Stop(); err != nil {
		c.logger.Warn("recognizer stop failed", "session_id", h.id, "error", err.Error())
	}
}

func (c *Controller) armWatchdogLocked(h *handle) {
	if c.opts.EndWatchdog <= 0 || h.watchdog != nil {
		return
	}
	h.watchdog = time.AfterFunc(c.opts.EndWatchdog, func() { c.expire(h) })
}

// expire abandons a handle that never delivered its end event.
func (c *Controller) expire(h *handle) {
	c.mu.RLock()
	live := c.current == h
	c.mu.RUnlock()
	if !live {
		return
	}

	c.logger.Warn("recognizer did not end in time", "session_id", h.id, "watchdog", c.opts.EndWatchdog.String())
	c.stopRecognizer(h)
	c.handleEnd(h)
}

func (c *Controller) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Warn("ignoring session transition", "error", err.Error())
		return
	}
	c.state = next
}

func (c *Controller) changedLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:             c.state,
		IsRecording:       c.recording,
		IsSupported:       c.supported,
		InterimTranscript: c.interim,
		Restarts:          c.restarts,
		Version:           c.version,
	}
	if c.current != nil {
		snap.SessionID = c.current.id
	}
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	c.observer.StateChanged(snap)
}

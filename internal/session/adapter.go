package session

import (
	"strings"

	"github.com/rbright/sauti/internal/fsm"
)

// wire binds the engine events of h to the controller. Every handler checks
// that h is still current before touching state.
func (c *Controller) wire(h *handle) Handlers {
	return Handlers{
		OnStart:  func() { c.handleStart(h) },
		OnResult: func(ev ResultEvent) { c.handleResult(h, ev) },
		OnError:  func(code string) { c.handleError(h, code) },
		OnEnd:    func() { c.handleEnd(h) },
	}
}

func (c *Controller) handleStart(h *handle) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	hadInterim := c.interim != ""
	c.interim = ""
	if c.intent {
		c.recording = true
	}
	c.transitionLocked(fsm.EventStarted)
	snap := c.changedLocked()
	c.mu.Unlock()

	c.logger.Info("recognizer listening", "session_id", h.id, "language", h.language)
	if hadInterim {
		c.observer.InterimChanged("")
	}
	c.notify(snap)
}

// handleResult forwards each final result once and replaces the interim
// snapshot with the concatenation of the pending non-final results.
func (c *Controller) handleResult(h *handle, ev ResultEvent) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}

	var finals []string
	var interim strings.Builder
	for i := max(ev.Index, 0); i < len(ev.Results); i++ {
		result := ev.Results[i]
		if !result.IsFinal {
			interim.WriteString(result.Transcript)
			continue
		}
		if _, seen := h.emitted[i]; seen {
			continue
		}
		h.emitted[i] = struct{}{}
		if text := strings.TrimSpace(result.Transcript); text != "" {
			finals = append(finals, text)
		}
	}

	next := interim.String()
	changed := next != c.interim
	c.interim = next
	if changed {
		c.version++
	}
	if len(finals) > 0 {
		c.barren = 0
	}
	c.mu.Unlock()

	if changed {
		c.observer.InterimChanged(next)
	}
	for _, text := range finals {
		c.logger.Debug("final transcript", "session_id", h.id, "chars", len(text))
		c.callbacks.emitFinal(text)
	}
}

func (c *Controller) handleError(h *handle, code string) {
	class := Classify(code)
	if class.Fatal() {
		c.fail(h, FatalMessage(code), &RecognizerError{Code: code})
		return
	}

	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.armWatchdogLocked(h)
	c.mu.Unlock()

	c.logger.Info("recognizer reported transient error", "session_id", h.id, "code", code, "class", string(class))
}

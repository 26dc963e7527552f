package session

import "github.com/rbright/sauti/internal/fsm"

type endDecision int

const (
	endFinalize endDecision = iota
	endRestart
	endGiveUp
)

// decideEnd is the auto-restart policy applied when a handle ends.
func decideEnd(intent bool, barren, maxRestarts int) endDecision {
	if !intent {
		return endFinalize
	}
	if maxRestarts > 0 && barren >= maxRestarts {
		return endGiveUp
	}
	return endRestart
}

// handleEnd either settles to idle or replaces h with a fresh handle while
// the user still wants to record. isRecording is left untouched across a
// restart.
func (c *Controller) handleEnd(h *handle) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	h.disarm()
	hadInterim := c.interim != ""
	c.interim = ""

	switch decideEnd(c.intent, c.barren, c.opts.MaxRestarts) {
	case endFinalize:
		c.current = nil
		c.recording = false
		c.transitionLocked(fsm.EventEnded)
		snap := c.changedLocked()
		c.mu.Unlock()

		c.logger.Info("session ended", "session_id", h.id, "restarts", snap.Restarts)
		if hadInterim {
			c.observer.InterimChanged("")
		}
		c.notify(snap)
		return
	case endGiveUp:
		c.mu.Unlock()
		c.fail(h, startFailureMessage(ErrRestartLimit), ErrRestartLimit)
		return
	}

	c.barren++
	c.restarts++
	c.transitionLocked(fsm.EventRestart)
	next, err := c.spawnLocked()
	if err != nil {
		c.mu.Unlock()
		c.fail(h, startFailureMessage(err), err)
		return
	}
	snap := c.changedLocked()
	c.mu.Unlock()

	c.logger.Info("recognizer restarted", "previous_session_id", h.id, "session_id", next.id, "restarts", snap.Restarts)
	if hadInterim {
		c.observer.InterimChanged("")
	}
	c.notify(snap)
	c.start(next)
}

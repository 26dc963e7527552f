package session

import "sync/atomic"

// Callbacks are the caller's notification hooks.
type Callbacks struct {
	OnFinalTranscript func(text string)
	OnError           func(message string)
}

// CallbackRegistry holds the most recently supplied Callbacks. Readers load
// it at event time, so a replacement takes effect for the next event even
// while an engine handle created earlier is still running.
type CallbackRegistry struct {
	current atomic.Pointer[Callbacks]
}

func (r *CallbackRegistry) Set(cb Callbacks) {
	r.current.Store(&cb)
}

func (r *CallbackRegistry) Current() Callbacks {
	if cb := r.current.Load(); cb != nil {
		return *cb
	}
	return Callbacks{}
}

func (r *CallbackRegistry) emitFinal(text string) {
	if fn := r.Current().OnFinalTranscript; fn != nil {
		fn(text)
	}
}

func (r *CallbackRegistry) emitError(message string) {
	if fn := r.Current().OnError; fn != nil {
		fn(message)
	}
}

package session

import "github.com/rbright/sauti/internal/fsm"

// Snapshot is a consistent read of the controller's observable state.
type Snapshot struct {
	State             fsm.State
	IsRecording       bool
	IsSupported       bool
	InterimTranscript string
	SessionID         string
	Restarts          int
	// Version increases with every change; observers may receive snapshots
	// out of order and should drop older versions.
	Version uint64
}

// Observer is notified after every state or interim change. Calls may come
// from several goroutines.
type Observer interface {
	StateChanged(Snapshot)
	InterimChanged(string)
}

type noopObserver struct{}

func (noopObserver) StateChanged(Snapshot)  {}
func (noopObserver) InterimChanged(string) {}

type multiObserver []Observer

// Observers fans notifications out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return noopObserver{}
	}
	return out
}

func (m multiObserver) StateChanged(s Snapshot) {
	for _, o := range m {
		o.StateChanged(s)
	}
}

func (m multiObserver) InterimChanged(text string) {
	for _, o := range m {
		o.InterimChanged(text)
	}
}

package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/sauti/internal/fsm"
)

type fakeRecognizer struct {
	opts RecognizerOptions

	// startOnStart fires OnStart from inside Start; endOnStop fires
	// aborted + end from inside Stop.
	startOnStart bool
	endOnStop    bool
	startErr     error

	startCalls atomic.Int32
	stopCalls  atomic.Int32

	mu       sync.Mutex
	handlers Handlers
}

func (r *fakeRecognizer) SetHandlers(h Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = h
}

func (r *fakeRecognizer) Start() error {
	r.startCalls.Add(1)
	if r.startErr != nil {
		return r.startErr
	}
	if r.startOnStart {
		r.emitStart()
	}
	return nil
}

func (r *fakeRecognizer) Stop() error {
	r.stopCalls.Add(1)
	if r.endOnStop {
		r.emitError(CodeAborted)
		r.emitEnd()
	}
	return nil
}

func (r *fakeRecognizer) h() Handlers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers
}

func (r *fakeRecognizer) emitStart()                { r.h().OnStart() }
func (r *fakeRecognizer) emitResult(ev ResultEvent) { r.h().OnResult(ev) }
func (r *fakeRecognizer) emitError(code string)     { r.h().OnError(code) }
func (r *fakeRecognizer) emitEnd()                  { r.h().OnEnd() }

type fakeFactory struct {
	unsupported bool
	newErr      error
	// configure runs on every created recognizer before it is returned.
	configure func(n int, r *fakeRecognizer)

	mu      sync.Mutex
	created []*fakeRecognizer
}

func (f *fakeFactory) Supported() bool { return !f.unsupported }

func (f *fakeFactory) New(opts RecognizerOptions) (Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	r := &fakeRecognizer{opts: opts}
	if f.configure != nil {
		f.configure(len(f.created), r)
	}
	f.created = append(f.created, r)
	return r, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) at(i int) *fakeRecognizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}

func (f *fakeFactory) setNewErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newErr = err
}

type callbackRecorder struct {
	mu     sync.Mutex
	finals []string
	errors []string
}

func (r *callbackRecorder) callbacks() Callbacks {
	return Callbacks{
		OnFinalTranscript: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.finals = append(r.finals, text)
		},
		OnError: func(message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, message)
		},
	}
}

func (r *callbackRecorder) Finals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.finals...)
}

func (r *callbackRecorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

type recordingObserver struct {
	mu        sync.Mutex
	snapshots []Snapshot
	interims  []string
}

func (o *recordingObserver) StateChanged(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots = append(o.snapshots, s)
}

func (o *recordingObserver) InterimChanged(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interims = append(o.interims, text)
}

func newTestController(factory RecognizerFactory, rec *callbackRecorder, opts Options) *Controller {
	ctrl := NewController(nil, factory, rec.callbacks(), opts)
	ctrl.selectLanguage = func() string { return "en-US" }
	return ctrl
}

func waitForState(t *testing.T, ctrl *Controller, desired fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == desired {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", desired, ctrl.State())
}

package session

// Result is one recognition result inside a ResultEvent.
type Result struct {
	Transcript string
	IsFinal    bool
}

// ResultEvent carries the engine's cumulative result list for one handle.
// Entries before Index are unchanged since the previous event.
type ResultEvent struct {
	Index   int
	Results []Result
}

// Handlers receives the four lifecycle events of one engine handle. Engines
// deliver events for a handle sequentially, from any goroutine.
type Handlers struct {
	OnStart  func()
	OnResult func(ResultEvent)
	OnError  func(code string)
	OnEnd    func()
}

// RecognizerOptions configures one engine handle.
type RecognizerOptions struct {
	Language       string
	Continuous     bool
	InterimResults bool
}

// Recognizer is one single-use engine instance.
//
// Start may fire OnStart (and later events) before it returns. Stop must be
// safe to call more than once and should eventually lead to OnEnd.
type Recognizer interface {
	SetHandlers(Handlers)
	Start() error
	Stop() error
}

// RecognizerFactory creates engine handles. New must not fire events or
// block on I/O; engines connect in Start.
type RecognizerFactory interface {
	Supported() bool
	New(RecognizerOptions) (Recognizer, error)
}

package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/sauti/internal/session"
	"github.com/rbright/sauti/internal/version"
)

// closeGrace bounds how long the stream waits for trailing results after
// CloseStream was sent.
const closeGrace = 5 * time.Second

// netInactivity is Deepgram's close reason when it received no audio.
const netInactivity = "NET-0001"

type recognizerState int

const (
	stateNew recognizerState = iota
	stateConnecting
	stateRunning
	stateStopped
)

// Recognizer streams one capture session to Deepgram. It is single use.
type Recognizer struct {
	cfg      Config
	language string
	source   CaptureSource
	dialer   *websocket.Dialer
	logger   *slog.Logger

	mu       sync.Mutex
	handlers session.Handlers
	state    recognizerState
	capture  Capture
	cancel   context.CancelFunc
	silence  *time.Timer

	// emitMu orders handler calls; finals and ended are guarded by it.
	emitMu sync.Mutex
	finals []session.Result
	ended  bool
}

func (r *Recognizer) SetHandlers(h session.Handlers) {
	r.mu.Lock()
	r.handlers = h
	r.mu.Unlock()
}

func (r *Recognizer) Start() error {
	r.mu.Lock()
	if r.state != stateNew {
		r.mu.Unlock()
		return errors.New("deepgram recognizer already started")
	}
	r.state = stateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	conn, err := r.dial(ctx)
	if err != nil {
		if r.stoppedWhileConnecting() {
			return nil
		}
		r.abort()
		return err
	}

	capture, err := r.source.Open(ctx)
	if err != nil {
		_ = conn.Close()
		if r.stoppedWhileConnecting() {
			return nil
		}
		r.abort()
		return &session.RecognizerError{Code: session.CodeAudioCapture, Err: err}
	}

	r.mu.Lock()
	if r.state == stateStopped {
		r.mu.Unlock()
		_ = capture.Stop()
		_ = conn.Close()
		cancel()
		r.emitEnd()
		return nil
	}
	r.state = stateRunning
	r.capture = capture
	r.mu.Unlock()

	r.logger.Debug("deepgram stream connected")
	r.emitStart()
	r.resetSilence()

	go r.writeLoop(conn, capture)
	go r.readLoop(conn)
	return nil
}

// Stop closes the microphone; Deepgram flushes pending results and closes
// the socket, which ends the session.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	prev := r.state
	r.state = stateStopped
	capture := r.capture
	cancel := r.cancel
	r.stopSilenceLocked()
	r.mu.Unlock()

	switch prev {
	case stateNew:
		r.emitEnd()
	case stateConnecting:
		cancel()
	case stateRunning:
		return capture.Stop()
	}
	return nil
}

func (r *Recognizer) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := buildListenURL(r.cfg, r.language)
	if err != nil {
		return nil, &session.RecognizerError{Code: session.CodeNetwork, Err: err}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)
	headers.Set("User-Agent", version.UserAgent())

	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	defer cancel()

	dialer, release := cancellableDialer(r.dialer)
	conn, resp, err := dialer.DialContext(dialCtx, wsURL, headers)
	release()
	if err != nil {
		code := session.CodeNetwork
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				code = session.CodeNotAllowed
			}
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, &session.RecognizerError{Code: code, Err: fmt.Errorf("connect deepgram listen: %w", err)}
	}
	return conn, nil
}

// cancellableDialer copies base so that cancelling the dial context also
// closes the TCP connection. The websocket handshake itself only honours
// deadlines. release must be called once the dial returns.
func cancellableDialer(base *websocket.Dialer) (*websocket.Dialer, func()) {
	dialer := *base
	netDial := dialer.NetDialContext
	if netDial == nil {
		netDial = (&net.Dialer{}).DialContext
	}

	var stop func() bool
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := netDial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
		return conn, nil
	}
	return &dialer, func() {
		if stop != nil {
			stop()
		}
	}
}

// stoppedWhileConnecting reports a Stop that interrupted Start, ending the
// session instead of failing it.
func (r *Recognizer) stoppedWhileConnecting() bool {
	r.mu.Lock()
	stopped := r.state == stateStopped
	r.mu.Unlock()
	if stopped {
		r.logger.Debug("deepgram connect interrupted by stop")
		r.emitEnd()
	}
	return stopped
}

func (r *Recognizer) abort() {
	r.mu.Lock()
	r.state = stateStopped
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Recognizer) writeLoop(conn *websocket.Conn, capture Capture) {
	for chunk := range capture.Chunks() {
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			r.logger.Debug("deepgram audio write failed", "error", err.Error())
			_ = conn.Close()
			return
		}
	}

	if r.running() {
		r.logger.Warn("capture ended while streaming")
		r.emitError(session.CodeAudioCapture)
	}

	if err := conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		r.logger.Debug("deepgram close stream failed", "error", err.Error())
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
}

func (r *Recognizer) readLoop(conn *websocket.Conn) {
	defer r.finish(conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if code := r.readErrorCode(err); code != "" {
				r.logger.Warn("deepgram stream failed", "error", err.Error(), "code", code)
				r.emitError(code)
			}
			return
		}

		var msg listenMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			r.logger.Debug("ignoring malformed deepgram message", "error", err.Error())
			continue
		}

		switch strings.ToLower(strings.TrimSpace(msg.Type)) {
		case "results":
			r.handleResults(msg)
		case "error":
			r.logger.Warn("deepgram reported error", "message", msg.errorText())
			r.emitError(session.CodeNetwork)
			return
		}
	}
}

func (r *Recognizer) readErrorCode(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && strings.Contains(closeErr.Text, netInactivity) {
		return session.CodeNoSpeech
	}
	if r.stopped() {
		return ""
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return ""
	}
	return session.CodeNetwork
}

func (r *Recognizer) finish(conn *websocket.Conn) {
	r.mu.Lock()
	r.state = stateStopped
	capture := r.capture
	cancel := r.cancel
	r.stopSilenceLocked()
	r.mu.Unlock()

	if capture != nil {
		_ = capture.Stop()
	}
	_ = conn.Close()
	if cancel != nil {
		cancel()
	}
	r.logger.Debug("deepgram stream closed")
	r.emitEnd()
}

func (r *Recognizer) handleResults(msg listenMessage) {
	text := msg.transcript()
	if text == "" {
		return
	}
	r.resetSilence()

	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.ended {
		return
	}

	var event session.ResultEvent
	if msg.final() {
		r.finals = append(r.finals, session.Result{Transcript: text, IsFinal: true})
		event = session.ResultEvent{
			Index:   len(r.finals) - 1,
			Results: append([]session.Result(nil), r.finals...),
		}
	} else {
		results := make([]session.Result, 0, len(r.finals)+1)
		results = append(results, r.finals...)
		event = session.ResultEvent{
			Index:   len(r.finals),
			Results: append(results, session.Result{Transcript: text}),
		}
	}

	if h := r.currentHandlers(); h.OnResult != nil {
		h.OnResult(event)
	}
}

func (r *Recognizer) resetSilence() {
	if r.cfg.SilenceTimeout <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateRunning {
		return
	}
	if r.silence == nil {
		r.silence = time.AfterFunc(r.cfg.SilenceTimeout, r.onSilence)
		return
	}
	r.silence.Reset(r.cfg.SilenceTimeout)
}

func (r *Recognizer) stopSilenceLocked() {
	if r.silence != nil {
		r.silence.Stop()
	}
}

func (r *Recognizer) onSilence() {
	if !r.running() {
		return
	}
	r.logger.Info("no speech detected; closing stream", "timeout", r.cfg.SilenceTimeout.String())
	r.emitError(session.CodeNoSpeech)
	_ = r.Stop()
}

func (r *Recognizer) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateRunning
}

func (r *Recognizer) stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateStopped
}

func (r *Recognizer) currentHandlers() session.Handlers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers
}

func (r *Recognizer) emitStart() {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.ended {
		return
	}
	if h := r.currentHandlers(); h.OnStart != nil {
		h.OnStart()
	}
}

func (r *Recognizer) emitError(code string) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.ended {
		return
	}
	if h := r.currentHandlers(); h.OnError != nil {
		h.OnError(code)
	}
}

func (r *Recognizer) emitEnd() {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	if h := r.currentHandlers(); h.OnEnd != nil {
		h.OnEnd()
	}
}

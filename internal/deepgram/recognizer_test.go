package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/sauti/internal/session"
	"github.com/stretchr/testify/require"
)

func TestBuildListenURL(t *testing.T) {
	raw, err := buildListenURL(Config{
		APIBase:     "https://api.deepgram.com/v1/",
		Model:       "nova-2",
		SmartFormat: true,
		Keywords:    []string{"sauti:2", " ", "Nairobi"},
	}, "sw-KE")
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "wss", parsed.Scheme)
	require.Equal(t, "/v1/listen", parsed.Path)

	query := parsed.Query()
	require.Equal(t, "nova-2", query.Get("model"))
	require.Equal(t, "linear16", query.Get("encoding"))
	require.Equal(t, "16000", query.Get("sample_rate"))
	require.Equal(t, "1", query.Get("channels"))
	require.Equal(t, "true", query.Get("interim_results"))
	require.Equal(t, "true", query.Get("smart_format"))
	require.Equal(t, "sw-KE", query.Get("language"))
	require.Equal(t, []string{"sauti:2", "Nairobi"}, query["keywords"])
}

func TestBuildListenURLPlainHTTP(t *testing.T) {
	raw, err := buildListenURL(Config{APIBase: "http://127.0.0.1:9000"}, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "ws://127.0.0.1:9000/listen?"))
	require.NotContains(t, raw, "language=")
}

func TestBuildListenURLRejectsMissingHost(t *testing.T) {
	_, err := buildListenURL(Config{APIBase: "not a url"}, "en-US")
	require.Error(t, err)
}

func TestRecognizerStreamsInterimAndFinalResults(t *testing.T) {
	var audioBytes atomic.Int64
	closeStream := make(chan struct{})
	queries := make(chan url.Values, 1)

	srv := newListenServer(t, queries, func(conn *websocket.Conn) {
		writeResults(conn, "habari", false)
		writeResults(conn, "habari yako", true)
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				audioBytes.Add(int64(len(payload)))
				continue
			}
			if strings.Contains(string(payload), "CloseStream") {
				close(closeStream)
				writeResults(conn, "asante", true)
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	})

	source := newFakeSource([]byte{1, 2, 3, 4})
	rec, events := newTestRecognizer(t, srv.URL, Config{SmartFormat: true}, source)

	require.NoError(t, rec.Start())
	requireEvent(t, events, "start")
	requireEvent(t, events, "result 0 [habari]")
	requireEvent(t, events, "result 0 [habari yako!]")

	query := <-queries
	require.Equal(t, "sw-KE", query.Get("language"))

	require.NoError(t, rec.Stop())
	requireEvent(t, events, "result 1 [habari yako! asante!]")
	requireEvent(t, events, "end")

	select {
	case <-closeStream:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received CloseStream")
	}
	require.Equal(t, int64(4), audioBytes.Load())
	requireNoEvent(t, events)
}

func TestRecognizerMapsUnauthorizedToNotAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	rec, events := newTestRecognizer(t, srv.URL, Config{}, newFakeSource())
	err := rec.Start()
	require.Error(t, err)

	code, ok := session.IsRecognizerError(err)
	require.True(t, ok)
	require.Equal(t, session.CodeNotAllowed, code)
	requireNoEvent(t, events)
	require.NoError(t, rec.Stop())
}

func TestRecognizerMapsCaptureFailureToAudioCapture(t *testing.T) {
	srv := newListenServer(t, nil, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	source := newFakeSource()
	source.openErr = errors.New("device busy")
	rec, _ := newTestRecognizer(t, srv.URL, Config{}, source)

	code, ok := session.IsRecognizerError(rec.Start())
	require.True(t, ok)
	require.Equal(t, session.CodeAudioCapture, code)
}

func TestRecognizerMapsInactivityCloseToNoSpeech(t *testing.T) {
	srv := newListenServer(t, nil, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, netInactivity))
		_, _, _ = conn.ReadMessage()
	})

	rec, events := newTestRecognizer(t, srv.URL, Config{}, newFakeSource())
	require.NoError(t, rec.Start())
	requireEvent(t, events, "start")
	requireEvent(t, events, "error no-speech")
	requireEvent(t, events, "end")
}

func TestRecognizerMapsUnexpectedCloseToNetwork(t *testing.T) {
	srv := newListenServer(t, nil, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom"))
		_, _, _ = conn.ReadMessage()
	})

	rec, events := newTestRecognizer(t, srv.URL, Config{}, newFakeSource())
	require.NoError(t, rec.Start())
	requireEvent(t, events, "start")
	requireEvent(t, events, "error network")
	requireEvent(t, events, "end")
}

func TestRecognizerMapsErrorMessageToNetwork(t *testing.T) {
	srv := newListenServer(t, nil, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]string{"type": "Error", "description": "bad audio"})
		_, _, _ = conn.ReadMessage()
	})

	rec, events := newTestRecognizer(t, srv.URL, Config{}, newFakeSource())
	require.NoError(t, rec.Start())
	requireEvent(t, events, "start")
	requireEvent(t, events, "error network")
	requireEvent(t, events, "end")
}

func TestRecognizerSilenceTimeoutEndsStream(t *testing.T) {
	srv := newListenServer(t, nil, func(conn *websocket.Conn) {
		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage && strings.Contains(string(payload), "CloseStream") {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	})

	rec, events := newTestRecognizer(t, srv.URL, Config{SilenceTimeout: 50 * time.Millisecond}, newFakeSource())
	require.NoError(t, rec.Start())
	requireEvent(t, events, "start")
	requireEvent(t, events, "error no-speech")
	requireEvent(t, events, "end")
}

func TestRecognizerStopBeforeStartEnds(t *testing.T) {
	rec, events := newTestRecognizer(t, "http://127.0.0.1:1", Config{}, newFakeSource())
	require.NoError(t, rec.Stop())
	requireEvent(t, events, "end")
	require.NoError(t, rec.Stop())
	requireNoEvent(t, events)
	require.Error(t, rec.Start())
}

func TestRecognizerStopDuringDialEndsWithoutError(t *testing.T) {
	reached := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached <- struct{}{}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	rec, events := newTestRecognizer(t, srv.URL+"/v1", Config{}, newFakeSource())

	started := make(chan error, 1)
	go func() { started <- rec.Start() }()

	select {
	case <-reached:
	case <-time.After(3 * time.Second):
		t.Fatal("dial never reached the server")
	}

	begin := time.Now()
	require.NoError(t, rec.Stop())
	select {
	case err := <-started:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start kept dialing after Stop")
	}
	require.Less(t, time.Since(begin), time.Second)

	requireEvent(t, events, "end")
	requireNoEvent(t, events)
}

func TestFactoryNewCarriesLanguageAndDefaults(t *testing.T) {
	factory := NewFactory(Config{APIKey: "key"}, newFakeSource(), nil)
	rec, err := factory.New(session.RecognizerOptions{Language: "sw-KE", Continuous: true, InterimResults: true})
	require.NoError(t, err)

	dg, ok := rec.(*Recognizer)
	require.True(t, ok)
	require.Equal(t, "sw-KE", dg.language)
	require.Equal(t, DefaultAPIBase, dg.cfg.APIBase)
	require.Equal(t, DefaultModel, dg.cfg.Model)
	require.NotNil(t, dg.dialer)
	require.NotNil(t, dg.source)

	other, err := factory.New(session.RecognizerOptions{Language: "en-US"})
	require.NoError(t, err)
	require.NotSame(t, dg, other)
}

func TestFactorySupported(t *testing.T) {
	require.False(t, NewFactory(Config{}, newFakeSource(), nil).Supported())
	require.False(t, NewFactory(Config{APIKey: "key"}, nil, nil).Supported())

	broken := newFakeSource()
	broken.checkErr = errors.New("no devices")
	require.False(t, NewFactory(Config{APIKey: "key"}, broken, nil).Supported())

	require.True(t, NewFactory(Config{APIKey: "key"}, newFakeSource(), nil).Supported())
}

func TestDumpCaptureForwardsAndSaves(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)

	inner := &fakeCapture{chunks: make(chan []byte, 2)}
	inner.chunks <- []byte{1, 2}
	inner.chunks <- []byte{3, 4}

	capture := newDumpCapture(inner, slog.New(slog.DiscardHandler))
	require.Equal(t, []byte{1, 2}, <-capture.Chunks())
	require.Equal(t, []byte{3, 4}, <-capture.Chunks())
	require.NoError(t, capture.Stop())

	_, open := <-capture.Chunks()
	require.False(t, open)

	matches, err := filepath.Glob(filepath.Join(stateHome, "sauti", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, data[44:])
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Token good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"projects":[]}`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	require.NoError(t, Ping(ctx, srv.Client(), Config{APIKey: "good", APIBase: srv.URL + "/v1"}))

	err := Ping(ctx, srv.Client(), Config{APIKey: "bad", APIBase: srv.URL + "/v1"})
	require.ErrorContains(t, err, "rejected")

	require.ErrorContains(t, Ping(ctx, srv.Client(), Config{APIBase: srv.URL}), "not configured")
}

func newListenServer(t *testing.T, queries chan<- url.Values, script func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "sauti/") {
			http.Error(w, "missing user agent", http.StatusBadRequest)
			return
		}
		if queries != nil {
			select {
			case queries <- r.URL.Query():
			default:
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeResults(conn *websocket.Conn, text string, final bool) {
	if final {
		text += "!"
	}
	payload := fmt.Sprintf(`{"type":"Results","is_final":%t,"channel":{"alternatives":[{"transcript":%q}]}}`, final, text)
	_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func newTestRecognizer(t *testing.T, base string, cfg Config, source CaptureSource) (session.Recognizer, <-chan string) {
	t.Helper()
	cfg.APIKey = "test-key"
	cfg.APIBase = base
	cfg.DialTimeout = 2 * time.Second

	rec, err := NewFactory(cfg, source, nil).New(session.RecognizerOptions{Language: "sw-KE", Continuous: true, InterimResults: true})
	require.NoError(t, err)

	events := make(chan string, 32)
	rec.SetHandlers(session.Handlers{
		OnStart: func() { events <- "start" },
		OnResult: func(ev session.ResultEvent) {
			parts := make([]string, 0, len(ev.Results))
			for _, result := range ev.Results {
				parts = append(parts, result.Transcript)
			}
			events <- fmt.Sprintf("result %d [%s]", ev.Index, strings.Join(parts, " "))
		},
		OnError: func(code string) { events <- "error " + code },
		OnEnd:   func() { events <- "end" },
	})
	return rec, events
}

func requireEvent(t *testing.T, events <-chan string, want string) {
	t.Helper()
	select {
	case got := <-events:
		require.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func requireNoEvent(t *testing.T, events <-chan string) {
	t.Helper()
	select {
	case got := <-events:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeCapture struct {
	chunks chan []byte
	once   sync.Once
}

func (c *fakeCapture) Chunks() <-chan []byte { return c.chunks }

func (c *fakeCapture) Stop() error {
	c.once.Do(func() { close(c.chunks) })
	return nil
}

type fakeSource struct {
	checkErr error
	openErr  error
	chunks   [][]byte
}

func newFakeSource(chunks ...[]byte) *fakeSource {
	return &fakeSource{chunks: chunks}
}

func (s *fakeSource) Check(context.Context) error { return s.checkErr }

func (s *fakeSource) Open(context.Context) (Capture, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	capture := &fakeCapture{chunks: make(chan []byte, len(s.chunks)+1)}
	for _, chunk := range s.chunks {
		capture.chunks <- chunk
	}
	return capture, nil
}

package scripted

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/sauti/internal/fsm"
	"github.com/rbright/sauti/internal/session"
	"github.com/stretchr/testify/require"
)

const twoSessions = `
sessions:
  - utterances:
      - interim: ["habari", "habari ya"]
        final: "habari yako"
      - final: "karibu"
  - utterances:
      - final: "asante"
    error: network
`

func TestParseScript(t *testing.T) {
	script, err := Parse(strings.NewReader(twoSessions))
	require.NoError(t, err)
	require.Len(t, script.Sessions, 2)
	require.Equal(t, []string{"habari", "habari ya"}, script.Sessions[0].Utterances[0].Interim)
	require.Equal(t, "karibu", script.Sessions[0].Utterances[1].Final)
	require.Equal(t, "network", script.Sessions[1].Error)
}

func TestParseScriptRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("sessions:\n  - utterance: []\n"))
	require.Error(t, err)
}

func TestParseScriptRejectsEmptyUtterance(t *testing.T) {
	_, err := Parse(strings.NewReader("sessions:\n  - utterances:\n      - final: \"  \"\n"))
	require.ErrorContains(t, err, "sessions[0].utterances[0]")
}

func TestParseScriptRejectsEmptyDocument(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.ErrorContains(t, err, "empty")
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoSessions), 0o600))

	script, err := Load(path)
	require.NoError(t, err)
	require.Len(t, script.Sessions, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read script")
}

func TestRecognizerReplaysSession(t *testing.T) {
	script, err := Parse(strings.NewReader(twoSessions))
	require.NoError(t, err)
	factory := NewFactory(script, 0, nil)

	first, events := newRecorded(t, factory)
	require.NoError(t, first.Start())
	require.Equal(t, []string{
		"start",
		"result 0 [habari]",
		"result 0 [habari ya]",
		"result 0 [habari yako*]",
		"result 1 [habari yako* karibu*]",
		"end",
	}, drain(t, events, 6))

	second, events := newRecorded(t, factory)
	require.NoError(t, second.Start())
	require.Equal(t, []string{"start", "result 0 [asante*]", "error network", "end"}, drain(t, events, 4))
	require.Equal(t, 2, factory.Instances())
}

func TestRecognizerPastScriptListensUntilStopped(t *testing.T) {
	factory := NewFactory(Script{}, 0, nil)
	rec, events := newRecorded(t, factory)
	require.NoError(t, rec.Start())
	require.Equal(t, []string{"start"}, drain(t, events, 1))

	select {
	case got := <-events:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, rec.Stop())
	require.Equal(t, []string{"end"}, drain(t, events, 1))
}

func TestRecognizerStopInterruptsPacedReplay(t *testing.T) {
	script, err := Parse(strings.NewReader(twoSessions))
	require.NoError(t, err)

	rec, events := newRecorded(t, NewFactory(script, time.Hour, nil))
	require.NoError(t, rec.Start())
	require.Equal(t, []string{"start"}, drain(t, events, 1))

	require.NoError(t, rec.Stop())
	require.Equal(t, []string{"end"}, drain(t, events, 1))
	require.Error(t, rec.Start())
}

func TestRecognizerStopBeforeStartEndsOnce(t *testing.T) {
	rec, events := newRecorded(t, NewFactory(Script{}, 0, nil))
	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop())
	require.Equal(t, []string{"end"}, drain(t, events, 1))
	require.Empty(t, events)
	require.Error(t, rec.Start())
}

func TestControllerRestartsAcrossScriptedSessions(t *testing.T) {
	script, err := Parse(strings.NewReader(`
sessions:
  - utterances:
      - interim: ["good"]
        final: "good morning"
  - utterances:
      - final: "how are you"
`))
	require.NoError(t, err)

	finals := make(chan string, 4)
	factory := NewFactory(script, time.Millisecond, nil)
	controller := session.NewController(nil, factory, session.Callbacks{
		OnFinalTranscript: func(text string) { finals <- text },
	}, session.Options{Language: "en-US"})
	t.Cleanup(controller.Close)

	require.NoError(t, controller.Toggle())
	require.Equal(t, "good morning", receive(t, finals))
	require.Equal(t, "how are you", receive(t, finals))

	require.Eventually(t, func() bool { return factory.Instances() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, controller.IsRecording())

	require.NoError(t, controller.Toggle())
	require.Eventually(t, func() bool { return controller.State() == fsm.StateIdle }, 2*time.Second, 5*time.Millisecond)
	require.False(t, controller.IsRecording())
}

func newRecorded(t *testing.T, factory *Factory) (session.Recognizer, chan string) {
	t.Helper()
	rec, err := factory.New(session.RecognizerOptions{Language: "sw-KE", Continuous: true, InterimResults: true})
	require.NoError(t, err)

	events := make(chan string, 16)
	rec.SetHandlers(session.Handlers{
		OnStart: func() { events <- "start" },
		OnResult: func(ev session.ResultEvent) {
			parts := make([]string, 0, len(ev.Results))
			for _, result := range ev.Results {
				text := result.Transcript
				if result.IsFinal {
					text += "*"
				}
				parts = append(parts, text)
			}
			events <- fmt.Sprintf("result %d [%s]", ev.Index, strings.Join(parts, " "))
		},
		OnError: func(code string) { events <- "error " + code },
		OnEnd:   func() { events <- "end" },
	})
	return rec, events
}

func drain(t *testing.T, events <-chan string, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for len(out) < n {
		out = append(out, receive(t, events))
	}
	return out
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

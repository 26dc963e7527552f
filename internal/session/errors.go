package session

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported indicates no recognition capability exists on this host.
	ErrUnsupported = errors.New("speech recognition is not supported on this system")
	// ErrClosed indicates the controller has been torn down.
	ErrClosed = errors.New("session controller is closed")
	// ErrRestartLimit indicates the engine kept ending without producing speech.
	ErrRestartLimit = errors.New("speech recognition kept ending without results")
)

// Engine error codes.
const (
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeAudioCapture      = "audio-capture"
	CodeNetwork           = "network"
)

type Classification string

const (
	NoSpeechTimeout   Classification = "no_speech_timeout"
	AbortedByUser     Classification = "aborted_by_user"
	PermissionOrOther Classification = "permission_or_other"
)

// Classify maps an engine error code onto its handling class.
func Classify(code string) Classification {
	switch code {
	case CodeNoSpeech:
		return NoSpeechTimeout
	case CodeAborted:
		return AbortedByUser
	default:
		return PermissionOrOther
	}
}

// Fatal reports whether the class ends the dictation session.
func (c Classification) Fatal() bool {
	return c == PermissionOrOther
}

// FatalMessage is the caller-facing text for a fatal engine error code.
func FatalMessage(code string) string {
	switch code {
	case CodeNotAllowed, CodeServiceNotAllowed:
		return "Microphone permission denied. Allow microphone access and try again."
	case CodeAudioCapture:
		return "No microphone could be opened for speech recognition."
	case CodeNetwork:
		return "Speech recognition failed: network error."
	case "":
		return "Speech recognition failed."
	default:
		return fmt.Sprintf("Speech recognition error: %s", code)
	}
}

// RecognizerError is returned by engines to attach an error code to a
// failure.
type RecognizerError struct {
	Code string
	Err  error
}

func (e *RecognizerError) Error() string {
	if e.Err == nil {
		return "recognizer error: " + e.Code
	}
	return fmt.Sprintf("recognizer error %s: %v", e.Code, e.Err)
}

func (e *RecognizerError) Unwrap() error {
	return e.Err
}

// IsRecognizerError reports whether err carries an engine error code and
// returns it.
func IsRecognizerError(err error) (string, bool) {
	var recErr *RecognizerError
	if errors.As(err, &recErr) {
		return recErr.Code, true
	}
	return "", false
}

func startFailureMessage(err error) string {
	if code, ok := IsRecognizerError(err); ok {
		return FatalMessage(code)
	}
	if errors.Is(err, ErrRestartLimit) {
		return "Speech recognition stopped: " + ErrRestartLimit.Error() + "."
	}
	return fmt.Sprintf("Speech recognition could not start: %v", err)
}

func unsupportedMessage() string {
	return "Speech recognition is not supported on this system."
}

// Package ipc carries newline-delimited JSON requests between sauti
// processes over a unix socket owned by the running session.
package ipc

// Commands understood by the session owner.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandReset  = "reset"
)

type Request struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

// Response mirrors the owner's session snapshot after handling a request.
type Response struct {
	ID        string `json:"id,omitempty"`
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Recording bool   `json:"recording"`
	Supported bool   `json:"supported"`
	Interim   string `json:"interim,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Restarts  int    `json:"restarts,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Known reports whether command is handled by the owner.
func Known(command string) bool {
	switch command {
	case CommandStatus, CommandToggle, CommandReset:
		return true
	}
	return false
}

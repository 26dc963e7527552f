package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/rbright/sauti/internal/session"
)

// console prints interim ("~ ") and final ("> ") transcripts.
type console struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

func newConsole(stdout, stderr io.Writer) *console {
	return &console{stdout: stdout, stderr: stderr}
}

func (c *console) StateChanged(session.Snapshot) {}

func (c *console) InterimChanged(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.stdout, "~ %s\n", text)
}

func (c *console) final(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.stdout, "> %s\n", text)
}

func (c *console) errorLine(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.stderr, "error: %s\n", message)
}

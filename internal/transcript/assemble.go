// Package transcript assembles final recognition segments into text.
package transcript

import (
	"strings"
	"sync"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
	// Language is a BCP-47 tag; English enables standalone "i" casing.
	Language string
}

// Assemble joins final segments and applies configured normalization.
func Assemble(finalSegments []string, opts Options) string {
	if len(finalSegments) == 0 {
		return ""
	}

	normalized := strings.Join(strings.Fields(strings.Join(finalSegments, " ")), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentenceStarts(normalized)
		if isEnglish(opts.Language) {
			normalized = capitalizePronounI(normalized)
		}
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

func isEnglish(tag string) bool {
	return tag == "" || strings.HasPrefix(strings.ToLower(tag), "en")
}

// Accumulator collects the finals of one recording and renders them.
type Accumulator struct {
	mu       sync.Mutex
	opts     Options
	segments []string
}

func NewAccumulator(opts Options) *Accumulator {
	return &Accumulator{opts: opts}
}

// Add appends segment and returns the assembled text so far.
func (a *Accumulator) Add(segment string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if strings.TrimSpace(segment) != "" {
		a.segments = append(a.segments, segment)
	}
	return Assemble(a.segments, a.opts)
}

func (a *Accumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Assemble(a.segments, a.opts)
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.segments = nil
	a.mu.Unlock()
}

// SetOptions changes formatting for subsequent renders.
func (a *Accumulator) SetOptions(opts Options) {
	a.mu.Lock()
	a.opts = opts
	a.mu.Unlock()
}

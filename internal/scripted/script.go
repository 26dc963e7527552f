// Package scripted replays recognition sessions from a YAML file. It drives
// the session controller without a microphone or network.
package scripted

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Script is an ordered list of sessions; engine instance N replays Sessions[N].
type Script struct {
	Sessions []Session `yaml:"sessions"`
}

// Session is what one engine instance reports before ending.
type Session struct {
	Utterances []Utterance `yaml:"utterances"`
	// Error, when set, is reported after the utterances.
	Error string `yaml:"error"`
}

// Utterance is a run of interim hypotheses followed by an optional final.
type Utterance struct {
	Interim []string `yaml:"interim"`
	Final   string   `yaml:"final"`
}

func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script %q: %w", path, err)
	}
	script, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Script{}, fmt.Errorf("parse script %q: %w", path, err)
	}
	return script, nil
}

func Parse(r io.Reader) (Script, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var script Script
	if err := decoder.Decode(&script); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, errors.New("script is empty")
		}
		return Script{}, err
	}

	for i, session := range script.Sessions {
		for j, utterance := range session.Utterances {
			if len(utterance.Interim) == 0 && strings.TrimSpace(utterance.Final) == "" {
				return Script{}, fmt.Errorf("sessions[%d].utterances[%d]: needs interim or final text", i, j)
			}
		}
	}
	return script, nil
}

// Package cli parses sauti's command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandListen  Command = "listen"
	CommandToggle  Command = "toggle"
	CommandReset   Command = "reset"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandListen:  {},
	CommandToggle:  {},
	CommandReset:   {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed is the result of Parse. Engine and Language are empty unless given.
type Parsed struct {
	Command    Command
	ConfigPath string
	Engine     string
	Language   string
	ShowHelp   bool
}

// Owns reports whether the command may run the session in this process.
func (p Parsed) Owns() bool {
	return p.Command == CommandListen || p.Command == CommandToggle
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		name, value, inline := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			continue
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
			continue
		case "--config", "--engine", "--language":
			if !inline {
				i++
				if i >= len(args) {
					return Parsed{}, fmt.Errorf("%s requires a value", name)
				}
				value = args[i]
			}
			if strings.TrimSpace(value) == "" {
				return Parsed{}, fmt.Errorf("%s requires a value", name)
			}
			switch name {
			case "--config":
				parsed.ConfigPath = value
			case "--engine":
				parsed.Engine = value
			case "--language":
				parsed.Language = value
			}
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		}

		cmd := Command(arg)
		if _, ok := validCommands[cmd]; !ok {
			return Parsed{}, fmt.Errorf("unknown command: %s", arg)
		}
		parsed.Command = cmd
		parsed.ShowHelp = cmd == CommandHelp
		if i != len(args)-1 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
		}
	}

	if (parsed.Engine != "" || parsed.Language != "") && !parsed.Owns() && parsed.Command != CommandDoctor {
		return Parsed{}, errors.New("--engine and --language apply to listen, toggle and doctor")
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [flags] <command>

Commands:
  listen    Start continuous dictation and stay up until interrupted
  toggle    Start dictation, or stop it when already recording
  reset     Stop dictation and discard the pending session
  status    Print the running session's state
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH     Config file path (default: $XDG_CONFIG_HOME/sauti/config.yaml)
  --engine NAME     Recognition engine: deepgram or scripted
  --language TAG    Recognition language, e.g. sw-KE or en-US
  -h, --help        Show help
  --version         Show version
`, binaryName)
}

package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Command string

const (
	CommandListen  Command = "listen"
	CommandDictate Command = "dictate"
	CommandStop    Command = "stop"
	CommandStatus  Command = "status"
	CommandWake    Command = "wake"
	CommandTake    Command = "take"
	CommandParse   Command = "parse"
	CommandDict    Command = "dict"
	CommandServe   Command = "serve"
	CommandMonitor Command = "monitor"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// DictAction selects a dict subcommand.
type DictAction string

const (
	DictList   DictAction = "list"
	DictLearn  DictAction = "learn"
	DictForget DictAction = "forget"
	DictImport DictAction = "import"
)

var validCommands = map[Command]struct{}{
	CommandListen:  {},
	CommandDictate: {},
	CommandStop:    {},
	CommandStatus:  {},
	CommandWake:    {},
	CommandTake:    {},
	CommandParse:   {},
	CommandDict:    {},
	CommandServe:   {},
	CommandMonitor: {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Active opens the wake gate immediately (listen --active).
	Active bool
	// At is the parse reference time (parse --at); zero means now.
	At time.Time
	// Text is the parse input joined with single spaces.
	Text string
	// Dict carries the dict subcommand and its operands.
	Dict     DictAction
	Operands []string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandArgs(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

// parseCommandArgs validates what follows the command word.
func parseCommandArgs(parsed *Parsed, rest []string) error {
	switch parsed.Command {
	case CommandListen:
		for _, arg := range rest {
			if arg != "--active" {
				return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			parsed.Active = true
		}
		return nil
	case CommandParse:
		return parseParseArgs(parsed, rest)
	case CommandDict:
		return parseDictArgs(parsed, rest)
	default:
		if len(rest) > 0 {
			return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		return nil
	}
}

func parseParseArgs(parsed *Parsed, rest []string) error {
	words := make([]string, 0, len(rest))
	for i := 0; i < len(rest); i++ {
		if rest[i] == "--at" {
			i++
			if i >= len(rest) {
				return errors.New("--at requires an RFC 3339 time")
			}
			at, err := time.Parse(time.RFC3339, rest[i])
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			parsed.At = at
			continue
		}
		words = append(words, rest[i])
	}
	parsed.Text = strings.TrimSpace(strings.Join(words, " "))
	if parsed.Text == "" {
		return errors.New("parse requires text")
	}
	return nil
}

func parseDictArgs(parsed *Parsed, rest []string) error {
	if len(rest) == 0 {
		return errors.New("dict requires one of: list, learn, forget, import")
	}
	parsed.Dict = DictAction(rest[0])
	parsed.Operands = rest[1:]

	n := len(parsed.Operands)
	switch parsed.Dict {
	case DictList:
		if n != 0 {
			return errors.New("dict list takes no arguments")
		}
	case DictLearn:
		if n < 2 || n > 3 {
			return errors.New("dict learn requires <keyword> <replacement> [type]")
		}
	case DictForget:
		if n != 1 {
			return errors.New("dict forget requires <keyword>")
		}
	case DictImport:
		if n != 1 {
			return errors.New("dict import requires <file.yaml>")
		}
	default:
		return fmt.Errorf("unknown dict action: %s", rest[0])
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Voice:
  listen [--active]   Listen for the wake phrase and register spoken schedules
  dictate             Copy each utterance to the clipboard (and paste when enabled)
  wake                Open the wake gate of a running session
  take                Print and consume the pending command
  stop                Stop the running session
  status              Print current state

Schedules:
  parse [--at TIME] TEXT
                      Parse TEXT and print the schedule as JSON
  dict list           List learned terms
  dict learn KEYWORD REPLACEMENT [TYPE]
                      Learn a term (title, place, time, person, correction)
  dict forget KEYWORD Forget a term
  dict import FILE    Import terms from a YAML seed file

Service:
  serve               Run the HTTP API, gRPC health and IPC owner until interrupted
  monitor             Show a live view of the running session
  devices             List available input devices
  doctor              Run configuration and environment checks
  version             Print version information
  help                Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/dpt/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}

package config

import (
	"fmt"
	"strings"
	"unicode"
)

// NewCommand splits a shell-like command line into argv. Single quotes
// are literal, double quotes honor \" and \\, and a bare backslash escapes
// the next rune. A leading ~ in the program path expands to the home
// directory. Blank input and lines starting with # yield an empty command.
func NewCommand(raw string) (CommandConfig, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return CommandConfig{Raw: raw}, nil
	}

	argv, err := splitCommand(trimmed)
	if err != nil {
		return CommandConfig{}, err
	}
	if len(argv) > 0 {
		argv[0] = ExpandUser(argv[0])
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// MustCommand is NewCommand for built-in defaults.
func MustCommand(raw string) CommandConfig {
	cmd, err := NewCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

func (c CommandConfig) Empty() bool {
	return len(c.Argv) == 0
}

func (c CommandConfig) String() string {
	return strings.TrimSpace(c.Raw)
}

type argScanner struct {
	runes []rune
	pos   int
	args  []string
	word  strings.Builder
	open  bool
}

func splitCommand(line string) ([]string, error) {
	s := &argScanner{runes: []rune(line)}
	for s.pos < len(s.runes) {
		r := s.runes[s.pos]
		s.pos++

		switch {
		case unicode.IsSpace(r):
			s.endWord()
		case r == '\'':
			if err := s.quoted('\'', false); err != nil {
				return nil, fmt.Errorf("%w in command: %q", err, line)
			}
		case r == '"':
			if err := s.quoted('"', true); err != nil {
				return nil, fmt.Errorf("%w in command: %q", err, line)
			}
		case r == '\\':
			if s.pos >= len(s.runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", line)
			}
			s.add(s.runes[s.pos])
			s.pos++
		default:
			s.add(r)
		}
	}
	s.endWord()
	return s.args, nil
}

func (s *argScanner) add(r rune) {
	s.word.WriteRune(r)
	s.open = true
}

// quoted consumes up to the closing delimiter. An empty pair still counts
// as an argument.
func (s *argScanner) quoted(delim rune, escapes bool) error {
	s.open = true
	for s.pos < len(s.runes) {
		r := s.runes[s.pos]
		s.pos++
		switch {
		case r == delim:
			return nil
		case escapes && r == '\\' && s.pos < len(s.runes) && (s.runes[s.pos] == delim || s.runes[s.pos] == '\\'):
			s.word.WriteRune(s.runes[s.pos])
			s.pos++
		default:
			s.word.WriteRune(r)
		}
	}
	return fmt.Errorf("unterminated quote")
}

func (s *argScanner) endWord() {
	if !s.open {
		return
	}
	s.args = append(s.args, s.word.String())
	s.word.Reset()
	s.open = false
}

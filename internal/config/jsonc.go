package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// stripJSONC blanks comments and trailing commas with spaces. Every other
// byte keeps its offset, so decoder errors point at the user's own line
// and column.
func stripJSONC(src string) (string, error) {
	out := []byte(src)
	pendingComma := -1

	for i := 0; i < len(out); i++ {
		switch c := out[i]; {
		case c == '"':
			i = stringEnd(out, i)
			pendingComma = -1
		case c == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
				i++
			}
			i--
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				line, _ := lineCol(src, int64(i+1))
				return "", fmt.Errorf("line %d: unterminated block comment", line)
			}
			for stop := i + 2 + end + 2; i < stop; i++ {
				if !isSpace(out[i]) {
					out[i] = ' '
				}
			}
			i--
		case c == ',':
			pendingComma = i
		case c == '}' || c == ']':
			if pendingComma >= 0 {
				out[pendingComma] = ' '
			}
			pendingComma = -1
		case isSpace(c):
		default:
			pendingComma = -1
		}
	}
	return string(out), nil
}

// stringEnd returns the index of the quote closing the string opened at i.
func stringEnd(b []byte, i int) int {
	for j := i + 1; j < len(b); j++ {
		switch b[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(b) - 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// decodeStrict decodes exactly one JSON object into v, rejecting unknown
// keys and anything after the object.
func decodeStrict(src string, v any) error {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return positionError(src, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		line, col := lineCol(src, dec.InputOffset())
		return fmt.Errorf("line %d column %d: multiple JSON values are not allowed", line, col)
	}
	return nil
}

func positionError(src string, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		offset    int64
	)
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(src, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol converts a 1-based decoder offset to a 1-based line and column.
func lineCol(src string, offset int64) (int, int) {
	end := min(max(offset-1, 0), int64(len(src)))
	prefix := src[:end]
	return strings.Count(prefix, "\n") + 1, len(prefix) - strings.LastIndexByte(prefix, '\n')
}

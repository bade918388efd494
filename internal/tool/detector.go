// Package tool implements detection, dispatch and execution of tool
// calls embedded inline in model output.
package tool

import (
	"fmt"
	"strings"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// Marker opens an inline tool invocation in model output. The full
// wire form is:
//
//	[TOOL_CALL: name(key: "value", key: "value")]
//
// The marker may appear anywhere in the text, including mid-sentence,
// and may have been split across network chunks, which is why detection
// always runs on the fully accumulated text of a turn.
const Marker = "[TOOL_CALL:"

// Detect scans text for tool invocations. It returns the parsed calls
// in left-to-right order and the text with the wire syntax stripped.
// Text with no markers is returned unchanged with an empty call list.
// A marker that is present but unparsable yields a ProtocolError.
func Detect(text string) ([]model.ToolCall, string, error) {
	if !strings.Contains(text, Marker) {
		return nil, text, nil
	}

	var calls []model.ToolCall
	var segments []string

	rest := text
	for {
		idx := strings.Index(rest, Marker)
		if idx < 0 {
			segments = append(segments, rest)
			break
		}

		segments = append(segments, rest[:idx])
		call, consumed, err := parseCall(rest[idx:])
		if err != nil {
			return nil, text, &model.ProtocolError{Reason: err.Error()}
		}
		calls = append(calls, call)
		rest = rest[idx+consumed:]
	}

	return calls, splice(segments), nil
}

// parseCall parses one invocation starting at the marker. Returns the
// call and the number of bytes consumed including the closing bracket.
func parseCall(s string) (model.ToolCall, int, error) {
	pos := len(Marker)
	pos = skipSpaces(s, pos)

	start := pos
	for pos < len(s) && isNameChar(s[pos]) {
		pos++
	}
	name := s[start:pos]
	if name == "" {
		return model.ToolCall{}, 0, fmt.Errorf("tool call marker without a tool name")
	}

	pos = skipSpaces(s, pos)
	if pos >= len(s) || s[pos] != '(' {
		return model.ToolCall{}, 0, fmt.Errorf("tool call %q missing parameter list", name)
	}
	pos++

	params := make(map[string]string)
	pos = skipSpaces(s, pos)
	for pos < len(s) && s[pos] != ')' {
		key, next, err := parseKey(s, pos)
		if err != nil {
			return model.ToolCall{}, 0, fmt.Errorf("tool call %q: %v", name, err)
		}
		pos = skipSpaces(s, next)

		if pos >= len(s) || s[pos] != ':' {
			return model.ToolCall{}, 0, fmt.Errorf("tool call %q: parameter %q missing ':'", name, key)
		}
		pos = skipSpaces(s, pos+1)

		value, next, err := parseQuoted(s, pos)
		if err != nil {
			return model.ToolCall{}, 0, fmt.Errorf("tool call %q: parameter %q: %v", name, key, err)
		}
		params[key] = value
		pos = skipSpaces(s, next)

		if pos < len(s) && s[pos] == ',' {
			pos = skipSpaces(s, pos+1)
		}
	}

	if pos >= len(s) || s[pos] != ')' {
		return model.ToolCall{}, 0, fmt.Errorf("tool call %q: unterminated parameter list", name)
	}
	pos++
	pos = skipSpaces(s, pos)

	if pos >= len(s) || s[pos] != ']' {
		return model.ToolCall{}, 0, fmt.Errorf("tool call %q: missing closing ']'", name)
	}
	pos++

	return model.ToolCall{Name: name, Params: params}, pos, nil
}

func parseKey(s string, pos int) (string, int, error) {
	start := pos
	for pos < len(s) && isNameChar(s[pos]) {
		pos++
	}
	if pos == start {
		return "", 0, fmt.Errorf("expected parameter name at offset %d", pos)
	}
	return s[start:pos], pos, nil
}

// parseQuoted parses a double-quoted string value supporting \" and \\
// escapes.
func parseQuoted(s string, pos int) (string, int, error) {
	if pos >= len(s) || s[pos] != '"' {
		return "", 0, fmt.Errorf("value must be a quoted string")
	}
	pos++

	var b strings.Builder
	for pos < len(s) {
		switch s[pos] {
		case '\\':
			if pos+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated escape")
			}
			b.WriteByte(s[pos+1])
			pos += 2
		case '"':
			return b.String(), pos + 1, nil
		default:
			b.WriteByte(s[pos])
			pos++
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted value")
}

func skipSpaces(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n' || s[pos] == '\r') {
		pos++
	}
	return pos
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// splice joins the text segments left after stripping markers. Only
// whitespace touching a removed marker is normalized; everything else,
// including spacing inside the surrounding text, stays exactly as the
// model wrote it.
func splice(segments []string) string {
	out := segments[0]
	for _, seg := range segments[1:] {
		left := strings.TrimRight(out, " \t\r\n")
		right := strings.TrimLeft(seg, " \t\r\n")
		gap := out[len(left):] + seg[:len(seg)-len(right)]
		out = left + glue(gap, left, right) + right
	}
	return strings.TrimSpace(out)
}

// glue picks the separator for one splice point: a paragraph break if
// one surrounded the marker, else a line break, else a single space
// between words.
func glue(gap, left, right string) string {
	switch {
	case left == "" || right == "":
		return ""
	case strings.Contains(gap, "\n\n"):
		return "\n\n"
	case strings.Contains(gap, "\n"):
		return "\n"
	case gap != "":
		return " "
	default:
		return ""
	}
}

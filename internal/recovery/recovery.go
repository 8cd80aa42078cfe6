// Package recovery turns arbitrary reasoning-service output into a
// structured record. Upstream responses are token-limited and may be cut
// mid-structure, or may wrap valid JSON in commentary; the four repair
// stages run from least to most destructive so the most information
// survives. Recovery is purely syntactic — it never edits values, only
// structure.
package recovery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// errorPrefixLen bounds how much of the original text a terminal parse
// error carries for diagnostics.
const errorPrefixLen = 80

// ParseError is the terminal failure after all repair stages are
// exhausted. Callers must treat it as a hard failure of that agent's
// turn, not retry blindly.
type ParseError struct {
	OriginalLength int
	Prefix         string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recovery: no record recoverable from %d bytes (starts %q)", e.OriginalLength, e.Prefix)
}

func newParseError(raw string) *ParseError {
	prefix := raw
	if len(prefix) > errorPrefixLen {
		prefix = prefix[:errorPrefixLen]
	}
	return &ParseError{OriginalLength: len(raw), Prefix: prefix}
}

// Parse recovers one JSON object from raw text.
func Parse(raw string) (map[string]any, error) {
	_, record, err := recoverObject(raw)
	return record, err
}

// ParseAs recovers one JSON object from raw text and decodes it into T.
func ParseAs[T any](raw string) (T, error) {
	var out T
	text, _, err := recoverObject(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("recovery: decode recovered record: %w", err)
	}
	return out, nil
}

// recoverObject runs the staged repair pipeline. Each stage is attempted
// only when the prior one fails to yield a parseable object.
func recoverObject(raw string) (string, map[string]any, error) {
	// Stage 1: slice away fences and prose around the record.
	candidate, ok := extract(raw)
	if !ok {
		return "", nil, newParseError(raw)
	}
	if record, err := decodeObject(candidate); err == nil {
		return candidate, record, nil
	}

	// Stage 2: re-escape raw control characters inside strings and close
	// a string left open at the end of input.
	repaired := repairStrings(candidate)
	if record, err := decodeObject(repaired); err == nil {
		return repaired, record, nil
	}

	// Stage 3: drop trailing garbage after the last point where nesting
	// returned to zero.
	if truncated, ok := truncateBalanced(repaired); ok {
		if record, err := decodeObject(truncated); err == nil {
			return truncated, record, nil
		}
	}

	// Stage 4: close whatever is still open. Runs on the repaired text,
	// not the truncation — balanced text has nothing left to close.
	if completed, ok := completeBraces(repaired); ok {
		if record, err := decodeObject(completed); err == nil {
			return completed, record, nil
		}
	}

	return "", nil, newParseError(raw)
}

func decodeObject(text string) (map[string]any, error) {
	var record map[string]any
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, err
	}
	return record, nil
}

// extract slices from the first '{' to the last '}'. When no closing
// brace follows the opener (a response cut mid-record), the slice runs to
// the end of input so later stages can repair it.
func extract(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}
	end := strings.LastIndexByte(raw, '}')
	if end > start {
		return raw[start : end+1], true
	}
	return raw[start:], true
}

// repairStrings rescans tracking string/escape state: raw newlines,
// carriage returns, and tabs inside a string are re-escaped, and a string
// still open at end of input is closed.
func repairStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				b.WriteByte(ch)
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				b.WriteByte(ch)
				escaped = true
			case '"':
				b.WriteByte(ch)
				inString = false
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(ch)
			}
			continue
		}
		b.WriteByte(ch)
		if ch == '"' {
			inString = true
		}
	}
	if inString {
		if escaped {
			// A dangling backslash would swallow the closing quote;
			// finish the escape as a literal quote first.
			b.WriteByte('"')
		}
		b.WriteByte('"')
	}
	return b.String()
}

// truncateBalanced rescans tracking {}/[] nesting outside strings and
// cuts the text at the last offset where depth returned to zero,
// discarding trailing garbage.
func truncateBalanced(s string) (string, bool) {
	depth := 0
	inString, escaped := false, false
	lastZero := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				lastZero = i + 1
			}
		}
	}
	if lastZero == 0 || lastZero == len(s) {
		return "", false
	}
	return s[:lastZero], true
}

// completeBraces appends the closers for every {/[ still open outside a
// string, innermost first.
func completeBraces(s string) (string, bool) {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(s) + len(stack))
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

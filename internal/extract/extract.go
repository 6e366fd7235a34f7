// Package extract recovers a JSON object from free-form model output.
//
// Generative models routinely wrap JSON in prose or markdown fences, quote
// keys inconsistently, leave trailing commas, embed raw newlines inside
// string values, and truncate mid-object. The repair pipeline here is an
// ordered list of independent passes, each a pure string transform, so each
// defect class stays testable on its own.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedResponseError means the text could not be repaired into valid
// JSON. Snippet carries roughly 100 characters around the parser's reported
// offset for diagnostics.
type MalformedResponseError struct {
	Offset  int64
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response at offset %d: %v", e.Offset, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// RepairPass is one step of the pipeline: a pure string transform with a
// documented pre/post-condition.
type RepairPass func(string) string

// Pipeline is the canonical repair order. Fence stripping and brace slicing
// run first because every later pass assumes the payload is the JSON
// candidate, not surrounding prose.
var Pipeline = []RepairPass{
	StripCodeFence,
	SliceToBraces,
	StripControlChars,
	NormalizeNewlines,
	CollapseNewlinesInStrings,
	QuoteSingleQuotedKeys,
	QuoteBareKeys,
	CollapseDoubledQuotes,
	StripTrailingCommas,
}

// Object extracts and parses the JSON object embedded in raw model output.
// On a parse failure of a string that does not end with '}', it closes
// unbalanced brackets and braces once and reparses before giving up.
func Object(raw string) (map[string]any, error) {
	text := Repair(raw)

	obj, err := parse(text)
	if err == nil {
		return obj, nil
	}

	if !strings.HasSuffix(strings.TrimSpace(text), "}") {
		closed := CloseUnbalanced(text)
		if closed != text {
			if obj, retryErr := parse(closed); retryErr == nil {
				return obj, nil
			}
		}
	}

	return nil, malformed(text, err)
}

// Repair runs the full pass pipeline without parsing.
func Repair(raw string) string {
	text := raw
	for _, pass := range Pipeline {
		text = pass(text)
	}
	return strings.TrimSpace(text)
}

func parse(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func malformed(text string, err error) error {
	var offset int64
	if syn, ok := err.(*json.SyntaxError); ok {
		offset = syn.Offset
	}
	start := offset - 50
	if start < 0 {
		start = 0
	}
	end := offset + 50
	if end > int64(len(text)) {
		end = int64(len(text))
	}
	return &MalformedResponseError{
		Offset:  offset,
		Snippet: text[start:end],
		Err:     err,
	}
}

// StripCodeFence removes a markdown code fence wrapper. If a ```json or
// bare ``` pair is present, the result is the content between the first
// such pair; otherwise the input is returned unchanged.
func StripCodeFence(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	inner := s[start+3:]
	// The fence may carry a language tag on the opening line.
	if strings.HasPrefix(inner, "json") {
		inner = inner[4:]
	}
	if end := strings.Index(inner, "```"); end != -1 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// SliceToBraces discards leading and trailing prose by slicing from the
// first '{' to the last '}'. Text with no closing brace keeps everything
// from the first '{' so truncated generations stay repairable.
func SliceToBraces(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	first := strings.Index(trimmed, "{")
	if first == -1 {
		return trimmed
	}
	last := strings.LastIndex(trimmed, "}")
	if last > first {
		return trimmed[first : last+1]
	}
	return trimmed[first:]
}

// StripControlChars removes non-printable bytes below 0x20 except newline,
// carriage return, and tab, which later passes handle.
func StripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeNewlines maps every line-ending variant to "\n".
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// CollapseNewlinesInStrings replaces raw newlines inside string literals
// with a single space. Models emit these when a long narrative field wraps;
// raw control characters are invalid inside JSON strings.
func CollapseNewlinesInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	pendingSpace := false
	for _, r := range s {
		if inString && r == '\n' {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		}
	}
	return b.String()
}

// QuoteSingleQuotedKeys rewrites 'key': as "key":.
func QuoteSingleQuotedKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		if runes[i] == '\'' && atKeyPosition(runes, i) {
			if end, ok := findSingleQuoteEnd(runes, i); ok && followedByColon(runes, end) {
				b.WriteByte('"')
				b.WriteString(string(runes[i+1 : end]))
				b.WriteByte('"')
				i = end + 1
				continue
			}
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String()
}

// QuoteBareKeys rewrites unquoted bareword keys ({name: or ,name:) to
// double-quoted form. Values are left alone: true, false, null, and
// numbers stay bare.
func QuoteBareKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if isBareKeyStart(r) && atKeyPosition(runes, i) {
			j := i
			for j < len(runes) && isBareKeyRune(runes[j]) {
				j++
			}
			if followedByColon(runes, j-1) {
				b.WriteByte('"')
				b.WriteString(string(runes[i:j]))
				b.WriteByte('"')
				i = j
				continue
			}
		}
		if r == '"' {
			// Skip over string literals wholesale so their content is
			// never mistaken for a key.
			j := i + 1
			for j < len(runes) {
				if runes[j] == '\\' {
					j += 2
					continue
				}
				if runes[j] == '"' {
					break
				}
				j++
			}
			if j >= len(runes) {
				j = len(runes) - 1
			}
			b.WriteString(string(runes[i : j+1]))
			i = j + 1
			continue
		}
		b.WriteRune(r)
		i++
	}
	return b.String()
}

// CollapseDoubledQuotes reduces an accidental "" at a string boundary to a
// single quote, e.g. {"name": ""Nasi Goreng""}. A legitimate empty string
// value ("" followed by a delimiter) is preserved.
func CollapseDoubledQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '"' && i+1 < len(runes) && runes[i+1] == '"' {
			prev := prevNonSpace(runes, i)
			next := rune(0)
			if i+2 < len(runes) {
				next = runes[i+2]
			}
			opening := prev == ':' || prev == ',' || prev == '[' || prev == '{' || prev == 0
			closing := next == ':' || next == ',' || next == ']' || next == '}' || next == '\n' || next == 0
			if opening && closing {
				// Genuine empty string.
				b.WriteString(`""`)
				i++
				continue
			}
			b.WriteByte('"')
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// StripTrailingCommas removes a comma that directly precedes a closing
// brace or bracket (ignoring whitespace).
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == ',' {
			j := i + 1
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// CloseUnbalanced appends exactly the missing closing brackets then braces
// for a truncated object. Bracket and brace counts ignore characters inside
// string literals. Brackets close before braces, mirroring nesting order.
func CloseUnbalanced(s string) string {
	braces, brackets := 0, 0
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{':
			braces++
		case r == '}':
			braces--
		case r == '[':
			brackets++
		case r == ']':
			brackets--
		}
	}
	if inString {
		s += `"`
	}
	for ; brackets > 0; brackets-- {
		s += "]"
	}
	for ; braces > 0; braces-- {
		s += "}"
	}
	return s
}

// atKeyPosition reports whether index i sits where an object key may begin:
// after '{', ',', or the start of input (ignoring whitespace).
func atKeyPosition(runes []rune, i int) bool {
	prev := prevNonSpace(runes, i)
	return prev == '{' || prev == ',' || prev == 0
}

func prevNonSpace(runes []rune, i int) rune {
	for j := i - 1; j >= 0; j-- {
		if !isSpace(runes[j]) {
			return runes[j]
		}
	}
	return 0
}

func followedByColon(runes []rune, end int) bool {
	for j := end + 1; j < len(runes); j++ {
		if isSpace(runes[j]) {
			continue
		}
		return runes[j] == ':'
	}
	return false
}

func findSingleQuoteEnd(runes []rune, start int) (int, bool) {
	for j := start + 1; j < len(runes); j++ {
		if runes[j] == '\'' {
			return j, true
		}
		if runes[j] == '\n' {
			break
		}
	}
	return 0, false
}

func isBareKeyStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isBareKeyRune(r rune) bool {
	return isBareKeyStart(r) || (r >= '0' && r <= '9')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

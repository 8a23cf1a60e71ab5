package repair

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	codeFenceRegex     = regexp.MustCompile("```(?:json|JSON)?")
	controlCharRegex   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	whitespaceRunRegex = regexp.MustCompile(`\s+`)
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
)

// flattenReplacer turns escape sequences and real line breaks into single
// spaces. Multi-line string values lose their line structure.
var flattenReplacer = strings.NewReplacer(
	`\n`, " ",
	`\t`, " ",
	"\n", " ",
	"\t", " ",
	"\r", " ",
)

// stripFences removes markdown code fences wherever they occur.
func stripFences(s string) string {
	return strings.TrimSpace(codeFenceRegex.ReplaceAllString(s, ""))
}

// sanitize applies the fixed sequence of textual repairs used by every rung
// after the direct parse. The order matters: control characters inside
// string literals are escaped before whitespace is collapsed.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `\\"`, `\"`)
	s = escapeStringControls(s)
	s = controlCharRegex.ReplaceAllString(s, "")
	s = whitespaceRunRegex.ReplaceAllString(s, " ")
	s = trailingCommaRegex.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// escapeStringControls escapes raw newlines, carriage returns and tabs that
// appear inside JSON string literals. Characters outside strings are kept.
func escapeStringControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// matchBraces returns the index of the '}' closing the '{' at start, counting
// every brace regardless of quoting. It returns -1 if the object never closes.
func matchBraces(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchBracesQuoted is matchBraces with quote and escape tracking, so braces
// inside string literals are ignored.
func matchBracesQuoted(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

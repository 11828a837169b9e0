package ics

import (
	"strings"
	"unicode/utf8"
)

// The WithNewLine constants select the newline style used when serializing
// calendars. RFC 5545 section 3.1 requires CRLF, some consumers on Unix
// systems are happy with LF.
const (
	WithNewLineUnix    WithNewLine = "\n"
	WithNewLineWindows WithNewLine = "\r\n"

	// NewLine is the default and the only style RFC 5545 allows.
	NewLine = WithNewLineWindows
)

// DefaultLineLength is the folding boundary in octets, excluding the line
// break, from RFC 5545 section 3.1.
const DefaultLineLength = 75

// utf8Boundary returns the largest n <= max that does not split a multi-byte
// sequence in s. The caller guarantees len(s) > max.
func utf8Boundary(s string, max int) int {
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		// max is smaller than the first rune, emit the rune whole.
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return n
}

// FoldLine wraps a single unfolded content line so that no physical line is
// longer than maxOctets octets. Continuation lines start with a single space,
// which counts toward their length.
func FoldLine(line string, maxOctets int) string {
	return foldLineWith(line, maxOctets, string(NewLine))
}

func foldLineWith(line string, maxOctets int, newLine string) string {
	if maxOctets < 2 {
		maxOctets = DefaultLineLength
	}
	if len(line) <= maxOctets {
		return line
	}
	b := &strings.Builder{}
	b.Grow(len(line) + len(line)/maxOctets*(len(newLine)+1))
	limit := maxOctets
	for len(line) > limit {
		cut := utf8Boundary(line, limit)
		b.WriteString(line[:cut])
		b.WriteString(newLine)
		b.WriteByte(' ')
		line = line[cut:]
		limit = maxOctets - 1
	}
	b.WriteString(line)
	return b.String()
}

var lineUnfolder = strings.NewReplacer(
	"\r\n ", "",
	"\r\n\t", "",
)

// UnfoldLines removes every CRLF that is immediately followed by a space or a
// horizontal tab, together with that whitespace character.
func UnfoldLines(text string) string {
	return lineUnfolder.Replace(text)
}

// NormalizeLineEndings turns every bare CR and bare LF into CRLF.
func NormalizeLineEndings(text string) string {
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	b := &strings.Builder{}
	b.Grow(len(text) + 16)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			b.WriteString("\r\n")
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		case '\n':
			b.WriteString("\r\n")
		default:
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
	`;`, `\;`,
	`,`, `\,`,
)

// ToText escapes a TEXT value for output.
func ToText(s string) string {
	return textEscaper.Replace(s)
}

// textUnescaper is lenient: unknown escapes and a trailing lone backslash are
// kept as they are, so ToText(FromText(s)) only equals s for well formed input.
var textUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\N`, "\n",
	`\;`, `;`,
	`\,`, `,`,
	`\:`, `:`,
)

// FromText reverses ToText.
func FromText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return textUnescaper.Replace(s)
}

// splitEscaped splits a list value on sep, ignoring separators that are
// escaped with a backslash. The parts keep their escapes.
func splitEscaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

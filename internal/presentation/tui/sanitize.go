package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxOutputSize caps how much of one output is printed.
	DefaultMaxOutputSize = 64 << 10
	// EnvMaxOutputSize overrides the cap.
	EnvMaxOutputSize = "MNB_MAX_OUTPUT_SIZE"
)

// Sanitize prepares text coming from a handler or language server for the terminal:
// invalid UTF-8 is replaced, control characters other than newline, tab and
// carriage return are stripped, and oversized text is truncated.
func Sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}

	if limit := maxOutputSize(); len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + fmt.Sprintf("\n... (%d bytes truncated)", len(s)-cut)
	}

	clean := true
	for _, r := range s {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxOutputSize() int {
	if val := os.Getenv(EnvMaxOutputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxOutputSize
}

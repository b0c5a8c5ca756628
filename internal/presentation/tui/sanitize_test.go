package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed\r", "Line1\nLine2\tTabbed\r"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
		{"Invalid UTF-8", "a\xffb", "a�b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	t.Setenv(EnvMaxOutputSize, "10")

	assert.Equal(t, "1234567890", Sanitize("1234567890"))
	assert.Equal(t, "1234567890\n... (2 bytes truncated)", Sanitize("123456789012"))

	// never splits a multi-byte rune
	got := Sanitize("123456789é")
	assert.True(t, strings.HasPrefix(got, "123456789\n"), got)
}

func TestSanitize_IgnoresBadOverride(t *testing.T) {
	t.Setenv(EnvMaxOutputSize, "zero")
	long := strings.Repeat("a", 100)
	assert.Equal(t, long, Sanitize(long))
}

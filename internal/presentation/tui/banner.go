package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the mnb banner with the running version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"  _ __ ___  _ __ | |__  ", "#818cf8"},
		{" | '_ ` _ \\| '_ \\| '_ \\ ", "#a78bfa"},
		{" | | | | | | | | | |_) |", "#c084fc"},
		{" |_| |_| |_|_| |_|_.__/ ", "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  MIDAS NoteBook "+version).Faint())
	fmt.Fprintln(w)
}

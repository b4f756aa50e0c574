package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the strata banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"      _             _        ", "#34d399"},
		{"  ___| |_ _ __ __ _| |_ __ _ ", "#2dd4bf"},
		{" / __| __| '__/ _` | __/ _` |", "#22d3ee"},
		{" \\__ \\ |_| | | (_| | || (_| |", "#38bdf8"},
		{" |___/\\__|_|  \\__,_|\\__\\__,_|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

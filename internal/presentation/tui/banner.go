package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                 _ _ _            `, "#f87171"},
	{`  _ __ ___  __| | (_)_ __   ___ `, "#fb7185"},
	{` | '__/ _ \/ _' | | | '_ \ / _ \`, "#f472b6"},
	{` | | |  __/ (_| | | | | | |  __/`, "#e879f9"},
	{` |_|  \___|\__,_|_|_|_| |_|\___|`, "#c084fc"},
}

// PrintBanner writes the redline banner, coloured when the terminal supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/mattn/go-runewidth"
)

// titleWidth is the column width of track titles in listings
const titleWidth = 50

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for wide characters.
// If width <= 0, returns text unchanged. Text longer than width is
// truncated with a "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)
	if currentWidth == width {
		return text
	}
	if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	const ellipsis = "..."
	if width <= len(ellipsis) {
		return ellipsis[:width]
	}

	result := runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	// A wide rune at the cut point can leave one column short
	if w := runewidth.StringWidth(result); w < width {
		result += strings.Repeat(" ", width-w)
	}
	return result
}

// printTracks writes one numbered line per track
func printTracks(w io.Writer, tracks []music.Track) {
	digits := len(fmt.Sprint(len(tracks) - 1))
	for i, t := range tracks {
		fmt.Fprintf(w, "%*d  %s  %s\n", digits, i, padToWidth(t.Title, titleWidth), t.ID)
	}
}

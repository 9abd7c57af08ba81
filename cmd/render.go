package cmd

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"orbit/canvas"
	"orbit/core"
)

var markerGlyphs = map[core.Kind]byte{
	core.KindNote:     'n',
	core.KindTask:     't',
	core.KindImage:    'i',
	core.KindAudio:    'a',
	core.KindScribble: 's',
}

// renderMinimap draws frame as a cols x rows character grid. Cells whose
// center lies in the viewport are dotted; markers are drawn on top.
func renderMinimap(w io.Writer, f canvas.MinimapFrame, cols, rows int) {
	if cols < 1 || rows < 1 || f.Width <= 0 || f.Height <= 0 {
		return
	}
	cellW, cellH := f.Width/float64(cols), f.Height/float64(rows)

	grid := make([][]byte, rows)
	for r := range grid {
		grid[r] = bytes.Repeat([]byte{' '}, cols)
		cy := (float64(r) + 0.5) * cellH
		for c := range grid[r] {
			cx := (float64(c) + 0.5) * cellW
			if f.Viewport.Contains(canvas.Point{X: cx, Y: cy}) {
				grid[r][c] = '.'
			}
		}
	}

	for _, m := range f.Markers {
		if !m.Visible {
			continue
		}
		c, r := int(math.Floor(m.X/cellW)), int(math.Floor(m.Y/cellH))
		if c < 0 || c >= cols || r < 0 || r >= rows {
			continue
		}
		glyph, ok := markerGlyphs[m.Kind]
		if !ok {
			glyph = '?'
		}
		grid[r][c] = glyph
	}

	border := "+" + string(bytes.Repeat([]byte{'-'}, cols)) + "+"
	fmt.Fprintln(w, border)
	for _, line := range grid {
		fmt.Fprintf(w, "|%s|\n", line)
	}
	fmt.Fprintln(w, border)
}

func printItems(w io.Writer, items []core.Item) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tX\tY\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", it.ID, it.Kind, it.X, it.Y, it.Fields.String("title"))
	}
	return tw.Flush()
}

func printTasks(w io.Writer, tasks []core.Item) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "Nothing due.")
		return
	}
	fmt.Fprintln(w, "Up next:")
	for _, it := range tasks {
		title := it.Fields.String("title")
		if title == "" {
			title = "(untitled task)"
		}
		due := it.Fields.String("due_date")
		if t := it.Fields.String("due_time"); t != "" {
			due += " " + t
		}
		if due != "" {
			fmt.Fprintf(w, "  - %s (due %s)\n", title, due)
		} else {
			fmt.Fprintf(w, "  - %s\n", title)
		}
	}
}

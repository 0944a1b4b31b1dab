// Package render draws grids for terminals.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"firemaze.ai/internal/sim/grid"
)

// Two-column glyphs keep cells roughly square in a monospace font.
const (
	GlyphEmpty    = "░░"
	GlyphVisited  = "▓▓"
	GlyphObstacle = "██"
	GlyphFire     = "^^"
	GlyphAgent    = "@@"
	GlyphPath     = "··"
)

var (
	colorFire     = lipgloss.Color("#E74C3C")
	colorAgent    = lipgloss.Color("#2CD7C7")
	colorPath     = lipgloss.Color("#F4D03F")
	colorObstacle = lipgloss.Color("#2C4A54")
	colorVisited  = lipgloss.Color("#16858E")
)

var styles = struct {
	Empty, Visited, Obstacle, Fire, Agent, Path lipgloss.Style
	Board, Caption                              lipgloss.Style
}{
	Empty:    lipgloss.NewStyle().Faint(true),
	Visited:  lipgloss.NewStyle().Foreground(colorVisited),
	Obstacle: lipgloss.NewStyle().Foreground(colorObstacle),
	Fire:     lipgloss.NewStyle().Foreground(colorFire).Bold(true),
	Agent:    lipgloss.NewStyle().Foreground(colorAgent).Bold(true),
	Path:     lipgloss.NewStyle().Foreground(colorPath),
	Board: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorVisited).
		Padding(0, 1),
	Caption: lipgloss.NewStyle().Bold(true).Foreground(colorAgent),
}

// Overlay adds transient marks on top of the cell states.
type Overlay struct {
	Path  []grid.Pos
	Agent *grid.Pos
}

// Options controls Frame output.
type Options struct {
	Color   bool
	Caption string
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ASCII renders g one row per line with no trailing newline. The agent glyph
// wins over the path glyph, and a burning cell always shows as fire.
func ASCII(g *grid.Grid, ov Overlay) string {
	return draw(g, ov, func(glyph string, _ lipgloss.Style) string { return glyph })
}

// Frame renders g, optionally styled and boxed with a caption line.
func Frame(g *grid.Grid, ov Overlay, opts Options) string {
	if !opts.Color {
		body := ASCII(g, ov)
		if opts.Caption == "" {
			return body
		}
		return opts.Caption + "\n" + body
	}
	body := draw(g, ov, func(glyph string, st lipgloss.Style) string { return st.Render(glyph) })
	board := styles.Board.Render(body)
	if opts.Caption == "" {
		return board
	}
	return lipgloss.JoinVertical(lipgloss.Left, styles.Caption.Render(opts.Caption), board)
}

func draw(g *grid.Grid, ov Overlay, paint func(string, lipgloss.Style) string) string {
	n := g.Dim()
	onPath := make(map[grid.Pos]bool, len(ov.Path))
	for _, p := range ov.Path {
		onPath[p] = true
	}
	var b strings.Builder
	b.Grow(n * (n*len(GlyphEmpty) + 1))
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c := 0; c < n; c++ {
			p := grid.Pos{Row: r, Col: c}
			glyph, st := cellGlyph(g.At(p))
			switch {
			case glyph == GlyphFire:
			case ov.Agent != nil && *ov.Agent == p:
				glyph, st = GlyphAgent, styles.Agent
			case onPath[p] && glyph != GlyphObstacle:
				glyph, st = GlyphPath, styles.Path
			}
			b.WriteString(paint(glyph, st))
		}
	}
	return b.String()
}

func cellGlyph(s grid.CellState) (string, lipgloss.Style) {
	switch s {
	case grid.Visited:
		return GlyphVisited, styles.Visited
	case grid.Obstacle:
		return GlyphObstacle, styles.Obstacle
	case grid.OnFire:
		return GlyphFire, styles.Fire
	default:
		return GlyphEmpty, styles.Empty
	}
}

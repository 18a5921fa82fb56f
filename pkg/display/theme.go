package display

import "github.com/charmbracelet/lipgloss"

// Glyphs are the symbols printed in front of lines.
type Glyphs struct {
	Bullet, Arrow      string
	Game, Lock, Script string
}

// Theme styles text by its role rather than by color.
// Immutable
type Theme struct {
	Sym Glyphs

	emph, name, note, ok, bad lipgloss.Style
	branch, last              string
}

// DefaultTheme is used on terminals.
func DefaultTheme() *Theme {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return &Theme{
		Sym:    Glyphs{Bullet: "•", Arrow: "→", Game: "🎮", Lock: "🔒", Script: "📜"},
		emph:   lipgloss.NewStyle().Bold(true),
		name:   fg("6"),
		note:   lipgloss.NewStyle().Faint(true),
		ok:     fg("2"),
		bad:    fg("1"),
		branch: "├──",
		last:   "└──",
	}
}

// PlainTheme keeps the glyphs and drops all styling.
func PlainTheme() *Theme {
	t := DefaultTheme()
	none := lipgloss.NewStyle()
	t.emph, t.name, t.note, t.ok, t.bad = none, none, none, none, none
	return t
}

// Emph renders headings and verbs.
func (t *Theme) Emph(s string) string { return t.emph.Render(s) }

// Name renders game names and stages.
func (t *Theme) Name(s string) string { return t.name.Render(s) }

// Note renders secondary detail.
func (t *Theme) Note(s string) string { return t.note.Render(s) }

func (t *Theme) OK(s string) string  { return t.ok.Render(s) }
func (t *Theme) Bad(s string) string { return t.bad.Render(s) }

// Branch is the tree connector for item i of n.
func (t *Theme) Branch(i, n int) string {
	if i == n-1 {
		return t.last
	}
	return t.branch
}

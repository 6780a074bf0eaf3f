package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	box   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// RunStatus renders a group outcome in its colour.
func (p *Palette) RunStatus(status models.RunStatus) string {
	switch status {
	case models.RunSynced:
		return p.ok.Render(string(status))
	case models.RunPartial:
		return p.warn.Render(string(status))
	case models.RunFailed:
		return p.err.Render(string(status))
	case "":
		return p.help.Render("pending")
	default:
		return p.help.Render(string(status))
	}
}

// TargetStatus renders a mirror outcome in its colour.
func (p *Palette) TargetStatus(status tasks.TargetStatus) string {
	switch status {
	case tasks.TargetReplaced:
		return p.ok.Render("✓ " + string(status))
	case tasks.TargetFailed:
		return p.err.Render("✗ " + string(status))
	default:
		return p.help.Render("- " + string(status))
	}
}

// Ready renders a connector readiness marker.
func (p *Palette) Ready(ready bool) string {
	if ready {
		return p.ok.Render("●")
	}
	return p.err.Render("○")
}

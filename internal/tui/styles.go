package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/samcharles93/nextword/internal/predict"
)

const (
	Blue   = lipgloss.Color("#0072C6")
	Yellow = lipgloss.Color("#F5C400")
	Red    = lipgloss.Color("#D93025")
	Grey   = lipgloss.Color("#777777")
)

// Styles holds every style the terminal front ends use.
type Styles struct {
	Title        lipgloss.Style
	Subtitle     lipgloss.Style
	Label        lipgloss.Style
	Prompt       lipgloss.Style
	Continuation lipgloss.Style
	Warning      lipgloss.Style
	Error        lipgloss.Style
	Muted        lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(Blue).
			Bold(true),
		Subtitle: lipgloss.NewStyle().
			Foreground(Grey).
			Italic(true),
		Label: lipgloss.NewStyle().
			Bold(true),
		Prompt: lipgloss.NewStyle(),
		Continuation: lipgloss.NewStyle().
			Foreground(Blue).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(Yellow),
		Error: lipgloss.NewStyle().
			Foreground(Red).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(Grey),
	}
}

// Completion renders "#rank: prompt continuation" with the continuation highlighted.
func (s Styles) Completion(c predict.Completion) string {
	return fmt.Sprintf("#%d: %s %s", c.Rank, s.Prompt.Render(c.Prompt), s.Continuation.Render(c.Continuation()))
}

// Prediction renders every completion of p, one per line.
func (s Styles) Prediction(p *predict.Prediction) string {
	lines := make([]string, 0, len(p.Completions))
	for _, c := range p.Completions {
		lines = append(lines, s.Completion(c))
	}
	return strings.Join(lines, "\n")
}

// Package tui is the interactive terminal version of the prediction form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samcharles93/nextword/internal/predict"
)

// PredictFunc runs one prediction.
type PredictFunc func(ctx context.Context, req predict.Request) (*predict.Prediction, error)

type resultMsg struct {
	seq  int
	pred *predict.Prediction
	err  error
}

// Model is the bubbletea model of the form.
type Model struct {
	ctx       context.Context
	predictFn PredictFunc
	input     textinput.Model
	words     int
	topN      int

	seq     int
	busy    bool
	pred    *predict.Prediction
	warning string
	errText string

	styles Styles
}

func New(ctx context.Context, fn PredictFunc) Model {
	ti := textinput.New()
	ti.Placeholder = "e.g. He could have"
	ti.CharLimit = 500
	ti.Width = 60
	ti.Focus()

	return Model{
		ctx:       ctx,
		predictFn: fn,
		input:     ti,
		words:     predict.DefaultWords,
		topN:      predict.DefaultTopN,
		styles:    DefaultStyles(),
	}
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, fn PredictFunc) error {
	_, err := tea.NewProgram(New(ctx, fn), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "up":
			if m.words < predict.MaxWords {
				m.words++
				return m.resubmit()
			}
			return m, nil
		case "down":
			if m.words > predict.MinWords {
				m.words--
				return m.resubmit()
			}
			return m, nil
		}
	case resultMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.busy = false
		m.pred, m.warning, m.errText = nil, "", ""
		switch {
		case errors.Is(msg.err, predict.ErrUnrecognizedInput):
			m.warning = predict.UnknownWordsWarning
		case msg.err != nil:
			m.errText = msg.err.Error()
		default:
			m.pred = msg.pred
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resubmit refreshes the results after the word count changed, but only
// when there is something on screen to refresh.
func (m Model) resubmit() (tea.Model, tea.Cmd) {
	if m.pred == nil && m.warning == "" {
		return m, nil
	}
	return m.submit()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	m.seq++
	if strings.TrimSpace(text) == "" {
		m.busy = false
		m.pred, m.warning, m.errText = nil, "", ""
		return m, nil
	}
	m.busy = true
	seq, ctx, fn := m.seq, m.ctx, m.predictFn
	req := predict.Request{Text: text, Words: m.words, TopN: m.topN}
	return m, func() tea.Msg {
		pred, err := fn(ctx, req)
		return resultMsg{seq: seq, pred: pred, err: err}
	}
}

func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render("Next Word Predictor"))
	b.WriteString("\n")
	b.WriteString(s.Subtitle.Render("LSTM based next word generator"))
	b.WriteString("\n\n")
	b.WriteString(s.Label.Render("Enter your text:"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %d\n\n", s.Label.Render("How many words to predict?"), m.words)

	switch {
	case m.busy:
		b.WriteString(s.Muted.Render("predicting..."))
		b.WriteString("\n")
	case m.warning != "":
		b.WriteString(s.Warning.Render(m.warning))
		b.WriteString("\n")
	case m.errText != "":
		b.WriteString(s.Error.Render("error: " + m.errText))
		b.WriteString("\n")
	case m.pred != nil:
		b.WriteString(s.Label.Render(fmt.Sprintf("Top %d Predictions", len(m.pred.Completions))))
		b.WriteString("\n")
		b.WriteString(s.Prediction(m.pred))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(s.Muted.Render("enter predict • up/down words • esc quit"))
	b.WriteString("\n")
	return b.String()
}

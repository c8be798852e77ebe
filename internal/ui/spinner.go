package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is returned when the user presses ctrl+c during a task.
var ErrInterrupted = errors.New("interrupted")

// SpinnerStyle colors the spinner glyph
var SpinnerStyle = lipgloss.NewStyle().Foreground(PrimaryColor)

type taskDoneMsg[T any] struct {
	value T
	err   error
}

// taskModel shows a spinner beside a label until its task finishes.
type taskModel[T any] struct {
	label   string
	spinner spinner.Model
	run     tea.Cmd
	cancel  context.CancelFunc

	done  bool
	value T
	err   error
}

func newTaskModel[T any](ctx context.Context, label string, fn func(context.Context) (T, error)) (taskModel[T], context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return taskModel[T]{
		label:   label,
		spinner: s,
		cancel:  cancel,
		run: func() tea.Msg {
			v, err := fn(ctx)
			return taskDoneMsg[T]{value: v, err: err}
		},
	}, cancel
}

// Init implements tea.Model
func (m taskModel[T]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

// Update implements tea.Model
func (m taskModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.done = true
			m.err = ErrInterrupted
			return m, tea.Quit
		}

	case taskDoneMsg[T]:
		m.done = true
		m.value = msg.value
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m taskModel[T]) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("  %s %s\n", m.spinner.View(), SpinnerLabelStyle.Render(m.label))
}

// RunWithSpinner runs fn while a spinner and label are shown on out. When out
// is not a terminal the label is printed once and fn runs without animation.
func RunWithSpinner[T any](ctx context.Context, out io.Writer, label string, fn func(context.Context) (T, error)) (T, error) {
	if f, ok := out.(*os.File); !ok || !IsTerminal(f) {
		_, _ = fmt.Fprintf(out, "  %s\n", label)
		return fn(ctx)
	}

	model, cancel := newTaskModel(ctx, label, fn)
	defer cancel()

	final, err := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx)).Run()
	if err != nil {
		var zero T
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, err
	}
	m := final.(taskModel[T])
	return m.value, m.err
}

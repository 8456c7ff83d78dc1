package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"codeguru/internal/generate"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// waitModel shows a spinner until a generation future resolves.
type waitModel struct {
	spinner  spinner.Model
	label    string
	future   *generate.Future
	text     string
	err      error
	done     bool
	canceled bool
}

// resultMsg is sent when the future resolves.
type resultMsg struct {
	text string
	err  error
}

func newWaitModel(label string, f *generate.Future) waitModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return waitModel{spinner: sp, label: label, future: f}
}

func awaitFuture(f *generate.Future) tea.Cmd {
	return func() tea.Msg {
		<-f.Done()
		text, err := f.Wait(context.Background())
		return resultMsg{text: text, err: err}
	}
}

func (m waitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, awaitFuture(m.future))
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.done = true
		m.text, m.err = msg.text, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.canceled = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return m.spinner.View() + " " + m.label + dimStyle.Render("  (ctrl+c to cancel)") + "\n"
}

// Wait shows a spinner on out while the future resolves. When out is not a
// terminal it waits silently. Cancelling from the keyboard returns
// context.Canceled.
func Wait(ctx context.Context, out io.Writer, label string, f *generate.Future) (string, error) {
	if !isTerminal(out) {
		return f.Wait(ctx)
	}
	p := tea.NewProgram(newWaitModel(label, f), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	m := final.(waitModel)
	if m.canceled {
		return "", context.Canceled
	}
	return m.text, m.err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

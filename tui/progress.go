// Package tui renders a running workflow in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"summary_review_workflow/generator"
	"summary_review_workflow/workflow"
)

const maxDialogLines = 12

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	actorStyles = map[string]lipgloss.Style{
		workflow.ActorSummarizer: lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		workflow.ActorReviewer:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		workflow.ActorTitle:      lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
	}
)

type eventMsg workflow.Event

type streamClosedMsg struct{}

// Model consumes workflow events and draws a spinner, a progress bar and the recent dialog.
type Model struct {
	events    <-chan workflow.Event
	cancel    context.CancelFunc
	spinner   spinner.Model
	progress  progress.Model
	last      workflow.Event
	final     *workflow.State
	canceling bool
}

// NewModel builds a Model for one run. cancel is invoked when the user quits.
func NewModel(events <-chan workflow.Event, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		events:   events,
		cancel:   cancel,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func waitForEvent(ch <-chan workflow.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// 取消后继续读事件，直到 END 到达。
			if !m.canceling && m.cancel != nil {
				m.canceling = true
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		w := msg.Width - 10
		if w < 10 {
			w = 10
		}
		m.progress.Width = w
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	case eventMsg:
		ev := workflow.Event(msg)
		m.last = ev
		if ev.Final() {
			st := ev.Snapshot
			m.final = &st
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	case streamClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Summary review workflow"))
	b.WriteString("\n\n")

	st := m.last.Snapshot
	if m.final != nil {
		st = *m.final
	}
	status := m.last.Message
	if status == "" {
		status = "starting"
	}
	if m.canceling && m.final == nil {
		status = "canceling..."
	}
	if m.final == nil {
		b.WriteString(m.spinner.View() + " " + statusStyle.Render(fmt.Sprintf("%s · %s", st.CurrentNode, status)))
	} else {
		b.WriteString(statusStyle.Render(fmt.Sprintf("finished: %s", st.Outcome)))
	}
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(float64(m.last.Percent) / 100))
	b.WriteString(fmt.Sprintf("  revision %d\n\n", st.RevisionCount))

	for _, line := range dialogLines(st.DialogHistory, maxDialogLines) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.final != nil {
		b.WriteString("\n")
		if st.Err != "" {
			b.WriteString(errorStyle.Render("error: "+st.Err) + "\n")
		}
		if st.Title != "" {
			b.WriteString(titleStyle.Render(st.Title) + "\n")
		}
	} else {
		b.WriteString("\n" + hintStyle.Render("q / ctrl+c: cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// dialogLines renders the last n finished dialog entries on one line each.
func dialogLines(history []workflow.DialogEntry, n int) []string {
	var out []string
	for _, d := range history {
		// "处理中"占位行不显示。
		if d.Progress != nil {
			continue
		}
		text := generator.Preview(strings.Join(strings.Fields(d.Text), " "), 100)
		if d.Actor == workflow.ActorSystem {
			out = append(out, systemStyle.Render("· "+text))
			continue
		}
		style, ok := actorStyles[d.Actor]
		if !ok {
			style = statusStyle
		}
		out = append(out, style.Render(d.Actor+":")+" "+text)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Run draws the run until its END event and returns the final state. The channel
// is always drained, so the producing goroutine never blocks.
func Run(events <-chan workflow.Event, cancel context.CancelFunc, in io.Reader, out io.Writer) (*workflow.State, error) {
	opts := []tea.ProgramOption{}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	p := tea.NewProgram(NewModel(events, cancel), opts...)
	res, err := p.Run()

	var final *workflow.State
	if m, ok := res.(Model); ok {
		final = m.final
	}
	if final == nil {
		if cancel != nil {
			cancel()
		}
		for ev := range events {
			if ev.Final() {
				st := ev.Snapshot
				final = &st
			}
		}
	}
	if err != nil {
		return final, fmt.Errorf("tui: %w", err)
	}
	if final == nil {
		return nil, fmt.Errorf("tui: event stream closed without a final state")
	}
	return final, nil
}

// Package tui is a terminal presentation layer for a playing session.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	session "github.com/koscakluka/ema-playback/core"
	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/segments"
)

// Session is what the model drives and renders.
type Session interface {
	Play()
	Pause()
	Next()
	Prev()
	CurrentState() session.State
	Segments() []segments.Info
	On(kind events.Kind, listener session.Listener) (unsubscribe func())
}

type keyMap struct {
	Toggle key.Binding
	Next   key.Binding
	Prev   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "play/pause")),
	Next:   key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("→/n", "next")),
	Prev:   key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("←/p", "prev")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle   = lipgloss.NewStyle().PaddingLeft(2)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type eventMsg struct{ event events.Event }

type Model struct {
	session Session
	title   string

	state     session.State
	mechanism events.Mechanism
	err       string
	ended     bool

	width    int
	spinner  spinner.Model
	progress progress.Model
}

func New(s Session, title string) Model {
	return Model{
		session:  s,
		title:    title,
		state:    s.CurrentState(),
		width:    80,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Subscribe forwards session events to the program.
func Subscribe(s Session, p *tea.Program) (unsubscribe func()) {
	return s.On(events.KindAny, func(event events.Event) {
		p.Send(eventMsg{event: event})
	})
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if m.state.PlayState == session.PlayStatePlaying {
				m.session.Pause()
			} else {
				m.session.Play()
			}
		case key.Matches(msg, keys.Next):
			m.session.Next()
		case key.Matches(msg, keys.Prev):
			m.session.Prev()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil

	case eventMsg:
		m.apply(msg.event)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) apply(event events.Event) {
	switch e := event.(type) {
	case session.StateChanged:
		m.state = e.State
		if e.State.PlayState == session.PlayStatePlaying {
			m.ended = false
		}
	case events.SegmentStarted:
		m.mechanism = e.Mechanism
	case events.Error:
		if e.Err != nil {
			m.err = e.Err.Error()
		}
	case events.End:
		m.ended = true
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	switch m.state.Phase {
	case session.PhaseUninitialized, session.PhaseInitializing:
		b.WriteString(m.spinner.View() + " preparing session...\n")
	case session.PhaseFailed:
		b.WriteString(errorStyle.Render("session failed: "+m.state.Error) + "\n")
	case session.PhaseDisposed:
		b.WriteString(statusStyle.Render("session closed") + "\n")
	default:
		b.WriteString(m.playbackView())
	}

	if m.err != "" && m.state.Phase != session.PhaseFailed {
		b.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(helpLine()))
	return b.String()
}

func (m Model) playbackView() string {
	var b strings.Builder

	status := fmt.Sprintf("%s · segment %d/%d · %d buffered ahead",
		m.state.PlayState, m.state.CurrentSegmentIndex+1, m.state.TotalSegments, m.state.BufferedAhead)
	if m.mechanism != "" && m.state.PlayState == session.PlayStatePlaying {
		status += " · " + string(m.mechanism)
	}
	if m.ended {
		status = "finished · press space to start again"
	}
	b.WriteString(statusStyle.Render(status) + "\n")
	b.WriteString(m.progress.ViewAs(m.completed()) + "\n\n")

	infos := m.session.Segments()
	if index := m.state.CurrentSegmentIndex; index >= 0 && index < len(infos) {
		b.WriteString(textStyle.Render(wordwrap.String(infos[index].Text, max(m.width-4, 20))) + "\n")
	}
	return b.String()
}

func (m Model) completed() float64 {
	if m.state.TotalSegments == 0 {
		return 0
	}
	done := m.state.CurrentSegmentIndex
	if m.ended {
		done = m.state.TotalSegments
	}
	return float64(done) / float64(m.state.TotalSegments)
}

func helpLine() string {
	var parts []string
	for _, binding := range []key.Binding{keys.Toggle, keys.Next, keys.Prev, keys.Quit} {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, " · ")
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/arlink/plan"
)

type eventMsg plan.Event

type doneMsg struct {
	err error
}

type archiveState int

const (
	statePending archiveState = iota
	stateBuilding
	stateDone
	stateFailed
)

type archiveRow struct {
	output  string
	state   archiveState
	members int
	err     error
}

type progressModel struct {
	spinner  spinner.Model
	rows     []archiveRow
	index    map[string]int
	resolved int
	done     bool
	err      error
	cancel   context.CancelFunc
}

func newProgressModel(m *plan.Manifest, cancel context.CancelFunc) *progressModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = pathStyle

	pm := &progressModel{
		spinner:  s,
		index:    make(map[string]int, len(m.Archives)),
		resolved: -1,
		cancel:   cancel,
	}
	for i, a := range m.Archives {
		pm.rows = append(pm.rows, archiveRow{output: a.Output})
		pm.index[a.Output] = i
	}
	return pm
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
		}
		return m, nil

	case eventMsg:
		switch msg.Kind {
		case plan.EventResolved:
			m.resolved = msg.Members
		case plan.EventStarted:
			m.setState(msg.Archive, stateBuilding, 0, nil)
		case plan.EventFinished:
			m.setState(msg.Archive, stateDone, msg.Members, nil)
		case plan.EventFailed:
			m.setState(msg.Archive, stateFailed, 0, msg.Err)
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m *progressModel) setState(output string, state archiveState, members int, err error) {
	i, ok := m.index[output]
	if !ok {
		return
	}
	m.rows[i].state = state
	m.rows[i].members = members
	m.rows[i].err = err
}

func (m *progressModel) View() string {
	var b strings.Builder

	switch {
	case m.resolved < 0:
		fmt.Fprintf(&b, "%s resolving libraries\n", m.spinner.View())
	default:
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("✓"), dimStyle.Render(fmt.Sprintf("resolved %d libraries", m.resolved)))
	}

	for _, r := range m.rows {
		switch r.state {
		case statePending:
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(r.output))
		case stateBuilding:
			fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), r.output)
		case stateDone:
			fmt.Fprintf(&b, "%s %s %s\n", okStyle.Render("✓"), r.output, dimStyle.Render(fmt.Sprintf("(%d members)", r.members)))
		case stateFailed:
			fmt.Fprintf(&b, "%s %s %s\n", errorStyle.Render("✗"), r.output, errorStyle.Render(r.err.Error()))
		}
	}

	if !m.done {
		b.WriteString(dimStyle.Render("ctrl+c to cancel") + "\n")
	}
	return b.String()
}

// Package tui is the live-status dashboard for `nodectl run --tui`. It
// ticks the same Node the headless runner would, rendering the session
// state, tunnel state, and last error on every tick.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jihun-kang/orbisync-node/pkg/node"
)

const tickInterval = 200 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

type tickMsg time.Time

type Model struct {
	n       *node.Node
	ticks   int
	lastErr string
}

func New(n *node.Node) Model {
	return Model{n: n}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		_ = m.n.Tick()
		m.ticks++
		m.lastErr = m.n.LastError()
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("  orbisync node  "))
	sb.WriteString("\n\n")
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-16s", label)))
		sb.WriteString(valueStyle.Render(value))
		sb.WriteString("\n")
	}
	row("state", m.n.State().String())
	row("registered", fmt.Sprintf("%v", m.n.IsRegistered()))
	row("node id", m.n.NodeID())
	row("session valid", fmt.Sprintf("%v", m.n.IsSessionValid()))
	row("tunnel", fmt.Sprintf("%v", m.n.IsTunnelConnected()))
	row("ticks", fmt.Sprintf("%d", m.ticks))
	sb.WriteString("\n")
	if m.lastErr != "" {
		sb.WriteString(errorStyle.Render("last error: " + m.lastErr))
	} else {
		sb.WriteString(okStyle.Render("no errors"))
	}
	sb.WriteString("\n\nq: quit\n")
	return sb.String()
}

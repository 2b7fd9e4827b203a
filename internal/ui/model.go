// ABOUTME: Bubbletea model for the card player status view
// ABOUTME: Shows the playing track, producer state, period counters and stream listeners
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status is one snapshot of player state
type Status struct {
	TrackIndex    int // zero-based, -1 before the first track
	TrackCount    int
	Title         string
	State         string
	Periods       uint64
	Served        uint64
	Underruns     uint64
	SilentSamples uint64
	Clients       int
}

// StatusMsg updates the model
type StatusMsg Status

type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	name      string
	output    string
	status    Status
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}

	width  int
	height int
}

// NewModel creates a status model. quitChan receives a value when the user
// quits; it may be nil.
func NewModel(name, output string, quitChan chan struct{}) Model {
	return Model{
		name:      name,
		output:    output,
		status:    Status{TrackIndex: -1, State: "starting"},
		startTime: time.Now(),
		quitChan:  quitChan,
	}
}

// Init starts the refresh tick
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.quitChan != nil {
				select {
				case m.quitChan <- struct{}{}:
				default:
				}
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickEvery()

	case StatusMsg:
		m.status = Status(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.name))
	b.WriteString("\n\n")

	field(&b, "Output: ", m.output)
	field(&b, "Uptime: ", time.Since(m.startTime).Round(time.Second).String())
	field(&b, "State:  ", m.status.State)
	field(&b, "Track:  ", m.trackLine())
	b.WriteString("\n")

	field(&b, "Periods:   ", fmt.Sprintf("%d", m.status.Periods))
	field(&b, "Served:    ", fmt.Sprintf("%d", m.status.Served))

	b.WriteString(headerStyle.Render("Underruns: "))
	underruns := fmt.Sprintf("%d (%.1f%%)", m.status.Underruns, underrunPercent(m.status))
	if m.status.Underruns > 0 && m.status.State == "playing" {
		b.WriteString(warnStyle.Render(underruns))
	} else {
		b.WriteString(valueStyle.Render(underruns))
	}
	b.WriteString("\n")

	field(&b, "Silence:   ", fmt.Sprintf("%d samples", m.status.SilentSamples))
	field(&b, "Listeners: ", fmt.Sprintf("%d", m.status.Clients))

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// trackLine renders "n/count title"
func (m Model) trackLine() string {
	if m.status.TrackCount == 0 {
		return "no tracks"
	}
	if m.status.TrackIndex < 0 {
		return fmt.Sprintf("-/%d", m.status.TrackCount)
	}
	return fmt.Sprintf("%d/%d %s", m.status.TrackIndex+1, m.status.TrackCount, truncate(m.status.Title, 48))
}

func underrunPercent(s Status) float64 {
	if s.Periods == 0 {
		return 0
	}
	return float64(s.Underruns) * 100 / float64(s.Periods)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// ABOUTME: TUI initialization and control
// ABOUTME: Runs the bubbletea program and feeds it status snapshots
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI manages the status program
type TUI struct {
	program  *tea.Program
	updates  chan Status
	quitChan chan struct{}
	done     chan struct{}
}

// New creates a TUI titled name for the given output mode
func New(name, output string) *TUI {
	t := &TUI{
		updates:  make(chan Status, 10),
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	t.program = tea.NewProgram(NewModel(name, output, t.quitChan), tea.WithAltScreen())
	return t
}

// Run blocks until the program exits
func (t *TUI) Run() error {
	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(StatusMsg(status))
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status snapshot without blocking
func (t *TUI) Update(status Status) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop quits the program
func (t *TUI) Stop() {
	select {
	case <-t.done:
		return
	default:
		close(t.done)
	}
	t.program.Quit()
}

// QuitChan signals when the user asked to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

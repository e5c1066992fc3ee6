package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	errPairingCanceled = errors.New("pairing canceled")
	errSASMismatch     = errors.New("security codes did not match, pairing canceled")
)

var codeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("14")).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("242")).
	Padding(0, 2)

type pairPhase int

const (
	phaseWaiting pairPhase = iota
	phaseConfirm
	phaseFinishing
	phaseDone
	phaseFailed
)

// PairTUIOpts describes one side of a pairing. Wait blocks until the peer
// acted, Finish completes the exchange. With ConfirmSAS the user must accept
// the security code between the two.
type PairTUIOpts struct {
	Title      string
	Code       string
	ExpiresAt  time.Time
	SAS        func() string
	ConfirmSAS bool

	WaitLabel   string
	FinishLabel string
	DoneLabel   string

	Wait   func() error
	Finish func() error
	Cancel func()
}

type pairTUI struct {
	opts    *PairTUIOpts
	spinner spinner.Model
	phase   pairPhase
	err     error
}

type pairWaitedMsg struct{ err error }
type pairFinishedMsg struct{ err error }

func newPairTUI(opts *PairTUIOpts) pairTUI {
	return pairTUI{
		opts:    opts,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cyan)),
	}
}

func (m pairTUI) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return pairWaitedMsg{err: m.opts.Wait()}
	})
}

func (m pairTUI) finish() (tea.Model, tea.Cmd) {
	m.phase = phaseFinishing
	return m, func() tea.Msg {
		return pairFinishedMsg{err: m.opts.Finish()}
	}
}

func (m pairTUI) fail(err error) (tea.Model, tea.Cmd) {
	m.phase, m.err = phaseFailed, err
	return m, tea.Quit
}

func (m pairTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.opts.Cancel()
			return m.fail(errPairingCanceled)
		}
		if m.phase != phaseConfirm {
			return m, nil
		}
		switch strings.ToLower(msg.String()) {
		case "y":
			return m.finish()
		case "n":
			m.opts.Cancel()
			return m.fail(errSASMismatch)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pairWaitedMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		if m.opts.ConfirmSAS {
			m.phase = phaseConfirm
			return m, nil
		}
		return m.finish()

	case pairFinishedMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.phase = phaseDone
		return m, tea.Quit
	}
	return m, nil
}

func (m pairTUI) View() string {
	var b strings.Builder
	b.WriteString(cyan.Bold(true).Render(m.opts.Title) + "\n\n")

	if m.opts.Code != "" {
		b.WriteString("Enter this code on the new device\n")
		b.WriteString(codeStyle.Render(m.opts.Code) + "\n")
		if !m.opts.ExpiresAt.IsZero() {
			fmt.Fprintf(&b, "%s\n", gray.Render("expires at "+m.opts.ExpiresAt.Local().Format(time.Kitchen)))
		}
		b.WriteString("\n")
	}

	if sas := m.opts.SAS(); sas != "" {
		b.WriteString("Security code, it must match on both devices\n")
		b.WriteString(codeStyle.Render(sas) + "\n\n")
	}

	switch m.phase {
	case phaseWaiting:
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.opts.WaitLabel)
	case phaseConfirm:
		b.WriteString(yellow.Render("Does the other device show the same security code? [y/n]") + "\n")
	case phaseFinishing:
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.opts.FinishLabel)
	case phaseDone:
		b.WriteString(green.Render(m.opts.DoneLabel) + "\n")
	case phaseFailed:
		fmt.Fprintf(&b, "%s %s\n", red.Bold(true).Render("ERROR:"), red.Render(m.err.Error()))
	}

	b.WriteString("\n" + gray.Render("esc cancel") + "\n")
	return b.String()
}

// RunPairTUI runs the pairing screen and returns why it ended early, if it did.
func RunPairTUI(opts PairTUIOpts) error {
	final, err := tea.NewProgram(newPairTUI(&opts)).Run()
	if err != nil {
		opts.Cancel()
		return fmt.Errorf("pairing TUI: %w", err)
	}
	m, ok := final.(pairTUI)
	if !ok {
		return errPairingCanceled
	}
	if m.phase == phaseFailed {
		return m.err
	}
	if m.phase != phaseDone {
		opts.Cancel()
		return errPairingCanceled
	}
	return nil
}

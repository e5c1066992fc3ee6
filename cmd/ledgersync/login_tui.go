package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ledgersync/ledgersync/internal/utils"
)

type loginStep int

const (
	stepEmail loginStep = iota
	stepCode
	stepDone
)

const (
	txtEmailPlaceholder = "you@example.com"
	txtCodePlaceholder  = "••••••••"
	txtEmailPrompt      = "Email address of your LedgerSync account"
	txtCodePrompt       = "Login code sent to %s"
	txtCodeInfo         = "Check your inbox or junk folder."
	txtRequestingCode   = "Requesting login code..."
	txtVerifyingCode    = "Verifying login code..."
	txtInvalidEmail     = "That does not look like an email address"
	txtInvalidCode      = "Login codes are letters and digits only"
	txtLoginHelp        = "enter submit • esc back • ctrl+c quit"
)

var (
	inputStyle  = green
	helpStyle   = gray
	errStyle    = red
	titleStyle  = cyan.Bold(true)
	headerLabel = gray
)

type LoginTUIOpts struct {
	Email      string
	RelayURL   string
	DataDir    string
	ConfigPath string
	Note       string

	// RequestCode mails a code to the address, VerifyCode exchanges it.
	RequestCode func(email string) error
	VerifyCode  func(email, code string) error

	EmailValidator func(email string) bool
	CodeValidator  func(code string) bool
}

type loginTUI struct {
	opts *LoginTUIOpts

	email   textinput.Model
	code    textinput.Model
	spinner spinner.Model

	step    loginStep
	busy    string
	err     string
	address string
}

type codeRequestedMsg struct{ err error }
type codeVerifiedMsg struct{ err error }

func newLoginTUI(opts *LoginTUIOpts) loginTUI {
	newInput := func(placeholder string, limit int) textinput.Model {
		in := textinput.New()
		in.Placeholder = placeholder
		in.CharLimit = limit
		in.Width = limit
		in.PromptStyle = inputStyle
		in.TextStyle = inputStyle
		in.PlaceholderStyle = gray
		return in
	}

	m := loginTUI{
		opts:    opts,
		email:   newInput(txtEmailPlaceholder, 64),
		code:    newInput(txtCodePlaceholder, 16),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cyan)),
	}
	m.email.SetValue(opts.Email)
	m.email.Focus()
	return m
}

func (m loginTUI) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m loginTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.step == stepCode && m.busy == "" {
				m.step, m.err = stepEmail, ""
				m.code.Reset()
				m.code.Blur()
				m.email.Focus()
				return m, textinput.Blink
			}
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy != "" {
				return m, nil
			}
			return m.submit()
		}

		m.err = ""
		var cmd tea.Cmd
		if m.step == stepEmail {
			m.email, cmd = m.email.Update(msg)
		} else {
			m.code, cmd = m.code.Update(msg)
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case codeRequestedMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err.Error()
			m.email.Focus()
			return m, textinput.Blink
		}
		m.step = stepCode
		m.code.Focus()
		return m, textinput.Blink

	case codeVerifiedMsg:
		m.busy = ""
		if msg.err != nil {
			m.err = msg.err.Error()
			m.code.Focus()
			return m, textinput.Blink
		}
		m.step = stepDone
		return m, tea.Quit
	}
	return m, nil
}

func (m loginTUI) submit() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepEmail:
		address := utils.NormalizeEmail(m.email.Value())
		if !m.opts.EmailValidator(address) {
			m.err = txtInvalidEmail
			return m, nil
		}
		m.address, m.busy = address, txtRequestingCode
		m.email.Blur()
		return m, func() tea.Msg {
			return codeRequestedMsg{err: m.opts.RequestCode(address)}
		}

	case stepCode:
		code := strings.ToUpper(strings.TrimSpace(m.code.Value()))
		if !m.opts.CodeValidator(code) {
			m.err = txtInvalidCode
			return m, nil
		}
		m.busy = txtVerifyingCode
		m.code.Blur()
		address := m.address
		return m, func() tea.Msg {
			return codeVerifiedMsg{err: m.opts.VerifyCode(address, code)}
		}
	}
	return m, nil
}

func (m loginTUI) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(utils.LedgerSyncArt))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", headerLabel.Render("Relay   "), green.Render(m.opts.RelayURL))
	fmt.Fprintf(&b, "%s%s\n", headerLabel.Render("Data    "), green.Render(m.opts.DataDir))
	fmt.Fprintf(&b, "%s%s\n", headerLabel.Render("Config  "), green.Render(m.opts.ConfigPath))
	if m.opts.Note != "" {
		fmt.Fprintf(&b, "\n%s\n", yellow.Render(m.opts.Note))
	}
	b.WriteString("\n")

	switch m.step {
	case stepEmail:
		b.WriteString(txtEmailPrompt + "\n\n")
		b.WriteString(m.email.View())
	case stepCode:
		fmt.Fprintf(&b, txtCodePrompt+"\n", green.Render(m.address))
		b.WriteString(helpStyle.Render(txtCodeInfo) + "\n\n")
		b.WriteString(m.code.View())
	case stepDone:
		b.WriteString(green.Render("Logged in"))
	}

	if m.busy != "" {
		fmt.Fprintf(&b, "\n\n%s %s", m.spinner.View(), m.busy)
	}
	if m.err != "" {
		fmt.Fprintf(&b, "\n\n%s %s", errStyle.Bold(true).Render("ERROR:"), errStyle.Render(m.err))
	}
	b.WriteString("\n\n" + helpStyle.Render(txtLoginHelp) + "\n")
	return b.String()
}

// RunLoginTUI drives the email and code prompts until the code verifies or
// the user quits.
func RunLoginTUI(opts LoginTUIOpts) error {
	final, err := tea.NewProgram(newLoginTUI(&opts), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("login TUI: %w", err)
	}
	if m, ok := final.(loginTUI); !ok || m.step != stepDone {
		return fmt.Errorf("login cancelled")
	}
	return nil
}

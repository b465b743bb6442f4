// netcosmctl is the administrator console: a bubbletea client speaking
// the server's plain line-based text protocol, aimed at the
// enumerate/kick/manage surface; it is a player client with admin
// privilege, not a separate protocol.
//
// Screens
// -------
//
//	stateLogin - username/password form
//	stateConsole - scrollable transcript + command input, admin verbs
//	  (listclients, kick <id> <msg>, kickall <msg>, listusers, adduser,
//	  deluser) work the same as typing them over a raw TCP connection.
//
// Concurrency
// -----------
//
//	A single goroutine scans newline-terminated text off the TCP
//	connection and forwards each line to the lines channel. The
//	Bubbletea event loop consumes one line at a time via waitForLine (a
//	tea.Cmd), queuing the next read immediately after.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	purple = lipgloss.Color("99")
	cyan   = lipgloss.Color("86")
	green  = lipgloss.Color("82")
	red    = lipgloss.Color("196")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(gray).
			Width(10)

	focusedLabelStyle = lipgloss.NewStyle().
				Foreground(cyan).
				Width(10)

	hintStyle  = lipgloss.NewStyle().Foreground(gray).Italic(true)
	errorStyle = lipgloss.NewStyle().Foreground(red)
	okStyle    = lipgloss.NewStyle().Foreground(green)
)

type serverLineMsg string
type disconnectedMsg struct{}

type appState int

const (
	stateLogin appState = iota
	stateConsole
)

type model struct {
	conn  net.Conn
	lines chan string

	state       appState
	loginFocus  int
	loginFields [2]textinput.Model // [0]=username [1]=password
	statusMsg   string

	ready      bool
	viewport   viewport.Model
	cmdInput   textinput.Model
	transcript []string

	width, height int
}

func newModel(conn net.Conn, lines chan string) model {
	uf := textinput.New()
	uf.Placeholder = "admin username"
	uf.Focus()
	uf.CharLimit = 32
	uf.Width = 32

	pf := textinput.New()
	pf.Placeholder = "password"
	pf.EchoMode = textinput.EchoPassword
	pf.EchoCharacter = '•'
	pf.CharLimit = 64
	pf.Width = 32

	ci := textinput.New()
	ci.Placeholder = "listclients / kick <id> <msg> / listusers / adduser <n> <p> / deluser <n>"

	return model{
		conn:        conn,
		lines:       lines,
		state:       stateLogin,
		loginFields: [2]textinput.Model{uf, pf},
		cmdInput:    ci,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForLine(m.lines))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.cmdInput.Width = msg.Width - 4
		return m, nil

	case serverLineMsg:
		m = m.handleServerLine(string(msg))
		return m, waitForLine(m.lines)

	case disconnectedMsg:
		m.statusMsg = "disconnected from server"
		return m, tea.Quit

	case tea.KeyMsg:
		switch m.state {
		case stateLogin:
			return m.handleLoginKey(msg)
		case stateConsole:
			return m.handleConsoleKey(msg)
		}
	}
	return m, nil
}

func (m model) vpHeight() int {
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m model) handleLoginKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyTab, tea.KeyShiftTab:
		m.loginFocus = (m.loginFocus + 1) % 2
		for i := range m.loginFields {
			if i == m.loginFocus {
				m.loginFields[i].Focus()
			} else {
				m.loginFields[i].Blur()
			}
		}
		return m, textinput.Blink

	case tea.KeyEnter:
		user := strings.TrimSpace(m.loginFields[0].Value())
		pass := m.loginFields[1].Value()
		if user == "" || pass == "" {
			m.statusMsg = "username and password are required"
			return m, nil
		}
		fmt.Fprintln(m.conn, user)
		fmt.Fprintln(m.conn, pass)
		m.statusMsg = "Authenticating…"
		return m, nil
	}

	var cmd tea.Cmd
	m.loginFields[m.loginFocus], cmd = m.loginFields[m.loginFocus].Update(msg)
	return m, cmd
}

func (m model) handleConsoleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEnter:
		line := strings.TrimSpace(m.cmdInput.Value())
		if line != "" {
			fmt.Fprintln(m.conn, line)
			m.appendLine(hintStyle.Render("> " + line))
			m.cmdInput.Reset()
		}
		return m, nil

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.cmdInput, cmd = m.cmdInput.Update(msg)
	return m, cmd
}

// handleServerLine renders one line of raw server text. The console
// protocol carries no envelope to parse; every line the socket emits is
// already user-facing, so promotion from login to console state is keyed
// off the prompts the worker itself prints.
func (m model) handleServerLine(line string) model {
	// Prompts are written without a trailing newline, so the scanner folds
	// them into the front of the next real line; peel them off before
	// classifying what's left.
	for {
		if rest, ok := strings.CutPrefix(line, "> "); ok {
			line = rest
			continue
		}
		if rest, ok := strings.CutPrefix(line, "login: "); ok {
			line = rest
			continue
		}
		if rest, ok := strings.CutPrefix(line, "password: "); ok {
			line = rest
			continue
		}
		break
	}
	if line == "" {
		return m
	}
	switch {
	case strings.HasPrefix(line, "Welcome, "):
		m.state = stateConsole
		m.cmdInput.Focus()
		m.appendLine(okStyle.Render(line))
	case strings.Contains(line, "Invalid credentials") || strings.Contains(line, "Access denied"):
		if m.state == stateLogin {
			m.statusMsg = line
		} else {
			m.appendLine(errorStyle.Render(line))
		}
	default:
		m.appendLine(line)
	}
	return m
}

func (m *model) appendLine(line string) {
	m.transcript = append(m.transcript, line)
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	switch m.state {
	case stateLogin:
		return m.viewLogin()
	case stateConsole:
		return m.viewConsole()
	}
	return ""
}

func (m model) viewLogin() string {
	if m.width == 0 {
		return "\n  Connecting to server…"
	}

	title := titleStyle.Render("  netcosmctl  ")

	renderField := func(label string, f textinput.Model, focused bool) string {
		var lbl string
		if focused {
			lbl = focusedLabelStyle.Render(label)
		} else {
			lbl = labelStyle.Render(label)
		}
		return lbl + "  " + f.View()
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		renderField("Username", m.loginFields[0], m.loginFocus == 0),
		renderField("Password", m.loginFields[1], m.loginFocus == 1),
		"",
		hintStyle.Render("Tab: switch field   Enter: login   Ctrl+C: quit"),
		"",
		m.renderStatus(),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}

func (m model) viewConsole() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	hdr := headerStyle.
		Width(m.width).
		Render(" netcosmctl  ·  PgUp/Dn: Scroll  Ctrl+C: Quit")

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.cmdInput.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.viewport.View(), footer)
}

func (m model) renderStatus() string {
	if m.statusMsg == "" {
		return ""
	}
	if strings.Contains(m.statusMsg, "Authenticating") {
		return hintStyle.Render(m.statusMsg)
	}
	return errorStyle.Render(m.statusMsg)
}

// waitForLine returns a tea.Cmd that blocks until the next line arrives on
// ch. When ch is closed (server disconnected) it returns disconnectedMsg.
func waitForLine(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return serverLineMsg(line)
	}
}

func main() {
	addr := flag.String("addr", "localhost:1234", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	lines := make(chan string, 64)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- strings.TrimRight(scanner.Text(), "\r")
		}
	}()

	p := tea.NewProgram(
		newModel(conn, lines),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

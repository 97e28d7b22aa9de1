// Package tui renders a live terminal view of a running voice session by
// polling its control socket.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/dpt/internal/ipc"
)

const (
	pollInterval  = 150 * time.Millisecond
	requestBudget = 300 * time.Millisecond
	meterWidth    = 30
	keyQuit       = "q"
	keyCtrlC      = "ctrl+c"
	keyToggle     = " "
	keyWake       = "w"
	keyLocal      = "l"
	keyTake       = "t"
)

// Client sends one control request to the owner process.
type Client interface {
	Send(ctx context.Context, req ipc.Request) (ipc.Response, error)
}

// SocketClient keeps one connection to the owner socket open across polls
// and redials after any failure.
type SocketClient struct {
	path string

	mu   sync.Mutex
	conn *ipc.Conn
}

func NewSocketClient(path string) *SocketClient {
	return &SocketClient{path: path}
}

func (c *SocketClient) Send(ctx context.Context, req ipc.Request) (ipc.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := ipc.Dial(ctx, c.path, requestBudget)
		if err != nil {
			return ipc.Response{}, err
		}
		c.conn = conn
	}

	resp, err := c.conn.Do(ctx, req)
	if err != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return resp, err
}

func (c *SocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

type statusMsg struct {
	resp ipc.Response
	err  error
}

type actionMsg struct {
	command string
	resp    ipc.Response
	err     error
}

type tickMsg struct{}

// Model is the root bubbletea model.
type Model struct {
	client Client

	connected bool
	status    ipc.Response
	commands  []string
	notice    string
	errorText string
	width     int
}

func New(client Client) Model {
	return Model{client: client}
}

func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		resp, err := client.Send(context.Background(), ipc.Request{Command: ipc.CommandStatus})
		return statusMsg{resp: resp, err: err}
	}
}

func (m Model) send(req ipc.Request) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		resp, err := client.Send(context.Background(), req)
		return actionMsg{command: req.Command, resp: resp, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		return m, m.poll()

	case statusMsg:
		if msg.err != nil {
			m.connected = false
			m.errorText = "no running session: " + msg.err.Error()
			return m, tick()
		}
		m.connected = true
		m.status = msg.resp
		m.errorText = msg.resp.Error
		return m, tick()

	case actionMsg:
		switch {
		case msg.err != nil:
			m.errorText = msg.err.Error()
		case !msg.resp.OK:
			m.errorText = msg.resp.Error
		case msg.command == ipc.CommandTake && msg.resp.Command != "":
			m.commands = append(m.commands, msg.resp.Command)
			if len(m.commands) > 5 {
				m.commands = m.commands[len(m.commands)-5:]
			}
			m.notice = "took command"
		default:
			m.notice = msg.resp.Message
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyCtrlC:
		return m, tea.Quit
	case keyToggle:
		if m.status.Listening {
			return m, m.send(ipc.Request{Command: ipc.CommandStop})
		}
		return m, m.send(ipc.Request{Command: ipc.CommandStartGlobal})
	case keyWake:
		return m, m.send(ipc.Request{Command: ipc.CommandStartGlobal, Active: true})
	case keyLocal:
		return m, m.send(ipc.Request{Command: ipc.CommandStartLocal})
	case keyTake:
		return m, m.send(ipc.Request{Command: ipc.CommandTake})
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("dpt monitor"))
	b.WriteString("\n\n")

	b.WriteString(row("state", m.stateLine()))
	b.WriteString(row("volume", renderMeter(m.status.Volume)))
	if m.status.Speaking {
		b.WriteString(row("speaking", "yes"))
	}
	if t := strings.TrimSpace(m.status.Transcript); t != "" {
		b.WriteString(row("hearing", partialStyle.Render(t)))
	}
	for i, command := range m.commands {
		label := ""
		if i == 0 {
			label = "commands"
		}
		b.WriteString(row(label, commandStyle.Render(command)))
	}
	if m.notice != "" {
		b.WriteString(row("", helpStyle.Render(m.notice)))
	}
	if m.errorText != "" {
		b.WriteString(row("error", errorStyle.Render(m.errorText)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space start/stop · w wake · l dictate · t take · q quit"))

	frame := frameStyle
	if m.width > 4 {
		frame = frame.Width(m.width - 4)
	}
	return frame.Render(b.String())
}

func (m Model) stateLine() string {
	if !m.connected {
		return idleDotStyle.Render("○") + " disconnected"
	}
	state := m.status.State
	if state == "" {
		state = "unknown"
	}
	dot := idleDotStyle.Render("○")
	switch {
	case state == "error":
		dot = errorDotStyle.Render("●")
	case m.status.Active:
		dot = activeDotStyle.Render("●")
	case m.status.Listening:
		dot = listeningDotStyle.Render("●")
	}
	if m.status.Mode != "" {
		return fmt.Sprintf("%s %s (%s)", dot, state, m.status.Mode)
	}
	return dot + " " + state
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

// renderMeter draws a 0-100 level as a fixed-width bar.
func renderMeter(level int) string {
	level = max(0, min(level, 100))
	filled := level * meterWidth / 100
	return meterFillStyle.Render(strings.Repeat("█", filled)) +
		meterEmptyStyle.Render(strings.Repeat("░", meterWidth-filled)) +
		fmt.Sprintf(" %3d", level)
}

// Run drives the monitor until the user quits or ctx ends.
func Run(ctx context.Context, client Client) error {
	program := tea.NewProgram(New(client), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/geniusai/genius/client"
	"github.com/geniusai/genius/pkg/llm"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("25")).Padding(0, 1)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type deltaMsg llm.Message

type turnDoneMsg struct {
	conv *llm.Conversation
	err  error
}

type newConversationMsg struct {
	conv *llm.Conversation
	err  error
}

// tuiModel is the full-screen chat session.
type tuiModel struct {
	ctx    context.Context
	client *client.Client
	conv   *llm.Conversation
	images []string

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	events    <-chan tea.Msg
	busy      bool
	streaming llm.Message
	status    string
	width     int
	height    int
}

func newTUIModel(ctx context.Context, cl *client.Client, conv *llm.Conversation, images []string) tuiModel {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 8000
	input.Placeholder = "Posez votre question (/new, /mode <mode>, /quit)"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	m := tuiModel{
		ctx:      ctx,
		client:   cl,
		conv:     conv,
		images:   images,
		input:    input,
		timeline: viewport.New(80, 20),
		spinner:  sp,
		status:   "prêt",
	}
	m.renderTimeline()
	return m
}

func (m tuiModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.renderTimeline()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			return m.submit(line)
		}

	case deltaMsg:
		m.streaming = llm.Message(msg)
		m.renderTimeline()
		return m, waitForEvent(m.events)

	case turnDoneMsg:
		m.busy = false
		m.events = nil
		m.streaming = llm.Message{}
		if msg.conv != nil {
			m.conv = msg.conv
		}
		var turnErr *client.TurnError
		switch {
		case errors.As(msg.err, &turnErr):
			m.status = strings.ToLower(string(turnErr.Kind))
		case msg.err != nil:
			m.status = msg.err.Error()
		default:
			m.status = "prêt"
		}
		m.renderTimeline()
		return m, nil

	case newConversationMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.conv = msg.conv
		m.status = "nouvelle conversation"
		m.renderTimeline()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.timeline, cmd = m.timeline.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles a session command or starts a turn.
func (m tuiModel) submit(line string) (tea.Model, tea.Cmd) {
	switch {
	case line == "/quit" || line == "/exit":
		return m, tea.Quit
	case line == "/new":
		return m, m.newConversation(m.conv.Mode)
	case strings.HasPrefix(line, "/mode"):
		mode := llm.Mode(strings.TrimSpace(strings.TrimPrefix(line, "/mode")))
		if !mode.Valid() {
			m.status = "mode inconnu : medicine ou informatique"
			return m, nil
		}
		return m, m.newConversation(mode)
	}

	events := make(chan tea.Msg, 16)
	m.events = events
	m.busy = true
	m.status = "réponse en cours"
	m.conv.Messages = append(m.conv.Messages, llm.Message{Role: llm.RoleUser, Content: line, Images: m.images})
	m.renderTimeline()

	input := client.Input{Content: line, Images: m.images}
	m.images = nil

	ctx, cl, id := m.ctx, m.client, m.conv.ID
	go func() {
		defer close(events)
		emit := func(msg tea.Msg) {
			select {
			case events <- msg:
			case <-ctx.Done():
			}
		}
		conv, err := cl.Send(ctx, id, input, func(msg llm.Message) {
			if !msg.Error {
				emit(deltaMsg(msg))
			}
		})
		emit(turnDoneMsg{conv: conv, err: err})
	}()

	return m, tea.Batch(m.spinner.Tick, waitForEvent(events))
}

func (m tuiModel) newConversation(mode llm.Mode) tea.Cmd {
	ctx, cl := m.ctx, m.client
	return func() tea.Msg {
		conv, err := cl.NewConversation(ctx, mode)
		return newConversationMsg{conv: conv, err: err}
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *tuiModel) renderTimeline() {
	width := m.timeline.Width
	wrap := lipgloss.NewStyle().Width(max(width, 20))

	var b strings.Builder
	for _, msg := range m.conv.Messages {
		b.WriteString(wrap.Render(formatMessage(msg)))
		b.WriteString("\n\n")
	}
	if m.busy && m.streaming.Content != "" {
		b.WriteString(wrap.Render(formatMessage(m.streaming)))
		b.WriteString("\n")
	}

	m.timeline.SetContent(b.String())
	m.timeline.GotoBottom()
}

func formatMessage(m llm.Message) string {
	switch {
	case m.Error:
		return errorStyle.Render(m.Content)
	case m.Role == llm.RoleUser:
		label := "Vous"
		if n := len(m.ImageList()); n > 0 {
			label = fmt.Sprintf("Vous [%d image(s)]", n)
		}
		return userStyle.Render(label+":") + " " + m.Content
	default:
		return agentStyle.Render("Genius:") + " " + m.Content
	}
}

func (m tuiModel) View() string {
	header := headerStyle.Render(fmt.Sprintf("Genius AI · %s · %s", m.conv.Mode, m.conv.Title))

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	footer := footerStyle.Render(status + " · Échap pour quitter")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.timeline.View(),
		m.input.View(),
		footer,
	)
}

func (c *chatCommander) runTUI(ctx context.Context, cl *client.Client, conv *llm.Conversation, images []string, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(newTUIModel(ctx, cl, conv, images), opts...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

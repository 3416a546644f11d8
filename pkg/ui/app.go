package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/theapemachine/scenes/pkg/ai"
	"github.com/theapemachine/scenes/pkg/types"
)

const gap = "\n\n"

/*
Runner starts a request and streams its events.
*/
type Runner interface {
	Run(ctx context.Context, settings types.RequestSettings) *ai.Stream
}

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	messages []string
	runner   Runner
	path     string
	session  string
	stream   *ai.Stream
	busy     bool
	ctx      context.Context
}

/*
New returns the chat model. Every message runs as a request on the same
request key, so later questions see the history of earlier ones.
*/
func New(ctx context.Context, runner Runner, path string) tea.Model {
	ta := textarea.New()
	ta.Placeholder = "Ask something..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 500

	ta.SetWidth(80)
	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	vp.SetContent(headerStyle.Render("scenes") + `
Type a message and press Enter. Events stream in as the scenes run.
Press Ctrl+C or Esc to quit.`)

	return model{
		viewport: vp,
		textarea: ta,
		runner:   runner,
		path:     path,
		session:  uuid.NewString(),
		ctx:      ctx,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - lipgloss.Height(gap) - 2
		m.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, defaultKeymap.quit):
			return m, tea.Quit
		case key.Matches(msg, defaultKeymap.clear):
			m.messages = nil
			m.refresh()
		case key.Matches(msg, defaultKeymap.send):
			return m.send(tiCmd, vpCmd)
		}

	case eventMsg:
		m.messages = append(m.messages, msg.event.String())
		m.refresh()
		return m, tea.Batch(tiCmd, vpCmd, next(m.stream))

	case doneMsg:
		m.busy = false

		if msg.err != nil {
			m.messages = append(m.messages, errorStyle.Render("Error: ")+msg.err.Error())
			m.refresh()
		}
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m model) send(tiCmd, vpCmd tea.Cmd) (tea.Model, tea.Cmd) {
	message := strings.TrimSpace(m.textarea.Value())

	if message == "" || m.busy {
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.messages = append(m.messages, senderStyle.Render("You: ")+message)
	m.textarea.Reset()
	m.refresh()

	m.busy = true
	m.stream = m.runner.Run(m.ctx, types.RequestSettings{
		RequestKey: m.session,
		Message:    message,
		Path:       m.path,
	})

	return m, tea.Batch(tiCmd, vpCmd, next(m.stream))
}

func (m *model) refresh() {
	if len(m.messages) == 0 {
		return
	}

	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(strings.Join(m.messages, "\n")))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	status := "ready"

	if m.busy {
		status = "running..."
	}

	return fmt.Sprintf(
		"%s%s%s\n%s",
		m.viewport.View(),
		gap,
		m.textarea.View(),
		statusBarStyle.Render(status),
	)
}

/*
next waits for the stream's next event, or reports the end of the stream.
*/
func next(stream *ai.Stream) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-stream.Events()

		if !ok {
			return doneMsg{err: stream.Err()}
		}

		return eventMsg{event: event}
	}
}

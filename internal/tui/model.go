package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"profilechat/internal/chat"
)

// Handler runs one line of chat input, writing progress to out.
type Handler interface {
	Handle(ctx context.Context, input string, out chat.Output) error
}

type entryKind int

const (
	userEntry entryKind = iota
	assistantEntry
	noticeEntry
)

type entry struct {
	kind entryKind
	text string
}

type (
	userMsg      struct{ text string }
	assistantMsg struct{ text string }
	noticeMsg    struct{ text string }
	clearMsg     struct{}
	turnDoneMsg  struct{ err error }
)

// Model is the Bubble Tea model for the chat window.
type Model struct {
	ctx      context.Context
	handler  Handler
	events   chan tea.Msg
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	// reply is the index of the streamed assistant entry of the current turn, or -1.
	reply  int
	busy   bool
	status string
	title  string
	ready  bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, handler Handler, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Fai una domanda (help per i comandi)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		handler:  handler,
		events:   make(chan tea.Msg, 64),
		input:    ti,
		viewport: vp,
		reply:    -1,
		title:    title,
		status:   "Pronto.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and turn events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, lh := logBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box line
		vh := msg.Height - reserved - lh
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, vh)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = "Sto pensando..."
			return m, tea.Batch(m.run(q), m.listen())
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case userMsg:
		m.entries = append(m.entries, entry{kind: userEntry, text: msg.text})
		m.reply = -1
		m.refresh()
		return m, m.listen()
	case assistantMsg:
		if m.reply < 0 {
			m.entries = append(m.entries, entry{kind: assistantEntry})
			m.reply = len(m.entries) - 1
		}
		m.entries[m.reply].text = msg.text
		m.refresh()
		return m, m.listen()
	case noticeMsg:
		m.entries = append(m.entries, entry{kind: noticeEntry, text: msg.text})
		m.refresh()
		return m, m.listen()
	case clearMsg:
		m.entries = nil
		m.reply = -1
		m.refresh()
		return m, m.listen()
	case turnDoneMsg:
		m.busy = false
		m.reply = -1
		if msg.err != nil {
			m.status = "Errore: " + msg.err.Error()
		} else {
			m.status = "Pronto."
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run handles the input off the UI goroutine; events flow back through m.events.
func (m Model) run(input string) tea.Cmd {
	events := m.events
	return func() tea.Msg {
		err := m.handler.Handle(m.ctx, input, channelOutput{events: events})
		events <- turnDoneMsg{err: err}
		return nil
	}
}

func (m Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg { return <-events }
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render(m.title)
	log := logBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + log + "\n" + input + "\n" + status
}

func (m Model) renderLog() string {
	if len(m.entries) == 0 {
		return noticeStyle.Render("Nessun messaggio. Scrivi help per i comandi.")
	}
	width := max(10, m.viewport.Width-2)
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch e.kind {
		case userEntry:
			parts = append(parts, userStyle.Render("Tu: ")+lipgloss.NewStyle().Width(width).Render(e.text))
		case assistantEntry:
			text := e.text
			if text == "" {
				text = "..."
			}
			parts = append(parts, botStyle.Render("Bot: ")+lipgloss.NewStyle().Width(width).Render(text))
		default:
			parts = append(parts, noticeStyle.Width(width).Render(e.text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// channelOutput forwards session output to the UI loop.
type channelOutput struct {
	events chan<- tea.Msg
}

func (o channelOutput) User(text string)      { o.events <- userMsg{text: text} }
func (o channelOutput) Assistant(text string) { o.events <- assistantMsg{text: text} }
func (o channelOutput) Notice(text string)    { o.events <- noticeMsg{text: text} }
func (o channelOutput) Clear()                { o.events <- clearMsg{} }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	logBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

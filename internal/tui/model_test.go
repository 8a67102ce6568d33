package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilechat/internal/chat"
)

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, input string, out chat.Output) error {
	out.User(input)
	out.Assistant("eco: " + input)
	return nil
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func sized(t *testing.T) Model {
	m := New(context.Background(), echoHandler{}, "Profile Chat")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func TestEnterStartsTurnAndIgnoresWhileBusy(t *testing.T) {
	m := sized(t)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)

	m.input.SetValue("  ciao  ")
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	m.input.SetValue("ancora")
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "ancora", m.input.Value())

	m, _ = update(t, m, turnDoneMsg{})
	assert.False(t, m.busy)
	assert.Equal(t, "Pronto.", m.status)
}

func TestAssistantUpdatesReplaceCurrentReply(t *testing.T) {
	m := sized(t)

	m, _ = update(t, m, userMsg{text: "ciao"})
	m, _ = update(t, m, assistantMsg{text: "Ma"})
	m, _ = update(t, m, assistantMsg{text: "Mario"})
	m, _ = update(t, m, noticeMsg{text: "nota"})

	require.Len(t, m.entries, 3)
	assert.Equal(t, entry{kind: userEntry, text: "ciao"}, m.entries[0])
	assert.Equal(t, entry{kind: assistantEntry, text: "Mario"}, m.entries[1])
	assert.Equal(t, noticeEntry, m.entries[2].kind)

	m, _ = update(t, m, turnDoneMsg{err: errors.New("rete")})
	assert.Equal(t, "Errore: rete", m.status)

	m, _ = update(t, m, assistantMsg{text: "nuovo"})
	assert.Len(t, m.entries, 4)
}

func TestClearEmptiesLog(t *testing.T) {
	m := sized(t)
	m, _ = update(t, m, userMsg{text: "ciao"})
	m, _ = update(t, m, clearMsg{})
	assert.Empty(t, m.entries)
	assert.Contains(t, m.View(), "Nessun messaggio")
}

func TestRunForwardsHandlerOutput(t *testing.T) {
	m := sized(t)
	cmd := m.run("ciao")
	assert.Nil(t, cmd())

	var got []tea.Msg
	for i := 0; i < 3; i++ {
		got = append(got, <-m.events)
	}
	assert.Equal(t, []tea.Msg{userMsg{text: "ciao"}, assistantMsg{text: "eco: ciao"}, turnDoneMsg{}}, got)
}

func TestViewBeforeSize(t *testing.T) {
	m := New(context.Background(), echoHandler{}, "Profile Chat")
	assert.Equal(t, "Loading...", m.View())
}

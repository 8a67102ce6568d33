package chat

import (
	"sync"

	"profilechat/internal/domain"
)

// History is the conversation log. Entry 0 is always the system persona and
// entries are only ever appended.
type History struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func NewHistory(persona string) *History {
	return &History{msgs: []domain.Message{{Role: domain.RoleSystem, Content: persona}}}
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of entries, including the system persona.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Append adds entries after the existing ones.
func (h *History) Append(msgs ...domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msgs...)
}

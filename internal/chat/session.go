// Package chat drives chat turns: context assembly, engine streaming,
// answer sanitization and the conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"profilechat/internal/assembler"
	"profilechat/internal/domain"
	"profilechat/internal/engine"
	"profilechat/internal/metrics"
	"profilechat/internal/sanitize"
	"profilechat/internal/service"
	"profilechat/internal/summarizer"
)

const (
	// OfflineNotice is shown for every turn once no engine can be resolved.
	OfflineNotice = "Il chatbot non è disponibile: nessun motore di inferenza è raggiungibile da questo dispositivo."
	// CapabilityNotice is shown once when the runtime lacks the required accelerator.
	CapabilityNotice = "Questo dispositivo non supporta l'inferenza locale (acceleratore non disponibile)."
)

// Output is the on-screen log a session writes to.
type Output interface {
	// User shows the submitted message.
	User(text string)
	// Assistant replaces the in-progress reply of the current turn.
	Assistant(text string)
	// Notice shows a system message (help, errors, diagnostics).
	Notice(text string)
	// Clear empties the visible log.
	Clear()
}

// Retrieval is the profile index as seen by the session.
type Retrieval interface {
	Context(query string) []string
	Sections() domain.Sections
	Ingest(ctx context.Context) (service.Stats, error)
	Stats() service.Stats
}

// Resolver provides the lazily created local engine.
type Resolver interface {
	Resolve(ctx context.Context) (domain.Engine, error)
	Diagnose(ctx context.Context) engine.Report
}

// Session owns the conversation state of one user: history, the engine
// resolver and the last assembled context.
type Session struct {
	persona    string
	history    *History
	retrieval  Retrieval
	resolver   Resolver
	remote     domain.Engine
	sanitizer  *sanitize.Sanitizer
	summarizer domain.Summarizer
	params     domain.SamplingParams
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu                 sync.Mutex
	lastContext        []string
	capabilityReported bool
}

func NewSession(persona string, retrieval Retrieval, resolver Resolver, opts ...Option) *Session {
	s := &Session{
		persona:   persona,
		history:   NewHistory(persona),
		retrieval: retrieval,
		resolver:  resolver,
		params:    domain.DefaultSampling(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sanitizer == nil {
		s.sanitizer = sanitize.New(nil, 0, persona)
	}
	if s.summarizer == nil {
		s.summarizer = summarizer.NewFrequencySummarizer()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// History returns the conversation log.
func (s *Session) History() *History { return s.history }

// LastContext returns the snippets assembled for the most recent turn.
func (s *Session) LastContext() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lastContext...)
}

// Submit runs one chat turn. Errors are also reported on out; on any failure
// the history is left as it was.
func (s *Session) Submit(ctx context.Context, text string, out Output) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	started := time.Now()
	out.User(text)

	var snippets []string
	if s.retrieval != nil {
		snippets = s.retrieval.Context(text)
	}
	s.mu.Lock()
	s.lastContext = snippets
	s.mu.Unlock()
	req := domain.ChatRequest{Messages: s.buildMessages(text, snippets), Params: s.params}

	reply, path, err := s.run(ctx, req, out)
	if err != nil {
		s.metrics.Turn(path, "error", started)
		return err
	}

	final := s.sanitizer.Finalize(reply, snippets, s.redirect(snippets))
	out.Assistant(final)
	s.history.Append(
		domain.Message{Role: domain.RoleUser, Content: text},
		domain.Message{Role: domain.RoleAssistant, Content: final},
	)
	s.metrics.Turn(path, "ok", started)
	return nil
}

// run streams the reply from the remote server when configured, falling back
// to the local engine for this turn when the remote transport fails.
func (s *Session) run(ctx context.Context, req domain.ChatRequest, out Output) (string, string, error) {
	if s.remote != nil {
		reply, err := s.stream(ctx, s.remote, req, out)
		if err == nil {
			return reply, "remote", nil
		}
		if ctx.Err() != nil {
			out.Notice("Errore: " + err.Error())
			return "", "remote", err
		}
		s.logger.Warn("remote chat failed; falling back to local engine", zap.Error(err))
		s.metrics.RemoteFallback()
		out.Assistant("")
	}

	if s.resolver == nil {
		out.Notice(OfflineNotice)
		return "", "offline", engine.ErrUnavailable
	}
	eng, err := s.resolver.Resolve(ctx)
	if err != nil {
		out.Notice(s.offlineNotice(err))
		return "", "offline", err
	}
	reply, err := s.stream(ctx, eng, req, out)
	if err != nil {
		s.logger.Error("chat stream failed", zap.String("engine", eng.Name()), zap.Error(err))
		out.Notice("Errore: " + err.Error())
		return "", "local", err
	}
	return reply, "local", nil
}

func (s *Session) stream(ctx context.Context, eng domain.Engine, req domain.ChatRequest, out Output) (string, error) {
	st, err := eng.ChatStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer st.Close()
	var acc strings.Builder
	for {
		delta, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return acc.String(), nil
		}
		if err != nil {
			return acc.String(), fmt.Errorf("stream %s: %w", eng.Name(), err)
		}
		acc.WriteString(delta)
		out.Assistant(s.sanitizer.Stream(acc.String()))
	}
}

// buildMessages copies the history, splices the context into the system entry
// and appends the new user message.
func (s *Session) buildMessages(text string, snippets []string) []domain.Message {
	msgs := s.history.Messages()
	if len(snippets) > 0 {
		msgs[0].Content = assembler.SystemPrompt(s.persona, snippets)
	}
	return append(msgs, domain.Message{Role: domain.RoleUser, Content: text})
}

// redirect picks the sentence offered when the answer is too thin: the best
// sentence of the bio or mission section, else of the first baseline snippet.
func (s *Session) redirect(snippets []string) string {
	var sections domain.Sections
	if s.retrieval != nil {
		sections = s.retrieval.Sections()
	}
	var source string
	for _, group := range assembler.BaselineSections[:2] {
		for _, name := range group {
			if text := strings.TrimSpace(sections[name]); text != "" {
				source = text
				break
			}
		}
		if source != "" {
			break
		}
	}
	if source == "" {
		if baseline := assembler.Baseline(sections); len(baseline) > 0 {
			source = baseline[0]
		} else if len(snippets) > 0 {
			source = snippets[0]
		}
	}
	if source == "" {
		return ""
	}
	best, err := s.summarizer.Summarize(source, 1)
	if err != nil {
		return ""
	}
	return best
}

func (s *Session) offlineNotice(err error) string {
	if errors.Is(err, engine.ErrCapability) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.capabilityReported {
			s.capabilityReported = true
			return CapabilityNotice
		}
	}
	return OfflineNotice
}

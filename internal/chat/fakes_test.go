package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"profilechat/internal/domain"
	"profilechat/internal/engine"
	"profilechat/internal/service"
)

type recordingOutput struct {
	mu         sync.Mutex
	users      []string
	assistants []string
	notices    []string
	clears     int
}

func (o *recordingOutput) User(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users = append(o.users, text)
}

func (o *recordingOutput) Assistant(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.assistants = append(o.assistants, text)
}

func (o *recordingOutput) Notice(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, text)
}

func (o *recordingOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
}

func (o *recordingOutput) lastAssistant() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.assistants) == 0 {
		return ""
	}
	return o.assistants[len(o.assistants)-1]
}

type fakeEngine struct {
	name    string
	deltas  []string
	openErr error
	recvErr error

	mu       sync.Mutex
	requests []domain.ChatRequest
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) ChatStream(_ context.Context, req domain.ChatRequest) (domain.DeltaStream, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	if e.openErr != nil {
		return nil, e.openErr
	}
	return &fakeStream{deltas: append([]string(nil), e.deltas...), err: e.recvErr}, nil
}

func (e *fakeEngine) lastRequest() domain.ChatRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

type fakeStream struct {
	deltas []string
	err    error
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeResolver struct {
	eng    domain.Engine
	err    error
	report engine.Report
	calls  int
}

func (r *fakeResolver) Resolve(context.Context) (domain.Engine, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.eng, nil
}

func (r *fakeResolver) Diagnose(context.Context) engine.Report { return r.report }

type fakeRetrieval struct {
	snippets  []string
	sections  domain.Sections
	stats     service.Stats
	ingestErr error
	ingested  int
}

func (f *fakeRetrieval) Context(string) []string   { return f.snippets }
func (f *fakeRetrieval) Sections() domain.Sections { return f.sections }
func (f *fakeRetrieval) Stats() service.Stats      { return f.stats }

func (f *fakeRetrieval) Ingest(context.Context) (service.Stats, error) {
	f.ingested++
	if f.ingestErr != nil {
		return service.Stats{}, f.ingestErr
	}
	return f.stats, nil
}

var errBoom = errors.New("boom")

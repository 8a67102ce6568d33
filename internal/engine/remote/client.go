// Package remote streams chat completions from a server speaking the
// newline-delimited JSON chat_stream protocol.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"profilechat/internal/domain"
)

// ErrTransport wraps every failure talking to the remote server.
var ErrTransport = errors.New("remote transport failure")

const maxLineBytes = 1 << 20

// Request is the POST body of the chat_stream endpoint.
type Request struct {
	Messages    []domain.Message `json:"messages"`
	Temperature float32          `json:"temperature"`
	TopP        float32          `json:"top_p"`
	MaxTokens   int              `json:"max_tokens"`
}

// Record is one NDJSON line of the response.
type Record struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// Client talks to a remote chat_stream endpoint through a circuit breaker.
type Client struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// Config configures the remote client.
type Config struct {
	Endpoint string
	// ConnectTimeout bounds the wait for response headers.
	ConnectTimeout time.Duration
	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewClient(cfg Config) *Client {
	t := cfg.ConnectTimeout
	if t == 0 {
		t = 10 * time.Second
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	open := cfg.OpenTimeout
	if open == 0 {
		open = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		client: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: t,
		}},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "remote-chat",
			MaxRequests: 1,
			Timeout:     open,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		}),
	}
}

// Name returns the identifier of this engine.
func (c *Client) Name() string { return "remote:" + c.endpoint }

// ChatStream posts the conversation and returns the streamed deltas.
func (c *Client) ChatStream(ctx context.Context, req domain.ChatRequest) (domain.DeltaStream, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.open(ctx, req)
	})
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return out.(*ndjsonStream), nil
}

func (c *Client) open(ctx context.Context, req domain.ChatRequest) (*ndjsonStream, error) {
	body, err := json.Marshal(Request{
		Messages:    req.Messages,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		MaxTokens:   req.Params.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/x-ndjson")
	resp, err := c.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: chat_stream returned %s", ErrTransport, resp.Status)
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &ndjsonStream{body: resp.Body, scanner: sc}, nil
}

type ndjsonStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// Recv returns the next non-empty delta, or io.EOF after the done record.
func (s *ndjsonStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return "", fmt.Errorf("%w: malformed record: %w", ErrTransport, err)
		}
		if rec.Error != "" {
			return "", fmt.Errorf("%w: server error: %s", ErrTransport, rec.Error)
		}
		if rec.Done {
			s.done = true
			return "", io.EOF
		}
		if rec.Delta != "" {
			return rec.Delta, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	// a server closing without a done record still ends the stream
	s.done = true
	return "", io.EOF
}

func (s *ndjsonStream) Close() error { return s.body.Close() }

package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"profilechat/internal/domain"
)

// Engine streams chat completions from an OpenAI-compatible runtime.
type Engine struct {
	model      string
	client     *goopenai.Client
	maxRetries int
}

// Config configures the OpenAI-compatible chat engine.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// ConnectTimeout bounds connection setup and response headers; streams are
	// bounded by the request context.
	ConnectTimeout time.Duration
	MaxRetries     int
}

// NewEngine creates a streaming chat engine. The API key is optional so that
// local runtimes without authentication work.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("openai engine: base url required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai engine: model required")
	}
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	t := cfg.ConnectTimeout
	if t == 0 {
		t = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	occ := goopenai.DefaultConfig(key)
	occ.BaseURL = cfg.BaseURL
	occ.HTTPClient = &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: t,
	}}
	return &Engine{
		model:      cfg.Model,
		client:     goopenai.NewClientWithConfig(occ),
		maxRetries: retries,
	}, nil
}

// Name returns the identifier of this engine.
func (e *Engine) Name() string { return "openai:" + e.model }

// ChatStream opens a streamed completion, retrying rate limits and server errors.
func (e *Engine) ChatStream(ctx context.Context, req domain.ChatRequest) (domain.DeltaStream, error) {
	msgs := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	temperature := req.Params.Temperature
	if temperature == 0 {
		// go-openai omits a zero temperature, which servers read as their default
		temperature = math.SmallestNonzeroFloat32
	}
	creq := goopenai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    msgs,
		Temperature: temperature,
		TopP:        req.Params.TopP,
		MaxTokens:   req.Params.MaxTokens,
		Stream:      true,
	}
	for attempt := 0; ; attempt++ {
		stream, err := e.client.CreateChatCompletionStream(ctx, creq)
		if err == nil {
			return &deltaStream{stream: stream}, nil
		}
		if attempt >= e.maxRetries || !retryable(err) {
			return nil, fmt.Errorf("openai chat stream: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay(attempt)):
		}
	}
}

type deltaStream struct {
	stream *goopenai.ChatCompletionStream
}

func (s *deltaStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *deltaStream) Close() error { return s.stream.Close() }

func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

package domain

import (
	"context"
	"io"
)

// Document is the profile text loaded from a source path.
type Document struct {
	Path    string
	Content string
}

// Chunk is a paragraph of the profile used for indexing.
type Chunk struct {
	ID    string
	Text  string
	Index int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Sections maps a normalized section heading to its text.
type Sections map[string]string

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SamplingParams are the generation settings sent with every chat request.
type SamplingParams struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// DefaultSampling returns the low-temperature, bounded-length settings used for chat turns.
func DefaultSampling() SamplingParams {
	return SamplingParams{Temperature: 0.2, TopP: 0.9, MaxTokens: 256}
}

// ChatRequest is the input of a streamed chat completion.
type ChatRequest struct {
	Messages []Message
	Params   SamplingParams
}

// DeltaStream yields text fragments of a streamed completion.
// Recv returns io.EOF once the stream is complete.
type DeltaStream interface {
	Recv() (string, error)
	io.Closer
}

// Engine is an inference backend producing streamed chat completions.
type Engine interface {
	Name() string
	ChatStream(ctx context.Context, req ChatRequest) (DeltaStream, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilechat/internal/domain"
)

func collect(t *testing.T, st domain.DeltaStream) (string, error) {
	t.Helper()
	defer st.Close()
	var out string
	for {
		d, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out += d
	}
}

func TestChatStreamNDJSON(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, "{\"delta\":\"Mario \"}\n\n{\"delta\":\"usa Go.\"}\n{\"done\":true}\n{\"delta\":\"ignored\"}\n")
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL + "/chat_stream"})
	st, err := c.ChatStream(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleSystem, Content: "persona"}, {Role: domain.RoleUser, Content: "ciao"}},
		Params:   domain.DefaultSampling(),
	})
	require.NoError(t, err)
	text, err := collect(t, st)
	require.NoError(t, err)
	assert.Equal(t, "Mario usa Go.", text)

	assert.Len(t, got.Messages, 2)
	assert.Equal(t, float32(0.2), got.Temperature)
	assert.Equal(t, float32(0.9), got.TopP)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, "remote:"+srv.URL+"/chat_stream", c.Name())
}

func TestChatStreamServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"engine-not-loaded"}`)
	}))
	defer srv.Close()

	_, err := NewClient(Config{Endpoint: srv.URL}).ChatStream(context.Background(), domain.ChatRequest{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestChatStreamErrorRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{\"delta\":\"parz\"}\n{\"error\":\"boom\"}\n")
	}))
	defer srv.Close()

	st, err := NewClient(Config{Endpoint: srv.URL}).ChatStream(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	text, err := collect(t, st)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "parz", text)
}

func TestChatStreamMalformedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json\n")
	}))
	defer srv.Close()

	st, err := NewClient(Config{Endpoint: srv.URL}).ChatStream(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	_, err = collect(t, st)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestChatStreamWithoutDoneEnds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{\"delta\":\"ciao\"}\n")
	}))
	defer srv.Close()

	st, err := NewClient(Config{Endpoint: srv.URL}).ChatStream(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	text, err := collect(t, st)
	require.NoError(t, err)
	assert.Equal(t, "ciao", text)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute})
	for i := 0; i < 4; i++ {
		_, err := c.ChatStream(context.Background(), domain.ChatRequest{})
		assert.ErrorIs(t, err, ErrTransport)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatStreamConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{Endpoint: url}).ChatStream(context.Background(), domain.ChatRequest{})
	assert.ErrorIs(t, err, ErrTransport)
}

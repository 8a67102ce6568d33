// Package server exposes a loaded engine over HTTP with the chat_stream NDJSON protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"profilechat/internal/domain"
	"profilechat/internal/engine/remote"
	"profilechat/internal/metrics"
)

const errEngineNotLoaded = "engine-not-loaded"

// Backend creates the engine served by chat_stream.
type Backend interface {
	Resolve(ctx context.Context) (domain.Engine, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr string
	// ModelID is reported by /health; the engine name is used when empty.
	ModelID string
}

// Server serves /health, /chat_stream and /metrics.
type Server struct {
	cfg      Config
	backend  Backend
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	mu     sync.RWMutex
	engine domain.Engine
}

// streamRequest mirrors remote.Request with optional sampling fields.
type streamRequest struct {
	Messages    []domain.Message `json:"messages"`
	Temperature *float32         `json:"temperature"`
	TopP        *float32         `json:"top_p"`
	MaxTokens   *int             `json:"max_tokens"`
}

func New(cfg Config, backend Backend, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{cfg: cfg, backend: backend, metrics: m, gatherer: gatherer, logger: logger}
}

// Load resolves the engine. On failure the server still starts and chat_stream
// answers engine-not-loaded.
func (s *Server) Load(ctx context.Context) error {
	eng, err := s.backend.Resolve(ctx)
	if err != nil {
		s.logger.Error("engine load failed", zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
	s.logger.Info("engine loaded", zap.String("engine", eng.Name()))
	return nil
}

func (s *Server) loaded() domain.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, cors)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/chat_stream", s.handleChatStream).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	model := s.cfg.ModelID
	if eng := s.loaded(); model == "" && eng != nil {
		model = eng.Name()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "model": model})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	logger := s.logger.With(zap.String("request_id", w.Header().Get("X-Request-ID")))
	eng := s.loaded()
	if eng == nil {
		s.metrics.StreamRequest("not_loaded")
		writeJSON(w, http.StatusInternalServerError, remote.Record{Error: errEngineNotLoaded})
		return
	}
	var body streamRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		s.metrics.StreamRequest("bad_request")
		writeJSON(w, http.StatusBadRequest, remote.Record{Error: "invalid request body"})
		return
	}
	req := domain.ChatRequest{Messages: body.Messages, Params: domain.DefaultSampling()}
	if body.Temperature != nil {
		req.Params.Temperature = *body.Temperature
	}
	if body.TopP != nil {
		req.Params.TopP = *body.TopP
	}
	if body.MaxTokens != nil {
		req.Params.MaxTokens = *body.MaxTokens
	}

	stream, err := eng.ChatStream(r.Context(), req)
	if err != nil {
		logger.Error("chat stream failed to open", zap.Error(err))
		s.metrics.StreamRequest("error")
		writeJSON(w, http.StatusBadGateway, remote.Record{Error: err.Error()})
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(rec remote.Record) error {
		if err := enc.Encode(rec); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	deltas := 0
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("chat stream aborted", zap.Int("deltas", deltas), zap.Error(err))
			s.metrics.StreamRequest("aborted")
			_ = emit(remote.Record{Error: err.Error()})
			return
		}
		if delta == "" {
			continue
		}
		if err := emit(remote.Record{Delta: delta}); err != nil {
			logger.Debug("client went away", zap.Error(err))
			s.metrics.StreamRequest("client_gone")
			return
		}
		deltas++
	}
	_ = emit(remote.Record{Done: true})
	s.metrics.StreamRequest("ok")
	logger.Debug("chat stream done", zap.Int("deltas", deltas))
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		s.logger.Debug("request", zap.String("request_id", id), zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

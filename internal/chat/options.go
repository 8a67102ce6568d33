package chat

import (
	"go.uber.org/zap"

	"profilechat/internal/domain"
	"profilechat/internal/metrics"
	"profilechat/internal/sanitize"
)

type Option func(*Session)

// WithRemote sets the remote chat_stream engine tried before the local one.
func WithRemote(remote domain.Engine) Option {
	return func(s *Session) {
		s.remote = remote
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

func WithSampling(params domain.SamplingParams) Option {
	return func(s *Session) {
		s.params = params
	}
}

func WithSanitizer(sz *sanitize.Sanitizer) Option {
	return func(s *Session) {
		s.sanitizer = sz
	}
}

func WithSummarizer(sum domain.Summarizer) Option {
	return func(s *Session) {
		s.summarizer = sum
	}
}

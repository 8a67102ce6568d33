package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"profilechat/internal/assembler"
	"profilechat/internal/cache"
	"profilechat/internal/domain"
	"profilechat/internal/embedding/tfidf"
	"profilechat/internal/metrics"
	"profilechat/internal/router"
	"profilechat/internal/vectorstore"
)

// Fetcher loads the current profile document.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Document, error)
}

// Stats describes the active index.
type Stats struct {
	Source    string
	Chunks    int
	Terms     int
	Sections  []string
	FromCache bool
}

// ProfileService owns the profile index: it restores it from cache, re-indexes
// when the source changes and answers retrieval queries.
type ProfileService struct {
	fetcher   Fetcher
	indexer   *tfidf.Indexer
	store     vectorstore.Storage
	cache     cache.Store
	router    *router.Router
	assembler *assembler.Assembler
	logger    *zap.Logger
	metrics   *metrics.Metrics

	source    string
	fromCache bool
}

func NewProfileService(fetcher Fetcher, indexer *tfidf.Indexer, store vectorstore.Storage, c cache.Store, r *router.Router, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if r == nil {
		r = router.New(nil)
	}
	return &ProfileService{
		fetcher:   fetcher,
		indexer:   indexer,
		store:     store,
		cache:     c,
		router:    r,
		assembler: assembler.New(store, r),
		logger:    logger,
	}
}

// SetMetrics enables re-index counting.
func (s *ProfileService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Start activates the cached index, then refreshes it from the source when the
// document changed. A failed fetch leaves the cached index active.
func (s *ProfileService) Start(ctx context.Context) error {
	cachedRaw, err := s.restore(ctx)
	if err != nil {
		s.logger.Warn("cached index unusable", zap.Error(err))
	}
	doc, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.logger.Warn("profile fetch failed; retrieval keeps the previous index", zap.Error(err))
		return nil
	}
	s.source = doc.Path
	if s.store.Snapshot() != nil && doc.Content == cachedRaw {
		s.logger.Debug("profile unchanged; cached index kept", zap.String("source", doc.Path))
		return nil
	}
	return s.reindex(ctx, doc)
}

// Ingest forces a fetch and full re-index of the source document.
func (s *ProfileService) Ingest(ctx context.Context) (Stats, error) {
	doc, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.logger.Warn("profile fetch failed", zap.Error(err))
		return s.Stats(), fmt.Errorf("ingest: %w", err)
	}
	s.source = doc.Path
	if err := s.reindex(ctx, doc); err != nil {
		return s.Stats(), err
	}
	return s.Stats(), nil
}

func (s *ProfileService) reindex(ctx context.Context, doc domain.Document) error {
	snap, err := s.indexer.Index(doc.Content)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.Path, err)
	}
	s.store.Load(snap)
	s.fromCache = false
	s.metrics.Reindex()
	s.logger.Info("profile indexed",
		zap.String("source", doc.Path),
		zap.Int("chunks", len(snap.Chunks)),
		zap.Int("sections", len(snap.Sections)))
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	// The raw text is the validity key for the cached index, so it is written
	// only after the index it describes.
	if err := s.cache.Set(ctx, cache.KeyIndex, string(data)); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", cache.KeyIndex), zap.Error(err))
		return nil
	}
	if err := s.cache.Set(ctx, cache.KeyRaw, doc.Content); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", cache.KeyRaw), zap.Error(err))
		// an index paired with an older raw text must not be restored
		if err := s.cache.Set(ctx, cache.KeyIndex, ""); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

// restore loads the cached snapshot into the store and returns the cached raw text.
func (s *ProfileService) restore(ctx context.Context) (string, error) {
	raw, ok, err := s.cache.Get(ctx, cache.KeyRaw)
	if err != nil || !ok {
		return "", err
	}
	encoded, ok, err := s.cache.Get(ctx, cache.KeyIndex)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("cached document has no index")
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(encoded), &snap); err != nil {
		return "", fmt.Errorf("decode cached snapshot: %w", err)
	}
	s.store.Load(&snap)
	s.fromCache = true
	s.logger.Debug("cached index restored", zap.Int("chunks", len(snap.Chunks)))
	return raw, nil
}

// Query returns the topK chunks most similar to the query.
func (s *ProfileService) Query(query string, topK int) []domain.SearchResult {
	return s.store.Search(query, topK)
}

// Route returns the section texts selected by the keyword router.
func (s *ProfileService) Route(query string) []string {
	return s.router.Route(query, s.store.Sections())
}

// Context returns the bounded context snippets for a question.
func (s *ProfileService) Context(query string) []string {
	if s.store.Snapshot() == nil {
		return nil
	}
	return s.assembler.Snippets(query)
}

// Sections returns the section map of the active index.
func (s *ProfileService) Sections() domain.Sections {
	return s.store.Sections()
}

// Stats summarizes the active index.
func (s *ProfileService) Stats() Stats {
	st := Stats{Source: s.source, FromCache: s.fromCache}
	snap := s.store.Snapshot()
	if snap == nil {
		return st
	}
	st.Chunks = len(snap.Chunks)
	st.Terms = len(snap.IDF)
	for name := range snap.Sections {
		st.Sections = append(st.Sections, name)
	}
	sort.Strings(st.Sections)
	return st
}

package memory

import (
	"sort"
	"sync"

	"profilechat/internal/domain"
	"profilechat/internal/embedding/tfidf"
)

// DefaultTopK is the number of results returned when k is not positive.
const DefaultTopK = 6

// Storage is an in-memory sparse vector store using brute-force cosine similarity.
// It holds exactly one snapshot; Load replaces it as a whole.
type Storage struct {
	mu       sync.RWMutex
	snapshot *domain.Snapshot
}

func NewStorage() *Storage { return &Storage{} }

// Load activates a snapshot. A nil snapshot clears the store.
func (s *Storage) Load(snapshot *domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// Snapshot returns the active snapshot, or nil when nothing is loaded.
func (s *Storage) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Sections returns the section map of the active snapshot.
func (s *Storage) Sections() domain.Sections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	return s.snapshot.Sections
}

// Search scores every chunk against the query and returns at most topK results
// with a positive score, best first. Ties keep source order.
func (s *Storage) Search(query string, topK int) []domain.SearchResult {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap.Empty() {
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	qvec := tfidf.Weigh(tfidf.TermCounts(tfidf.Tokenize(query)), snap.IDF)
	if len(qvec) == 0 {
		return nil
	}
	qnorm := tfidf.Norm(qvec)
	results := make([]domain.SearchResult, 0, len(snap.Chunks))
	for i, ch := range snap.Chunks {
		score := tfidf.Cosine(qvec, qnorm, snap.Vectors[i], snap.Norms[i])
		if score > 0 {
			results = append(results, domain.SearchResult{Chunk: ch, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

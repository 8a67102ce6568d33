package vectorstore

import "profilechat/internal/domain"

// Storage holds one index snapshot and supports similarity search over it.
type Storage interface {
	Load(snapshot *domain.Snapshot)
	Snapshot() *domain.Snapshot
	Sections() domain.Sections
	Search(query string, topK int) []domain.SearchResult
}

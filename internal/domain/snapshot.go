package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// SparseVector maps a token to its positive TF-IDF weight.
type SparseVector map[string]float64

// Snapshot is the complete derived index state for one document.
// IDF, Vectors and Norms are always computed from the same Chunks.
type Snapshot struct {
	Chunks   []Chunk
	IDF      map[string]float64
	Vectors  []SparseVector
	Norms    []float64
	Sections Sections
}

// ChunkIDs returns the chunk ids in source order.
func (s *Snapshot) ChunkIDs() []string {
	ids := make([]string, len(s.Chunks))
	for i, c := range s.Chunks {
		ids[i] = c.ID
	}
	return ids
}

// Empty reports whether the snapshot holds no chunks.
func (s *Snapshot) Empty() bool { return s == nil || len(s.Chunks) == 0 }

type weightPair struct {
	Term   string
	Weight float64
}

func (p weightPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Term, p.Weight})
}

func (p *weightPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("weight pair must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Term); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Weight)
}

type snapshotJSON struct {
	Chunks   []string       `json:"chunks"`
	ChunkIDs []string       `json:"chunkIds"`
	IDF      []weightPair   `json:"idf"`
	Vectors  [][]weightPair `json:"vectors"`
	Norms    []float64      `json:"norms"`
	Sections Sections       `json:"sections"`
}

func toPairs(m map[string]float64) []weightPair {
	pairs := make([]weightPair, 0, len(m))
	for term, w := range m {
		pairs = append(pairs, weightPair{Term: term, Weight: w})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Term < pairs[j].Term })
	return pairs
}

func fromPairs(pairs []weightPair) map[string]float64 {
	m := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		m[p.Term] = p.Weight
	}
	return m
}

// MarshalJSON encodes the snapshot with weight maps as sorted [term, weight] lists.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Chunks:   make([]string, len(s.Chunks)),
		ChunkIDs: s.ChunkIDs(),
		IDF:      toPairs(s.IDF),
		Vectors:  make([][]weightPair, len(s.Vectors)),
		Norms:    s.Norms,
		Sections: s.Sections,
	}
	for i, c := range s.Chunks {
		out.Chunks[i] = c.Text
	}
	for i, v := range s.Vectors {
		out.Vectors[i] = toPairs(v)
	}
	if out.Norms == nil {
		out.Norms = []float64{}
	}
	if out.Sections == nil {
		out.Sections = Sections{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a snapshot written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	n := len(in.Chunks)
	if len(in.ChunkIDs) != n || len(in.Vectors) != n || len(in.Norms) != n {
		return errors.New("snapshot arrays have mismatched lengths")
	}
	s.Chunks = make([]Chunk, n)
	s.Vectors = make([]SparseVector, n)
	for i := 0; i < n; i++ {
		s.Chunks[i] = Chunk{ID: in.ChunkIDs[i], Text: in.Chunks[i], Index: i}
		s.Vectors[i] = SparseVector(fromPairs(in.Vectors[i]))
	}
	s.IDF = fromPairs(in.IDF)
	s.Norms = in.Norms
	s.Sections = in.Sections
	if s.Sections == nil {
		s.Sections = Sections{}
	}
	return nil
}

package tfidf

import (
	"math"
	"sort"

	"profilechat/internal/domain"
)

// SectionParser extracts named sections from a raw document.
type SectionParser func(raw string) domain.Sections

// Indexer builds TF-IDF snapshots over the chunks of a single document.
type Indexer struct {
	chunker  domain.Chunker
	sections SectionParser
}

// NewIndexer creates an indexer using the given chunker and section parser.
// A nil parser yields an empty section map.
func NewIndexer(chunker domain.Chunker, sections SectionParser) *Indexer {
	return &Indexer{chunker: chunker, sections: sections}
}

// Index chunks the raw text and computes the IDF table, per-chunk vectors and norms.
// The same input always yields an identical snapshot.
func (x *Indexer) Index(raw string) (*domain.Snapshot, error) {
	chunks, err := x.chunker.Chunk(domain.Document{Content: raw})
	if err != nil {
		return nil, err
	}
	counts := make([]map[string]int, len(chunks))
	df := make(map[string]int)
	for i, ch := range chunks {
		tc := TermCounts(Tokenize(ch.Text))
		counts[i] = tc
		for term := range tc {
			df[term]++
		}
	}
	N := float64(len(chunks))
	idf := make(map[string]float64, len(df))
	for term, n := range df {
		idf[term] = math.Log(1 + N/(1+float64(n)))
	}
	vectors := make([]domain.SparseVector, len(chunks))
	norms := make([]float64, len(chunks))
	for i, tc := range counts {
		vectors[i] = Weigh(tc, idf)
		norms[i] = Norm(vectors[i])
	}
	sections := domain.Sections{}
	if x.sections != nil {
		sections = x.sections(raw)
	}
	return &domain.Snapshot{
		Chunks:   chunks,
		IDF:      idf,
		Vectors:  vectors,
		Norms:    norms,
		Sections: sections,
	}, nil
}

// TermCounts counts occurrences of each token.
func TermCounts(tokens []string) map[string]int {
	tc := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tc[t]++
	}
	return tc
}

// Weigh computes (1+ln(count))*idf per term and keeps only positive weights.
// Terms missing from idf weigh zero and are dropped.
func Weigh(counts map[string]int, idf map[string]float64) domain.SparseVector {
	vec := make(domain.SparseVector, len(counts))
	for term, c := range counts {
		w := (1 + math.Log(float64(c))) * idf[term]
		if w > 0 {
			vec[term] = w
		}
	}
	return vec
}

// Norm is the L2 norm of vec, or 1 for an empty vector.
func Norm(vec domain.SparseVector) float64 {
	sum := 0.0
	for _, term := range sortedTerms(vec) {
		w := vec[term]
		sum += w * w
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return 1
	}
	return n
}

// Cosine returns the dot product over shared terms divided by both norms.
func Cosine(a domain.SparseVector, normA float64, b domain.SparseVector, normB float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	dot := 0.0
	for _, term := range sortedTerms(a) {
		if wb, ok := b[term]; ok {
			dot += a[term] * wb
		}
	}
	return dot / (normA * normB)
}

// sortedTerms fixes the summation order so float results are reproducible.
func sortedTerms(vec domain.SparseVector) []string {
	terms := make([]string, 0, len(vec))
	for term := range vec {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

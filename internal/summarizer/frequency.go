package summarizer

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"profilechat/internal/embedding/tfidf"
)

// Span is the byte range [Start, End) of one sentence within its text.
type Span struct {
	Start, End int
}

// SentenceSpans locates sentences without surrounding whitespace. A sentence
// ends at '.', '!' or '?' followed by whitespace or end of text, or at a line
// break, so "mario.rossi@example.com" and "Go 1.22" stay whole.
func SentenceSpans(text string) []Span {
	var spans []Span
	start := -1
	for i, r := range text {
		if start < 0 {
			if unicode.IsSpace(r) {
				continue
			}
			start = i
		}
		switch r {
		case '\n':
			spans = appendSpan(spans, text, start, i)
			start = -1
		case '.', '!', '?':
			if next := i + 1; next == len(text) || spaceAt(text, next) {
				spans = append(spans, Span{Start: start, End: next})
				start = -1
			}
		}
	}
	if start >= 0 {
		spans = appendSpan(spans, text, start, len(text))
	}
	return spans
}

func appendSpan(spans []Span, text string, start, end int) []Span {
	end = start + len(strings.TrimRightFunc(text[start:end], unicode.IsSpace))
	if end > start {
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}

func spaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

// Sentences splits text into trimmed, non-empty sentences.
func Sentences(text string) []string {
	spans := SentenceSpans(text)
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, text[sp.Start:sp.End])
	}
	return out
}

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Summarize returns the maxSentences best sentences in their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 1
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = tfidf.Tokenize(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		sscore := 0.0
		for _, tok := range tokens[i] {
			sscore += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(tokens[i])); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

package chunker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"profilechat/internal/domain"
)

// DefaultMinChars is the shortest paragraph kept as a chunk.
const DefaultMinChars = 30

// ParagraphChunker splits text on blank lines and keeps paragraphs long enough to be useful.
type ParagraphChunker struct {
	minChars int
	splitter *regexp.Regexp
}

func NewParagraphChunker(minChars int) *ParagraphChunker {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &ParagraphChunker{
		minChars: minChars,
		splitter: regexp.MustCompile(`\r?\n(?:[ \t]*\r?\n)+`),
	}
}

// Chunk returns paragraphs in source order with positional ids p0, p1, ...
func (c *ParagraphChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	paragraphs := c.splitter.Split(document.Content, -1)
	var chunks []domain.Chunk
	for _, p := range paragraphs {
		text := strings.TrimSpace(p)
		if utf8.RuneCountInString(text) < c.minChars {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:    "p" + strconv.Itoa(idx),
			Text:  text,
			Index: idx,
		})
	}
	return chunks, nil
}

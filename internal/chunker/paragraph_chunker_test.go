package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilechat/internal/domain"
)

func TestParagraphChunkerSplitsOnBlankLines(t *testing.T) {
	doc := domain.Document{Content: "Primo paragrafo abbastanza lungo da essere tenuto.\n\n" +
		"corto\n\n\n" +
		"Secondo paragrafo,\nsu due righe, anch'esso lungo.\r\n  \r\n" +
		"Terzo paragrafo dopo una riga di soli spazi."}
	chunks, err := NewParagraphChunker(0).Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "p0", chunks[0].ID)
	assert.Equal(t, "Primo paragrafo abbastanza lungo da essere tenuto.", chunks[0].Text)
	assert.Equal(t, "p1", chunks[1].ID)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "Secondo paragrafo,\nsu due righe, anch'esso lungo.", chunks[1].Text)
	assert.Equal(t, "p2", chunks[2].ID)
	assert.Equal(t, "Terzo paragrafo dopo una riga di soli spazi.", chunks[2].Text)
}

func TestParagraphChunkerMinLengthCountsRunes(t *testing.T) {
	// 30 runes, more bytes because of the accents
	text := "èèèèèèèèèèèèèèèèèèèèèèèèèèèèèè"
	chunks, err := NewParagraphChunker(30).Chunk(domain.Document{Content: text})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	chunks, err = NewParagraphChunker(31).Chunk(domain.Document{Content: text})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestParagraphChunkerEmpty(t *testing.T) {
	chunks, err := NewParagraphChunker(0).Chunk(domain.Document{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

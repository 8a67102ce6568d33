package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"profilechat/internal/domain"
)

func TestParseMarkdownHeadings(t *testing.T) {
	raw := "Intro senza titolo che viene ignorata.\n\n" +
		"# Bio\n\nSviluppatore backend a Torino.\n\n" +
		"## Competenze Tecniche ##\nGo, Kubernetes.\nPostgreSQL.\n\n" +
		"# Progetti\n\nMotore di ricerca."
	got := Parse(raw)
	assert.Equal(t, domain.Sections{
		"bio":                 "Sviluppatore backend a Torino.",
		"competenze tecniche": "Go, Kubernetes.\nPostgreSQL.",
		"progetti":            "Motore di ricerca.",
	}, got)
}

func TestParsePlainHeadingLines(t *testing.T) {
	raw := "Chi sono\n\nSono uno sviluppatore.\r\n\r\nContatti\n\nmario@example.com\n\nhttps://example.com"
	got := Parse(raw)
	assert.Equal(t, "Sono uno sviluppatore.", got["chi sono"])
	assert.Equal(t, "mario@example.com\n\nhttps://example.com", got["contatti"])
	assert.Len(t, got, 2)
}

func TestParseMergesRepeatedHeadings(t *testing.T) {
	got := Parse("# Progetti\n\nPrimo.\n\n# Progetti\n\nSecondo.")
	assert.Equal(t, "Primo.\n\nSecondo.", got["progetti"])
}

func TestParseSkipsEmptySections(t *testing.T) {
	got := Parse("# Vuota\n\n# Piena\n\nTesto.")
	assert.NotContains(t, got, "vuota")
	assert.Equal(t, "Testo.", got["piena"])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "mission e valori", Normalize("  **Mission   e Valori:** "))
}

func TestParseShortBodiesUnderPlainHeadings(t *testing.T) {
	raw := "Bio\n\nSono Michele, sviluppatore web appassionato\n\nCompetenze\n\nJavaScript, Python, Rust"
	assert.Equal(t, domain.Sections{
		"bio":        "Sono Michele, sviluppatore web appassionato",
		"competenze": "JavaScript, Python, Rust",
	}, Parse(raw))
}

func TestParseShortBodyUnderMarkdownHeading(t *testing.T) {
	got := Parse("# Competenze\n\nGo Kubernetes PostgreSQL\n\n# Progetti\n\nMotore di ricerca.")
	assert.Equal(t, domain.Sections{
		"competenze": "Go Kubernetes PostgreSQL",
		"progetti":   "Motore di ricerca.",
	}, got)
}

func TestParseColonHeadingAfterHeading(t *testing.T) {
	got := Parse("# Profilo\n\nContatti:\n\nmario@example.com")
	assert.Equal(t, domain.Sections{"contatti": "mario@example.com"}, got)
}

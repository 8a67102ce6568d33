// Package assembler builds the bounded context block injected into the system prompt.
package assembler

import (
	"fmt"
	"strings"

	"profilechat/internal/domain"
	"profilechat/internal/router"
)

const (
	MaxSnippets    = 6
	minSnippets    = 3
	baselineTarget = 4
	searchTopK     = 6
)

// BaselineSections lists, in preference order, the alias groups used when
// retrieval finds too little: bio, mission/values, skills, projects.
var BaselineSections = [][]string{
	{"bio", "chi sono", "about"},
	{"mission e valori", "mission", "valori", "values"},
	{"competenze tecniche", "competenze", "skills", "stack"},
	{"progetti", "projects"},
}

// Index is the retrieval surface the assembler reads from.
type Index interface {
	Search(query string, topK int) []domain.SearchResult
	Sections() domain.Sections
}

// Assembler merges router hits, retriever hits and baseline sections.
type Assembler struct {
	index  Index
	router *router.Router
}

func New(index Index, r *router.Router) *Assembler {
	if r == nil {
		r = router.New(nil)
	}
	return &Assembler{index: index, router: r}
}

// Snippets returns at most MaxSnippets distinct context texts for the query.
func (a *Assembler) Snippets(query string) []string {
	sections := a.index.Sections()
	var out []string
	seen := make(map[string]struct{})
	add := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	for _, text := range a.router.Route(query, sections) {
		add(text)
	}
	for _, r := range a.index.Search(query, searchTopK) {
		add(r.Chunk.Text)
	}
	if len(out) < minSnippets {
		for _, text := range Baseline(sections) {
			if len(out) >= baselineTarget {
				break
			}
			add(text)
		}
	}
	if len(out) > MaxSnippets {
		out = out[:MaxSnippets]
	}
	return out
}

// Baseline returns the first present section of each preferred group, in order.
func Baseline(sections domain.Sections) []string {
	var out []string
	for _, group := range BaselineSections {
		for _, name := range group {
			if text, ok := sections[name]; ok && strings.TrimSpace(text) != "" {
				out = append(out, text)
				break
			}
		}
	}
	return out
}

// SystemPrompt splices numbered context snippets into the persona instruction.
// Without snippets the persona is returned unchanged.
func SystemPrompt(persona string, snippets []string) string {
	if len(snippets) == 0 {
		return persona
	}
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nContesto:\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, s)
	}
	b.WriteString("\nRispondi usando solo le informazioni del contesto qui sopra. ")
	b.WriteString("Se il contesto non basta, dillo in modo neutro e suggerisci un argomento correlato del profilo.")
	return b.String()
}

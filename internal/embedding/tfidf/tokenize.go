package tfidf

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenRe = regexp.MustCompile(`[^a-z0-9àèéìíòóùú]+`)

// Tokenize lowercases and normalizes text, strips anything outside the token
// alphabet and drops stop words. Duplicates and order are preserved.
func Tokenize(text string) []string {
	lower := norm.NFC.String(strings.ToLower(text))
	cleaned := strings.TrimSpace(nonTokenRe.ReplaceAllString(lower, " "))
	if cleaned == "" {
		return nil
	}
	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, t := range fields {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FoldDiacritics lowercases text and removes combining marks ("perché" -> "perche").
func FoldDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}

// IsStopword reports whether the token is filtered by Tokenize.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

var stopwords = func() map[string]struct{} {
	words := []string{
		// italian
		"a", "ad", "al", "allo", "ai", "agli", "all", "alla", "alle", "con", "col", "coi", "da", "dal", "dallo",
		"dai", "dagli", "dall", "dalla", "dalle", "di", "del", "dello", "dei", "degli", "dell", "della", "delle",
		"in", "nel", "nello", "nei", "negli", "nell", "nella", "nelle", "su", "sul", "sullo", "sui", "sugli",
		"sull", "sulla", "sulle", "per", "tra", "fra", "il", "lo", "la", "i", "gli", "le", "l", "un", "uno",
		"una", "e", "ed", "o", "ma", "che", "chi", "cui", "non", "come", "se", "anche", "mi", "ti", "ci", "vi",
		"si", "ne", "io", "tu", "lui", "lei", "noi", "voi", "loro", "mio", "mia", "miei", "mie", "tuo", "tua",
		"tuoi", "tue", "suo", "sua", "suoi", "sue", "è", "sono", "sei", "siamo", "siete", "era", "ho", "hai",
		"ha", "abbiamo", "avete", "hanno", "questo", "questa", "questi", "queste", "quello", "quella", "quelli",
		"quelle", "più", "molto", "poi", "già", "qui", "lì", "dove", "quando", "cosa",
		// english
		"an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "on", "at", "by", "with",
		"as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from",
		"into", "about", "than", "so", "such", "can", "will", "just", "should", "now", "my", "your", "you", "me",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

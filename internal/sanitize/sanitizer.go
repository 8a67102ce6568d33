package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"profilechat/internal/embedding/tfidf"
	"profilechat/internal/summarizer"
)

const (
	DefaultMinChars = 40
	declineSentence = "Non ho informazioni sufficienti per rispondere con precisione su questo punto."
	redirectPrefix  = "Posso però dirti questo: "
)

var (
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
)

// Sanitizer applies the rules table to model output.
type Sanitizer struct {
	rules    []Rule
	minChars int
	persona  string
}

// New builds a sanitizer. persona is stripped verbatim wherever the model echoes it.
func New(rules []Rule, minChars int, persona string) *Sanitizer {
	if rules == nil {
		rules = DefaultRules()
	}
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Sanitizer{rules: rules, minChars: minChars, persona: strings.TrimSpace(persona)}
}

// MinChars is the shortest final answer accepted without a redirect.
func (s *Sanitizer) MinChars() int { return s.minChars }

// Stream cleans accumulated partial output for display. It only runs stream rules
// so that text is not dropped and reinstated as the stream grows.
func (s *Sanitizer) Stream(text string) string {
	text = s.stripPersona(text)
	for _, r := range s.rules {
		if r.Stream && r.Action == Strip {
			text = r.Pattern.ReplaceAllString(text, "")
		}
	}
	return strings.TrimLeft(text, " \t\n")
}

// Finalize runs every rule over the complete answer. Sentences hit by topic rules
// survive only when one of the context snippets mentions the same term.
// An answer shorter than MinChars gets a decline sentence, followed by redirect when given.
func (s *Sanitizer) Finalize(text string, context []string, redirect string) string {
	text = s.stripPersona(text)
	for _, r := range s.rules {
		if r.Action == Strip {
			text = r.Pattern.ReplaceAllString(text, "")
		}
	}
	ctx := tfidf.FoldDiacritics(strings.Join(context, "\n"))
	out := strings.TrimSpace(blankLinesRe.ReplaceAllString(s.dropSentences(text, ctx), "\n\n"))
	if utf8.RuneCountInString(out) >= s.minChars {
		return out
	}
	fallback := declineSentence
	if redirect = strings.TrimSpace(redirect); redirect != "" {
		fallback += " " + redirectPrefix + redirect
	}
	if out == "" {
		return fallback
	}
	return out + " " + fallback
}

// dropSentences cuts the spans of rejected sentences and leaves the rest of
// text byte for byte.
func (s *Sanitizer) dropSentences(text, foldedContext string) string {
	var b strings.Builder
	last := 0
	dropped := false
	for _, sp := range summarizer.SentenceSpans(text) {
		if !s.dropSentence(text[sp.Start:sp.End], foldedContext) {
			continue
		}
		b.WriteString(text[last:sp.Start])
		last = sp.End
		for last < len(text) && (text[last] == ' ' || text[last] == '\t') {
			last++
		}
		dropped = true
	}
	if !dropped {
		return text
	}
	b.WriteString(text[last:])
	return trailingSpaceRe.ReplaceAllString(b.String(), "\n")
}

func (s *Sanitizer) dropSentence(sent, foldedContext string) bool {
	for _, r := range s.rules {
		if r.Action != DropSentence {
			continue
		}
		loc := r.Pattern.FindStringIndex(sent)
		if loc == nil {
			continue
		}
		m := sent[loc[0]:loc[1]]
		if r.Topic && m != "" && strings.Contains(foldedContext, tfidf.FoldDiacritics(m)) {
			continue
		}
		return true
	}
	return false
}

func (s *Sanitizer) stripPersona(text string) string {
	if s.persona == "" {
		return text
	}
	return strings.ReplaceAll(text, s.persona, "")
}

// Package sanitize cleans model output while it streams and once it completes.
package sanitize

import (
	"fmt"
	"regexp"
)

// Action says what a rule does with a match.
type Action int

const (
	// Strip removes the matched text.
	Strip Action = iota
	// DropSentence removes every sentence containing a match.
	DropSentence
)

// Rule is one entry of the ordered rules table.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Action  Action
	// Stream rules also run on partial output while it streams.
	Stream bool
	// Topic rules keep the sentence when the assembled context mentions the matched term.
	Topic bool
}

// RuleSpec is the configuration form of a Rule.
type RuleSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Action  string `yaml:"action"`
	Stream  bool   `yaml:"stream"`
	Topic   bool   `yaml:"topic"`
}

// Compile turns configured specs into rules. Action is "strip" or "drop_sentence".
func Compile(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
		}
		var action Action
		switch spec.Action {
		case "strip", "":
			action = Strip
		case "drop_sentence":
			action = DropSentence
		default:
			return nil, fmt.Errorf("rule %q: unknown action %q", spec.Name, spec.Action)
		}
		rules = append(rules, Rule{Name: spec.Name, Pattern: re, Action: action, Stream: spec.Stream, Topic: spec.Topic})
	}
	return rules, nil
}

// DefaultRules returns the built-in table, in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "role-tag", Pattern: regexp.MustCompile(`(?im)^\s*\[(system|user|assistant|sistema)\]\s*`), Action: Strip, Stream: true},
		{Name: "role-prefix", Pattern: regexp.MustCompile(`(?im)^\s*(system|assistant|assistente|sistema)\s*:\s*`), Action: Strip, Stream: true},
		{Name: "context-header", Pattern: regexp.MustCompile(`(?im)^\s*contesto\s*:.*$`), Action: Strip, Stream: true},
		{Name: "context-marker", Pattern: regexp.MustCompile(`(?m)^\s*\[\d+\]\s*`), Action: Strip, Stream: true},
		{Name: "directive-echo", Pattern: regexp.MustCompile(`(?i)rispondi usando solo le informazioni[^.\n]*\.?`), Action: Strip, Stream: true},
		{Name: "lead-in", Pattern: regexp.MustCompile(`(?i)^\s*(certo|certamente|assolutamente|ottima domanda|bella domanda|sure|of course)\s*[!,.:]?\s*`), Action: Strip},
		{Name: "context-lead-in", Pattern: regexp.MustCompile(`(?i)^\s*((in base|secondo|stando)\s+(al|alle)\s+(contesto|informazioni)(\s+fornit[oei])?|dal contesto(\s+fornito)?)\s*[,:]?\s*`), Action: Strip},
		{Name: "disallowed-topic", Pattern: regexp.MustCompile(`(?i)\b(politic[a-z]*|religion[a-z]*|religios[a-z]*|salute|malatti[a-z]*|stipendi[a-z]*|salari[a-z]*|partito)\b`), Action: DropSentence, Topic: true},
		{Name: "self-reference", Pattern: regexp.MustCompile(`(?i)(sono (un|una|solo un|solo una) (modello|intelligenza artificiale|ia\b|assistente virtuale)|in quanto (modello|ia\b|intelligenza artificiale)|modello (linguistico|di linguaggio)|as an ai|i am an? (ai|language model))`), Action: DropSentence},
		{Name: "bare-dont-know", Pattern: regexp.MustCompile(`(?i)^\s*(non lo so|non so|non saprei|i don'?t know)\s*[.!]?\s*$`), Action: DropSentence},
	}
}

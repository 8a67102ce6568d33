// Package router maps a question to profile sections by keyword.
package router

import (
	"regexp"
	"strings"

	"profilechat/internal/domain"
	"profilechat/internal/embedding/tfidf"
)

// Route is one keyword group and the sections it points at.
type Route struct {
	Topic    string
	Keywords []string
	Sections []string
}

// DefaultRoutes covers identity, mission, skills, projects, experience, education and contacts.
var DefaultRoutes = []Route{
	{
		Topic:    "bio",
		Keywords: []string{"chi sei", "chi e", "presentati", "parlami di te", "bio", "who are you", "about"},
		Sections: []string{"bio", "chi sono", "about"},
	},
	{
		Topic:    "mission",
		Keywords: []string{"mission", "valori", "obiettiv", "visione", "cosa ti motiva", "values", "goal"},
		Sections: []string{"mission e valori", "mission", "valori", "values"},
	},
	{
		Topic:    "skills",
		Keywords: []string{"competenz", "skill", "stack", "tecnologi", "linguagg", "framework", "sai fare", "conosci"},
		Sections: []string{"competenze tecniche", "competenze", "skills", "stack"},
	},
	{
		Topic:    "projects",
		Keywords: []string{"progett", "project", "portfolio", "realizzat", "lavori"},
		Sections: []string{"progetti", "projects"},
	},
	{
		Topic:    "experience",
		Keywords: []string{"esperienz", "lavorat", "carriera", "azienda", "experience"},
		Sections: []string{"esperienza", "esperienze", "esperienza professionale", "experience"},
	},
	{
		Topic:    "education",
		Keywords: []string{"formazione", "studi", "studiat", "universit", "laurea", "scuola", "education", "degree"},
		Sections: []string{"formazione", "istruzione", "education"},
	},
	{
		Topic:    "contact",
		Keywords: []string{"contatt", "mail", "linkedin", "scriverti", "contact"},
		Sections: []string{"contatti", "contact", "contacts"},
	},
}

var spaceRe = regexp.MustCompile(`\s+`)

// Router matches normalized queries against a fixed route table.
type Router struct {
	routes []Route
}

// New creates a router; nil routes selects DefaultRoutes.
func New(routes []Route) *Router {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Router{routes: routes}
}

// Normalize lowercases, folds diacritics and collapses letter runs and whitespace.
func Normalize(query string) string {
	q := tfidf.FoldDiacritics(query)
	q = collapseRuns(q)
	return strings.TrimSpace(spaceRe.ReplaceAllString(q, " "))
}

// collapseRuns squeezes three or more repeats of the same a-z letter into one.
func collapseRuns(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); {
		j := i + 1
		for j < len(rs) && rs[j] == rs[i] {
			j++
		}
		n := j - i
		if rs[i] >= 'a' && rs[i] <= 'z' && n >= 3 {
			n = 1
		}
		for k := 0; k < n; k++ {
			b.WriteRune(rs[i])
		}
		i = j
	}
	return b.String()
}

// Topics returns the topics whose keywords occur in the query.
func (r *Router) Topics(query string) []string {
	q := Normalize(query)
	var topics []string
	for _, route := range r.routes {
		if matches(q, route.Keywords) {
			topics = append(topics, route.Topic)
		}
	}
	return topics
}

// Route returns the deduplicated texts of every section selected by a matching keyword group.
func (r *Router) Route(query string, sections domain.Sections) []string {
	if len(sections) == 0 {
		return nil
	}
	q := Normalize(query)
	seen := make(map[string]struct{})
	var out []string
	for _, route := range r.routes {
		if !matches(q, route.Keywords) {
			continue
		}
		for _, name := range route.Sections {
			text, ok := sections[name]
			if !ok || text == "" {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			out = append(out, text)
		}
	}
	return out
}

func matches(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Package sections splits a profile document into named sections by heading.
package sections

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"profilechat/internal/domain"
)

const maxHeadingChars = 48

var (
	markdownHeadingRe = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	spaceRe           = regexp.MustCompile(`\s+`)
)

// Parse returns a map from normalized heading to the text that follows it,
// up to the next heading. Headings are markdown "#" lines, or short lines
// standing alone in their paragraph without closing punctuation. A plain line
// right after a heading is that heading's body unless it ends with ':'.
// Text before the first heading is dropped.
func Parse(raw string) domain.Sections {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := domain.Sections{}
	current := ""
	var body []string
	flush := func() {
		if current == "" {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text == "" {
			return
		}
		if prev, ok := out[current]; ok {
			text = prev + "\n\n" + text
		}
		out[current] = text
	}
	afterHeading := false
	for i, line := range lines {
		if name, ok := heading(lines, i, afterHeading); ok {
			flush()
			current = name
			body = body[:0]
			afterHeading = true
			continue
		}
		if strings.TrimSpace(line) != "" {
			afterHeading = false
		}
		body = append(body, line)
	}
	flush()
	return out
}

// Normalize lowercases a heading and collapses internal whitespace.
func Normalize(name string) string {
	name = strings.Trim(strings.TrimSpace(name), ":*_ ")
	return spaceRe.ReplaceAllString(strings.ToLower(name), " ")
}

func heading(lines []string, i int, afterHeading bool) (string, bool) {
	line := strings.TrimSpace(lines[i])
	if line == "" {
		return "", false
	}
	if m := markdownHeadingRe.FindStringSubmatch(line); m != nil {
		return Normalize(m[1]), true
	}
	if utf8.RuneCountInString(line) > maxHeadingChars {
		return "", false
	}
	if strings.ContainsAny(line[len(line)-1:], ".,;!?") || strings.Contains(line, "@") || strings.Contains(line, "://") {
		return "", false
	}
	blankBefore := i == 0 || strings.TrimSpace(lines[i-1]) == ""
	blankAfter := i == len(lines)-1 || strings.TrimSpace(lines[i+1]) == ""
	if !blankBefore || !blankAfter || !textFollows(lines, i) {
		return "", false
	}
	if afterHeading && !strings.HasSuffix(line, ":") {
		return "", false
	}
	return Normalize(line), true
}

func textFollows(lines []string, i int) bool {
	for _, l := range lines[i+1:] {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

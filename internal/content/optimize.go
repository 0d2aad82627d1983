// Package content shrinks lesson text to fit a model's context budget.
package content

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	headingRegex = regexp.MustCompile(`(?m)^#{2,3}[ \t]`)
	boldRegex    = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
)

const (
	sectionSeparator = "\n\n"
	conceptsPrefix   = "\n\nKey concepts: "
)

type section struct {
	text  string
	bold  int
	runes int
}

// Optimize returns content unchanged when it fits in maxLength runes.
// Longer content is reduced to its most information-dense sections when it
// has ## or ### headings, or to a prefix plus a list of its bold key
// concepts otherwise. The result never exceeds maxLength runes.
// A non-positive maxLength disables optimization.
func Optimize(content string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(content) <= maxLength {
		return content
	}

	if sections := splitSections(content); len(sections) > 0 {
		return selectSections(content, sections, maxLength)
	}
	return withKeyConcepts(content, maxLength)
}

// splitSections cuts content at every heading line. Text before the first
// heading forms its own section. Empty sections are dropped.
func splitSections(content string) []section {
	locs := headingRegex.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return nil
	}

	var bounds []int
	if locs[0][0] > 0 {
		bounds = append(bounds, 0)
	}
	for _, l := range locs {
		bounds = append(bounds, l[0])
	}
	bounds = append(bounds, len(content))

	var sections []section
	for i := 0; i < len(bounds)-1; i++ {
		text := strings.TrimSpace(content[bounds[i]:bounds[i+1]])
		if text == "" {
			continue
		}
		sections = append(sections, section{
			text:  text,
			bold:  len(boldRegex.FindAllStringIndex(text, -1)),
			runes: utf8.RuneCountInString(text),
		})
	}
	return sections
}

func selectSections(content string, sections []section, maxLength int) string {
	ranked := make([]section, len(sections))
	copy(ranked, sections)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].bold != ranked[j].bold {
			return ranked[i].bold > ranked[j].bold
		}
		return ranked[i].runes > ranked[j].runes
	})

	sepRunes := utf8.RuneCountInString(sectionSeparator)
	var picked []string
	used := 0
	for _, s := range ranked {
		cost := s.runes
		if len(picked) > 0 {
			cost += sepRunes
		}
		if used+cost > maxLength {
			break
		}
		picked = append(picked, s.text)
		used += cost
	}

	if used < maxLength/2 {
		return truncate(content, maxLength)
	}
	return strings.Join(picked, sectionSeparator)
}

func withKeyConcepts(content string, maxLength int) string {
	head := truncate(content, maxLength*8/10)
	concepts := KeyConcepts(content)
	if len(concepts) == 0 {
		return head
	}

	budget := maxLength - utf8.RuneCountInString(head) - utf8.RuneCountInString(conceptsPrefix)
	var kept []string
	used := 0
	for _, c := range concepts {
		cost := utf8.RuneCountInString(c)
		if len(kept) > 0 {
			cost += 2 // ", "
		}
		if used+cost > budget {
			break
		}
		kept = append(kept, c)
		used += cost
	}
	if len(kept) == 0 {
		return head
	}
	return head + conceptsPrefix + strings.Join(kept, ", ")
}

// KeyConcepts returns the distinct **bold** spans of content in order of
// first appearance.
func KeyConcepts(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range boldRegex.FindAllStringSubmatch(content, -1) {
		c := strings.TrimSpace(m[1])
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

package publish

import (
	"regexp"
	"strings"
	"unicode"

	"analysis-bot/internal/usecase/content"
)

var numbering = regexp.MustCompile(`^\d+/\d+\s*`)

// IsThread решает, публиковать ли текст тредом. Текст считается тредом, если
// перед первым '/' в пределах трёх символов есть цифра, если в нём больше одного
// непустого абзаца или если он содержит маркер треда.
func IsThread(text string) bool {
	if head, _, found := strings.Cut(text, "/"); found {
		runes := []rune(head)
		if len(runes) > 3 {
			runes = runes[len(runes)-3:]
		}
		for _, r := range runes {
			if unicode.IsDigit(r) {
				return true
			}
		}
	}
	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	if paragraphs > 1 {
		return true
	}
	return strings.Contains(text, content.ThreadMarker)
}

// ParseThread делит текст на части по пустым строкам и убирает нумерацию вида "2/3 ".
func ParseThread(text string) []string {
	var parts []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.TrimSpace(numbering.ReplaceAllString(p, ""))
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

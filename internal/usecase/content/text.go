package content

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxRunes лимит длины одного поста.
	DefaultMaxRunes = 280
	// DefaultMinRunes более короткие сегменты не несут ценности и отбрасываются.
	DefaultMinRunes = 50
	// ThreadMarker добавляется к первому сегменту треда.
	ThreadMarker = "🧵"

	ellipsis = "..."
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Limits задаёт границы длины сегмента.
type Limits struct {
	Min int
	Max int
}

// DefaultLimits лимиты платформы по умолчанию.
var DefaultLimits = Limits{Min: DefaultMinRunes, Max: DefaultMaxRunes}

func (l Limits) normalized() Limits {
	if l.Max <= len(ellipsis) {
		l.Max = DefaultMaxRunes
	}
	if l.Min < 0 {
		l.Min = 0
	}
	return l
}

// Normalize обрезает пробелы по краям и схлопывает серии пустых строк в одну.
func Normalize(text string) string {
	return blankLines.ReplaceAllString(strings.TrimSpace(text), "\n\n")
}

// Split делит нормализованный текст на сегменты. Абзац, который помещается в лимит,
// становится сегментом целиком, длинный абзац жадно упаковывается по предложениям.
// Отдельное предложение длиннее лимита остаётся как есть и обрезается при валидации.
func (l Limits) Split(text string) []string {
	l = l.normalized()
	var segments []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if runeLen(paragraph) <= l.Max {
			segments = append(segments, paragraph)
			continue
		}
		current := ""
		for _, sentence := range splitSentences(paragraph) {
			candidate := joinSpace(current, sentence)
			if runeLen(candidate) <= l.Max {
				current = candidate
				continue
			}
			if current != "" {
				segments = append(segments, current)
			}
			current = sentence
		}
		if current != "" {
			segments = append(segments, current)
		}
	}
	return segments
}

// Truncate укладывает сегмент в лимит. Сначала режет по последней границе предложения,
// затем по границе слова и только потом жёстко, всегда добавляя многоточие.
// Сегменты, которые уже помещаются, возвращаются без изменений.
func (l Limits) Truncate(segment string) string {
	l = l.normalized()
	return truncateTo(strings.TrimSpace(segment), l.Max)
}

// Validate возвращает пригодный к публикации сегмент либо false, если он слишком короткий.
func (l Limits) Validate(segment string) (string, bool) {
	l = l.normalized()
	segment = l.Truncate(segment)
	if runeLen(segment) < l.Min {
		return "", false
	}
	return segment, true
}

// Shape прогоняет сырой ответ модели через нормализацию, разбиение и валидацию.
func (l Limits) Shape(raw string) []string {
	l = l.normalized()
	var out []string
	for _, segment := range l.Split(Normalize(raw)) {
		if valid, ok := l.Validate(segment); ok {
			out = append(out, valid)
		}
	}
	return out
}

// FormatThread собирает сегменты в текст. Один сегмент публикуется как есть,
// несколько оформляются тредом: маркер у первого и нумерация i/N у остальных.
func (l Limits) FormatThread(segments []string) string {
	l = l.normalized()
	switch len(segments) {
	case 0:
		return ""
	case 1:
		return segments[0]
	}
	suffix := " " + ThreadMarker
	parts := make([]string, len(segments))
	parts[0] = truncateTo(segments[0], l.Max-runeLen(suffix)) + suffix
	total := strconv.Itoa(len(segments))
	for i := 1; i < len(segments); i++ {
		parts[i] = strconv.Itoa(i+1) + "/" + total + " " + segments[i]
	}
	return strings.Join(parts, "\n\n")
}

// TruncateHard обрезает текст до лимита без поиска границ.
func TruncateHard(text string, limit int) string {
	if runeLen(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := limit - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + ellipsis
}

func truncateTo(segment string, limit int) string {
	if runeLen(segment) <= limit {
		return segment
	}
	budget := limit - len(ellipsis)

	kept := ""
	for _, sentence := range splitSentences(segment) {
		candidate := joinSpace(kept, sentence)
		if runeLen(candidate) > budget {
			break
		}
		kept = candidate
	}
	if kept != "" {
		return kept + ellipsis
	}

	for _, word := range strings.Fields(segment) {
		candidate := joinSpace(kept, word)
		if runeLen(candidate) > budget {
			break
		}
		kept = candidate
	}
	if kept != "" {
		return kept + ellipsis
	}

	return TruncateHard(segment, limit)
}

// splitSentences режет текст после '.', '!' или '?', за которыми идут пробелы.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinSpace(head, tail string) string {
	if head == "" {
		return tail
	}
	return head + " " + tail
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

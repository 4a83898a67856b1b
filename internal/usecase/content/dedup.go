package content

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// DefaultSimilarity порог, начиная с которого тексты считаются повтором.
const DefaultSimilarity = 0.7

// Fingerprint возвращает отпечаток текста, устойчивый к регистру, пробелам и пунктуации.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(strings.Join(words(text), " ")))
	return hex.EncodeToString(sum[:])
}

// Similarity считает коэффициент Жаккара по множествам слов.
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func words(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	return strings.Fields(cleaned)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(text) {
		set[w] = struct{}{}
	}
	return set
}

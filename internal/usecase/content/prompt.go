package content

import (
	"fmt"
	"strings"

	"analysis-bot/internal/catalog"
	"analysis-bot/internal/domain"
)

// Angles варианты подачи материала, один выбирается случайно на каждую генерацию.
var Angles = []string{
	"analytical deep dive",
	"market perspective",
	"technical analysis",
	"ecosystem comparison",
	"future potential assessment",
	"innovation spotlight",
	"competitive analysis",
}

const (
	maxHistoryInPrompt  = 3
	historySnippetRunes = 100
)

// BuildPrompt собирает промпт для модели по проекту, ракурсу и недавним публикациям.
func BuildPrompt(subject domain.Subject, angle string, history []string, limits Limits) string {
	limits = limits.normalized()
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s Twitter thread about %s (%s, %s).\n", angle, subject.Name, subject.Website, subject.Handle)
	if desc := strings.TrimSpace(subject.Description); desc != "" {
		fmt.Fprintf(&b, "Project summary: %s. Category: %s.\n", desc, subject.Category)
	}
	if info, ok := catalog.CategoryInfo(subject.Category); ok {
		fmt.Fprintf(&b, "Relevant focus areas: %s.\n", strings.Join(info.FocusAreas, ", "))
		fmt.Fprintf(&b, "Metrics worth discussing: %s.\n", strings.Join(info.KeyMetrics, ", "))
	}

	b.WriteString("\nREQUIREMENTS:\n")
	requirements := []string{
		"Be analytical and insightful, not merely descriptive",
		"Give your own interpretation and perspective",
		"Explain why the project matters, not only what it does",
		"Cover potential, advantages and open challenges",
		"Use comparisons with other projects where they help",
		"Offer value beyond what a quick web search returns",
		fmt.Sprintf("Keep every tweet under %d characters", limits.Max),
		"Write 2-4 connected tweets separated by blank lines",
		fmt.Sprintf("Add relevant hashtags and mention %s", subject.Handle),
	}
	for i, r := range requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}

	b.WriteString("\nSTYLE:\n")
	b.WriteString("- Thought-provoking and engaging\n")
	b.WriteString("- Data points or metrics when possible\n")
	b.WriteString("- Professional yet conversational tone\n")
	b.WriteString("- No generic buzzwords\n")

	b.WriteString("\nAVOID:\n")
	b.WriteString("- Basic project descriptions\n")
	b.WriteString("- Generic marketing language\n")
	b.WriteString("- Text copied from the project website\n")
	b.WriteString("- Surface-level observations\n")

	if len(history) > 0 {
		b.WriteString("\nAVOID REPEATING these recent topics:\n")
		for i, h := range history {
			if i == maxHistoryInPrompt {
				break
			}
			fmt.Fprintf(&b, "- %s...\n", clipRunes(strings.TrimSpace(h), historySnippetRunes))
		}
	}

	b.WriteString("\nGenerate the Twitter thread now:")
	return b.String()
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

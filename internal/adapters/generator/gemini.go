package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
)

const defaultGeminiModel = "gemini-2.0-flash-exp"

var _ domain.TextGenerator = (*Gemini)(nil)

type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini генерирует текст через Gemini API.
type Gemini struct {
	models  contentModel
	model   string
	timeout time.Duration
}

// NewGemini создаёт клиента Gemini API.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGemini(client.Models, model, timeout), nil
}

func newGemini(models contentModel, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Gemini{models: models, model: model, timeout: timeout}
}

// Name возвращает имя модели.
func (g *Gemini) Name() string {
	return "gemini/" + g.model
}

// Generate отправляет промпт и возвращает текст ответа.
func (g *Gemini) Generate(ctx context.Context, prompt string, sampling domain.Sampling) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(sampling.Temperature),
		TopP:            genai.Ptr(sampling.TopP),
		TopK:            genai.Ptr(float32(sampling.TopK)),
		MaxOutputTokens: int32(sampling.MaxTokens),
	}

	start := time.Now()
	result, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	metrics.ObserveNetworkRequest("gemini", "generate_content", g.model, start, err)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if result == nil {
		return "", errors.New("gemini: empty response")
	}
	if usage := result.UsageMetadata; usage != nil {
		metrics.ObserveLLMGeneration(g.model, time.Since(start), int(usage.PromptTokenCount), int(usage.CandidatesTokenCount), int(usage.TotalTokenCount))
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("gemini: response has no text")
	}
	return text, nil
}

package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analysis-bot/internal/domain"
	openai "analysis-bot/internal/infra/openai"
)

var _ domain.TextGenerator = (*OpenAI)(nil)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI генерирует текст через OpenAI Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт генератор.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

// Name возвращает имя модели.
func (o *OpenAI) Name() string {
	return "openai/" + o.model
}

// Generate отправляет промпт и возвращает текст ответа. top_k в Chat Completions не поддерживается.
func (o *OpenAI) Generate(ctx context.Context, prompt string, sampling domain.Sampling) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: sampling.Temperature,
		TopP:        sampling.TopP,
		MaxTokens:   sampling.MaxTokens,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "You are a crypto research analyst who writes concise, opinionated Twitter threads.",
			},
			{
				Role:    openai.RoleUser,
				Content: prompt,
			},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: пустой ответ")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai completion: ответ без текста")
	}
	return text, nil
}

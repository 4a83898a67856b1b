package generator

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"analysis-bot/internal/domain"
	openai "analysis-bot/internal/infra/openai"
)

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	}
}

var sampling = domain.Sampling{Temperature: 0.7, TopP: 0.8, TopK: 40, MaxTokens: 300}

func TestGeminiGenerate(t *testing.T) {
	models := &fakeModels{resp: textResponse("  thread text  ")}
	g := newGemini(models, "", 0)

	text, err := g.Generate(context.Background(), "prompt", sampling)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "thread text" {
		t.Fatalf("unexpected text %q", text)
	}
	if models.model != defaultGeminiModel || models.prompt != "prompt" {
		t.Fatalf("unexpected call: model=%s prompt=%q", models.model, models.prompt)
	}
	cfg := models.config
	if *cfg.Temperature != 0.7 || *cfg.TopP != 0.8 || *cfg.TopK != 40 || cfg.MaxOutputTokens != 300 {
		t.Fatalf("sampling not applied: %+v", cfg)
	}
}

func TestGeminiErrors(t *testing.T) {
	if _, err := newGemini(&fakeModels{err: errors.New("boom")}, "m", 0).Generate(context.Background(), "p", sampling); err == nil {
		t.Fatalf("expected error from model")
	}
	if _, err := newGemini(&fakeModels{resp: textResponse("   ")}, "m", 0).Generate(context.Background(), "p", sampling); err == nil {
		t.Fatalf("expected error for empty text")
	}
	if _, err := NewGemini(context.Background(), "", "", 0); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIGenerate(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: " text "}}}}}
	text, err := NewOpenAI(chat, "m", 0).Generate(context.Background(), "prompt", sampling)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "text" {
		t.Fatalf("unexpected text %q", text)
	}
	if chat.req.TopP != 0.8 || chat.req.MaxTokens != 300 || chat.req.Messages[1].Content != "prompt" {
		t.Fatalf("unexpected request: %+v", chat.req)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	if _, err := NewOpenAI(&fakeChat{}, "m", 0).Generate(context.Background(), "p", sampling); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
)

type fakeGenerator struct {
	text     string
	err      error
	prompts  []string
	sampling domain.Sampling
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, sampling domain.Sampling) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.sampling = sampling
	return f.text, f.err
}

func (f *fakeGenerator) Name() string { return "fake" }

type memoryCache struct {
	values map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{values: make(map[string][]byte)} }

func (m *memoryCache) Once(_ context.Context, key string, _ time.Duration, fn func() error) error {
	if _, ok := m.values[key]; ok {
		return nil
	}
	m.values[key] = []byte("1")
	return fn()
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.values[key]
	return ok, nil
}

var subject = domain.Subject{ID: 1, Name: "Arbitrum", Website: "arbitrum.org", Handle: "@arbitrum", Category: "Layer 2", IsActive: true}

const (
	paragraphOne = "Arbitrum keeps pushing fees down while sequencer revenue keeps climbing every quarter."
	paragraphTwo = "The real question is whether Stylus can pull Rust developers away from Solana for good. #L2"
)

func newTestService(gen domain.TextGenerator, cache domain.Cache) *Service {
	svc := NewService(gen, cache, Options{}, zerolog.Nop())
	svc.pickAngle = func(int) int { return 0 }
	return svc
}

func TestGenerateFormatsThread(t *testing.T) {
	gen := &fakeGenerator{text: "\n" + paragraphOne + "\n\n\n\n" + paragraphTwo + "\n"}
	svc := newTestService(gen, nil)

	got, err := svc.Generate(context.Background(), subject, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := paragraphOne + " 🧵\n\n2/2 " + paragraphTwo
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if gen.sampling != DefaultSampling {
		t.Fatalf("expected default sampling, got %+v", gen.sampling)
	}
}

func TestGenerateSingleSegment(t *testing.T) {
	gen := &fakeGenerator{text: paragraphOne}
	got, err := newTestService(gen, nil).Generate(context.Background(), subject, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != paragraphOne {
		t.Fatalf("expected standalone post, got %q", got)
	}
}

func TestGenerateWrapsGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	_, err := newTestService(gen, nil).Generate(context.Background(), subject, nil)
	if !errors.Is(err, domain.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestGenerateNoValidSegments(t *testing.T) {
	gen := &fakeGenerator{text: "Too short.\n\nAlso short."}
	_, err := newTestService(gen, nil).Generate(context.Background(), subject, nil)
	if !errors.Is(err, domain.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestGenerateRejectsSimilarHistory(t *testing.T) {
	gen := &fakeGenerator{text: paragraphOne}
	_, err := newTestService(gen, nil).Generate(context.Background(), subject, []string{strings.ToUpper(paragraphOne)})
	if !errors.Is(err, domain.ErrDuplicate) || !errors.Is(err, domain.ErrNoContent) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestGenerateRejectsRememberedFingerprint(t *testing.T) {
	cache := newMemoryCache()
	gen := &fakeGenerator{text: paragraphOne}
	svc := newTestService(gen, cache)

	if _, err := svc.Generate(context.Background(), subject, nil); err != nil {
		t.Fatalf("first generation failed: %v", err)
	}
	if err := svc.Remember(context.Background(), paragraphOne); err != nil {
		t.Fatalf("remember failed: %v", err)
	}
	if _, err := svc.Generate(context.Background(), subject, nil); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected duplicate after remember, got %v", err)
	}
}

func TestPromptIncludesClippedHistory(t *testing.T) {
	gen := &fakeGenerator{text: paragraphOne}
	history := []string{
		"first " + strings.Repeat("a", 200),
		"second topic",
		"third topic",
		"fourth topic",
	}
	if _, err := newTestService(gen, nil).Generate(context.Background(), subject, history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "Write a "+Angles[0]+" Twitter thread about Arbitrum") {
		t.Fatalf("prompt misses subject line: %s", prompt)
	}
	if !strings.Contains(prompt, "- first "+strings.Repeat("a", 94)+"...\n") {
		t.Fatalf("history entry should be clipped to 100 characters")
	}
	if strings.Contains(prompt, "fourth topic") {
		t.Fatalf("only three history entries are allowed")
	}
	if !strings.Contains(prompt, "bridge security") {
		t.Fatalf("category hints are missing")
	}
}

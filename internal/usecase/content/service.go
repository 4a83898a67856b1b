// Package content превращает ответ модели в пригодный к публикации текст.
package content

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
)

const fingerprintPrefix = "fp:"

// DefaultSampling параметры генерации по умолчанию.
var DefaultSampling = domain.Sampling{Temperature: 0.7, TopP: 0.8, TopK: 40, MaxTokens: 300}

// Options настройки сервиса генерации.
type Options struct {
	Limits      Limits
	Sampling    domain.Sampling
	DedupWindow time.Duration
	Similarity  float64
}

// Service генерирует и проверяет контент для проекта.
type Service struct {
	gen         domain.TextGenerator
	cache       domain.Cache
	limits      Limits
	sampling    domain.Sampling
	dedupWindow time.Duration
	similarity  float64
	pickAngle   func(n int) int
	log         zerolog.Logger
}

// NewService создаёт сервис. cache может быть nil, тогда отпечатки не проверяются.
func NewService(gen domain.TextGenerator, cache domain.Cache, opts Options, logger zerolog.Logger) *Service {
	if opts.Limits.Max == 0 {
		opts.Limits = DefaultLimits
	}
	if opts.Sampling == (domain.Sampling{}) {
		opts.Sampling = DefaultSampling
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 7 * 24 * time.Hour
	}
	if opts.Similarity <= 0 {
		opts.Similarity = DefaultSimilarity
	}
	return &Service{
		gen:         gen,
		cache:       cache,
		limits:      opts.Limits.normalized(),
		sampling:    opts.Sampling,
		dedupWindow: opts.DedupWindow,
		similarity:  opts.Similarity,
		pickAngle:   rand.Intn,
		log:         logger,
	}
}

// Generate строит промпт, вызывает модель и возвращает готовый текст: одиночный пост
// или нумерованный тред. Любая ошибка оборачивается в domain.ErrNoContent.
func (s *Service) Generate(ctx context.Context, subject domain.Subject, history []string) (string, error) {
	angle := Angles[s.pickAngle(len(Angles))]
	prompt := BuildPrompt(subject, angle, history, s.limits)

	raw, err := s.gen.Generate(ctx, prompt, s.sampling)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrNoContent, s.gen.Name(), err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: пустой ответ модели", domain.ErrNoContent)
	}

	segments := s.limits.Shape(raw)
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: все сегменты отброшены валидацией", domain.ErrNoContent)
	}
	text := s.limits.FormatThread(segments)

	if err := s.checkDuplicate(ctx, text, history); err != nil {
		return "", err
	}

	s.log.Debug().
		Str("project", subject.Name).
		Str("angle", angle).
		Int("segments", len(segments)).
		Int("chars", runeLen(text)).
		Msg("контент сгенерирован")
	return text, nil
}

func (s *Service) checkDuplicate(ctx context.Context, text string, history []string) error {
	for _, prev := range history {
		if score := Similarity(text, prev); score >= s.similarity {
			return fmt.Errorf("%w: %w: сходство %.2f", domain.ErrNoContent, domain.ErrDuplicate, score)
		}
	}
	if s.cache == nil {
		return nil
	}
	seen, err := s.cache.Exists(ctx, fingerprintPrefix+Fingerprint(text))
	if err != nil {
		s.log.Warn().Err(err).Msg("проверка отпечатка недоступна")
		return nil
	}
	if seen {
		return fmt.Errorf("%w: %w: отпечаток уже опубликован", domain.ErrNoContent, domain.ErrDuplicate)
	}
	return nil
}

// Remember сохраняет отпечаток опубликованного текста на время окна дедупликации.
func (s *Service) Remember(ctx context.Context, text string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Set(ctx, fingerprintPrefix+Fingerprint(text), []byte("1"), s.dedupWindow); err != nil {
		return fmt.Errorf("сохранение отпечатка: %w", err)
	}
	return nil
}

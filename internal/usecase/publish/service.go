// Package publish отправляет готовый текст на платформу одиночным постом или тредом.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
	"analysis-bot/internal/usecase/content"
)

const (
	// MinPostRunes более короткие части не публикуются.
	MinPostRunes = 10
	// DefaultThreadDelay пауза между частями треда.
	DefaultThreadDelay = 2 * time.Second
)

// Service публикует контент через domain.PostClient.
type Service struct {
	client   domain.PostClient
	maxRunes int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

// NewService создаёт публикатор. delay <= 0 заменяется на DefaultThreadDelay.
func NewService(client domain.PostClient, maxRunes int, delay time.Duration, logger zerolog.Logger) *Service {
	if maxRunes <= 0 {
		maxRunes = content.DefaultMaxRunes
	}
	if delay <= 0 {
		delay = DefaultThreadDelay
	}
	return &Service{client: client, maxRunes: maxRunes, delay: delay, sleep: sleepCtx, log: logger}
}

// Publish выбирает путь публикации по IsThread. При частичной публикации треда
// возвращает квитанцию с уже подтверждёнными идентификаторами вместе с ошибкой.
func (s *Service) Publish(ctx context.Context, text string) (domain.PublishReceipt, error) {
	if IsThread(text) {
		return s.PublishThread(ctx, ParseThread(text))
	}
	id, err := s.PublishSingle(ctx, text)
	if err != nil {
		return domain.PublishReceipt{Expected: 1}, err
	}
	return domain.PublishReceipt{IDs: []string{id}, Parts: []string{s.prepare(text)}, Expected: 1}, nil
}

// PublishSingle публикует один пост.
func (s *Service) PublishSingle(ctx context.Context, text string) (string, error) {
	post := s.prepare(text)
	if utf8.RuneCountInString(post) < MinPostRunes {
		return "", fmt.Errorf("%w: %d символов", domain.ErrContentTooShort, utf8.RuneCountInString(post))
	}
	id, err := s.client.CreatePost(ctx, post, "")
	if err != nil {
		s.logFailure(err, 1, 1)
		return "", fmt.Errorf("публикация поста: %w", err)
	}
	metrics.IncPostsPublished("single")
	s.log.Info().Str("post_id", id).Msg("пост опубликован")
	return id, nil
}

// PublishThread публикует части цепочкой ответов. Слишком короткие части пропускаются.
func (s *Service) PublishThread(ctx context.Context, parts []string) (domain.PublishReceipt, error) {
	prepared := make([]string, 0, len(parts))
	for i, part := range parts {
		post := s.prepare(part)
		if utf8.RuneCountInString(post) < MinPostRunes {
			s.log.Warn().Int("part", i+1).Msg("часть треда слишком короткая, пропускаем")
			continue
		}
		prepared = append(prepared, post)
	}
	receipt := domain.PublishReceipt{Thread: true, Expected: len(prepared)}
	if len(prepared) == 0 {
		return receipt, fmt.Errorf("%w: в треде нет частей для публикации", domain.ErrContentTooShort)
	}

	parent := ""
	for i, post := range prepared {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return receipt, fmt.Errorf("пауза между частями треда: %w", err)
			}
		}
		id, err := s.client.CreatePost(ctx, post, parent)
		if err != nil {
			s.logFailure(err, i+1, len(prepared))
			return receipt, fmt.Errorf("публикация части %d/%d: %w", i+1, len(prepared), err)
		}
		receipt.IDs = append(receipt.IDs, id)
		receipt.Parts = append(receipt.Parts, post)
		parent = id
	}
	metrics.IncPostsPublished("thread")
	s.log.Info().Strs("post_ids", receipt.IDs).Msg("тред опубликован")
	return receipt, nil
}

func (s *Service) prepare(text string) string {
	return content.TruncateHard(strings.TrimSpace(text), s.maxRunes)
}

func (s *Service) logFailure(err error, part, total int) {
	event := s.log.Error()
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrForbidden):
		reason = "forbidden"
	case errors.Is(err, domain.ErrRateLimited):
		reason = "rate_limited"
		event = s.log.Warn()
	}
	metrics.IncPublishRejected(reason)
	event.Err(err).Str("reason", reason).Int("part", part).Int("total", total).Msg("платформа отклонила публикацию")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Команда manual-post публикует первый готовый элемент очереди и завершается.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"analysis-bot/internal/adapters/generator"
	"analysis-bot/internal/adapters/repo"
	"analysis-bot/internal/adapters/x"
	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/config"
	"analysis-bot/internal/infra/db"
	"analysis-bot/internal/infra/log"
	"analysis-bot/internal/infra/openai"
	"analysis-bot/internal/usecase/content"
	"analysis-bot/internal/usecase/publish"
	"analysis-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("конфигурация некорректна")
	}
	loc, err := schedule.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("некорректный часовой пояс")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	var gen domain.TextGenerator
	if cfg.Generator.Provider == "openai" {
		gen = generator.NewOpenAI(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout), cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	} else {
		g, err := generator.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать генератор")
		}
		gen = g
	}

	xClient := x.NewClient(x.Credentials{
		APIKey:            cfg.Twitter.APIKey,
		APISecret:         cfg.Twitter.APISecret,
		AccessToken:       cfg.Twitter.AccessToken,
		AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
	}, cfg.Twitter.BaseURL, 30*time.Second)

	scheduler := schedule.NewService(schedule.Deps{
		Subjects:  store,
		Queue:     store,
		Posted:    store,
		Counters:  store,
		Content:   content.NewService(gen, nil, content.Options{DedupWindow: cfg.DedupWindow()}, log.Component(logger, "content")),
		Publisher: publish.NewService(xClient, cfg.Content.MaxLength, cfg.Schedule.ThreadDelay, log.Component(logger, "publish")),
		Metrics:   xClient,
	}, schedule.Config{
		MaxPostsPerDay: cfg.Schedule.MaxPostsPerDay,
		Location:       loc,
	}, log.Component(logger, "manual-post"))

	rec, err := scheduler.PublishNextReady(ctx)
	if errors.Is(err, domain.ErrQueueItemNotFound) {
		fmt.Println("Очередь пуста")
		return
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("публикация не удалась")
	}
	fmt.Printf("Опубликовано для %s: https://twitter.com/i/web/status/%s\n", rec.SubjectName, rec.ExternalID)
}

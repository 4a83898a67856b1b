package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"analysis-bot/internal/adapters/bot"
	"analysis-bot/internal/adapters/generator"
	"analysis-bot/internal/adapters/httpapi"
	"analysis-bot/internal/adapters/repo"
	"analysis-bot/internal/adapters/telegram"
	"analysis-bot/internal/adapters/x"
	"analysis-bot/internal/catalog"
	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/cache"
	"analysis-bot/internal/infra/config"
	"analysis-bot/internal/infra/db"
	httpinfra "analysis-bot/internal/infra/http"
	"analysis-bot/internal/infra/log"
	"analysis-bot/internal/infra/metrics"
	"analysis-bot/internal/infra/openai"
	"analysis-bot/internal/infra/queue"
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

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	metrics.StartServer(ctx, log.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось подготовить схему БД")
	}
	added, err := store.SeedSubjects(ctx, catalog.Projects())
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось загрузить каталог проектов")
	}
	logger.Info().Int("added", added).Msg("каталог проектов загружен")

	var fingerprints domain.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn().Err(err).Msg("redis недоступен, дедупликация по отпечаткам отключена")
		} else {
			defer client.Close()
			fingerprints = cache.NewRedis(client, "analysis-bot:")
		}
	}

	var events domain.EventPublisher
	if cfg.RabbitURL != "" {
		publisher, err := queue.NewRabbitPublisher(cfg.RabbitURL, cfg.Queues.PostEvents)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq недоступен, события публикаций не отправляются")
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	var (
		notifier domain.Notifier
		botAPI   *tgbotapi.BotAPI
	)
	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram недоступен, уведомления и команды отключены")
		} else {
			botAPI = api
			notifier = telegram.NewNotifier(api, cfg.Telegram.AdminChatID)
		}
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.Generator.Provider).Msg("не удалось создать генератор")
	}

	xClient := x.NewClient(x.Credentials{
		APIKey:            cfg.Twitter.APIKey,
		APISecret:         cfg.Twitter.APISecret,
		AccessToken:       cfg.Twitter.AccessToken,
		AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
	}, cfg.Twitter.BaseURL, 30*time.Second)
	account, err := xClient.Me(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("проверка доступа к X API не прошла")
	}
	logger.Info().Str("username", account.Username).Msg("аккаунт X подтверждён")

	contentService := content.NewService(gen, fingerprints, content.Options{
		Limits: content.Limits{Min: cfg.Content.MinLength, Max: cfg.Content.MaxLength},
		Sampling: domain.Sampling{
			Temperature: cfg.Content.Temperature,
			TopP:        cfg.Content.TopP,
			TopK:        cfg.Content.TopK,
			MaxTokens:   cfg.Content.MaxTokens,
		},
		DedupWindow: cfg.DedupWindow(),
		Similarity:  cfg.Content.SimilarityCeiling,
	}, log.Component(logger, "content"))
	publishService := publish.NewService(xClient, cfg.Content.MaxLength, cfg.Schedule.ThreadDelay, log.Component(logger, "publish"))

	scheduler := schedule.NewService(schedule.Deps{
		Subjects:  store,
		Queue:     store,
		Posted:    store,
		Counters:  store,
		Content:   contentService,
		Publisher: publishService,
		Metrics:   xClient,
		Events:    events,
		Notifier:  notifier,
		Cache:     fingerprints,
	}, schedule.Config{
		MaxPostsPerDay:    cfg.Schedule.MaxPostsPerDay,
		PostInterval:      cfg.Schedule.PostInterval,
		QueuePollInterval: cfg.Schedule.QueuePollInterval,
		RepostCooldown:    cfg.Schedule.RepostCooldown,
		PostDelayMin:      cfg.Schedule.PostDelayMin,
		PostDelayMax:      cfg.Schedule.PostDelayMax,
		DedupWindow:       cfg.DedupWindow(),
		Location:          loc,
	}, log.Component(logger, "scheduler"))
	if err := scheduler.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("дневной счётчик не восстановлен")
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось запустить планировщик")
	}

	if botAPI != nil {
		handler := bot.NewHandler(botAPI, log.Component(logger, "bot"), scheduler, store, cfg.Telegram.AdminChatID, loc)
		updates := botAPI.GetUpdatesChan(tgbotapi.UpdateConfig{Timeout: 60})
		go handler.Run(ctx, updates)
		defer botAPI.StopReceivingUpdates()
	}

	server := httpinfra.NewServer(log.Component(logger, "http"), httpapi.Recoverer(logger))
	httpapi.NewHandler(store, scheduler, httpapi.Options{
		Token:    cfg.Web.Token,
		Location: loc,
		Checks: map[string]httpapi.Check{
			"database": store.Ping,
			"twitter_api": func(ctx context.Context) error {
				_, err := xClient.Me(ctx)
				return err
			},
		},
	}, log.Component(logger, "dashboard")).Mount(server.Router)

	logger.Info().Str("generator", gen.Name()).Str("addr", cfg.WebAddr()).Msg("бот запущен")
	if err := server.Run(ctx, cfg.WebAddr()); err != nil {
		logger.Error().Err(err).Msg("HTTP сервер остановлен с ошибкой")
		stop()
	}

	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("задачи планировщика не завершились вовремя")
	}
}

func newGenerator(ctx context.Context, cfg config.AppConfig) (domain.TextGenerator, error) {
	if cfg.Generator.Provider == "openai" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		return generator.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.Timeout), nil
	}
	return generator.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
}

var (
	_ domain.SubjectRepo = (*repo.Postgres)(nil)
	_ domain.QueueRepo   = (*repo.Postgres)(nil)
	_ domain.PostedRepo  = (*repo.Postgres)(nil)
	_ domain.CounterRepo = (*repo.Postgres)(nil)
	_ httpapi.Store      = (*repo.Postgres)(nil)
	_ httpapi.Scheduler  = (*schedule.Service)(nil)
	_ bot.Control        = (*schedule.Service)(nil)
	_ bot.Reader         = (*repo.Postgres)(nil)
)

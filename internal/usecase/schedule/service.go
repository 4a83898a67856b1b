// Package schedule управляет конвейером: генерация по расписанию, разбор очереди,
// дневной сброс лимита и еженедельное обслуживание.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
	"analysis-bot/internal/usecase/publish"
)

var (
	// ErrDailyCapReached дневной лимит публикаций исчерпан.
	ErrDailyCapReached = errors.New("daily post limit reached")
	// ErrTooSoon с последней публикации прошло меньше интервала.
	ErrTooSoon = errors.New("too soon since last post")
)

const historyLimit = 10

// ContentGenerator генерирует текст для проекта и запоминает опубликованное.
type ContentGenerator interface {
	Generate(ctx context.Context, subject domain.Subject, history []string) (string, error)
	Remember(ctx context.Context, text string) error
}

// Publisher публикует текст на платформе.
type Publisher interface {
	Publish(ctx context.Context, text string) (domain.PublishReceipt, error)
}

// MetricsSource отдаёт публичные метрики поста.
type MetricsSource interface {
	TweetMetrics(ctx context.Context, id string) (domain.TweetMetrics, error)
}

// Config настройки оркестратора.
type Config struct {
	MaxPostsPerDay    int
	PostInterval      time.Duration
	QueuePollInterval time.Duration
	RepostCooldown    time.Duration
	PostDelayMin      time.Duration
	PostDelayMax      time.Duration
	DedupWindow       time.Duration
	StaleAfter        time.Duration
	PostedRetention   time.Duration
	EngagementWindow  time.Duration
	EngagementBatch   int
	Location          *time.Location
}

func (c Config) withDefaults() Config {
	if c.MaxPostsPerDay <= 0 {
		c.MaxPostsPerDay = 6
	}
	if c.PostInterval <= 0 {
		c.PostInterval = 210 * time.Minute
	}
	if c.QueuePollInterval <= 0 {
		c.QueuePollInterval = 5 * time.Minute
	}
	if c.PostDelayMax < c.PostDelayMin {
		c.PostDelayMax = c.PostDelayMin
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 7 * 24 * time.Hour
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 24 * time.Hour
	}
	if c.PostedRetention <= 0 {
		c.PostedRetention = 90 * 24 * time.Hour
	}
	if c.EngagementWindow <= 0 {
		c.EngagementWindow = 7 * 24 * time.Hour
	}
	if c.EngagementBatch <= 0 {
		c.EngagementBatch = 50
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Deps зависимости оркестратора. Events, Notifier и Cache необязательны.
type Deps struct {
	Subjects  domain.SubjectRepo
	Queue     domain.QueueRepo
	Posted    domain.PostedRepo
	Counters  domain.CounterRepo
	Content   ContentGenerator
	Publisher Publisher
	Metrics   MetricsSource
	Events    domain.EventPublisher
	Notifier  domain.Notifier
	Cache     domain.Cache
}

// Service оркестратор конвейера публикаций.
type Service struct {
	deps Deps
	cfg  Config
	gate *Gate
	log  zerolog.Logger

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randDelay func(min, max time.Duration) time.Duration

	paused atomic.Bool

	cronMu  sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	baseCtx context.Context
}

// NewService создаёт оркестратор.
func NewService(deps Deps, cfg Config, logger zerolog.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		deps:      deps,
		cfg:       cfg,
		gate:      NewGate(cfg.MaxPostsPerDay, cfg.Location),
		log:       logger,
		now:       time.Now,
		sleep:     sleepCtx,
		randDelay: randomDelay,
		entries:   make(map[string]cron.EntryID),
		baseCtx:   context.Background(),
	}
}

// Gate возвращает дневной гейт.
func (s *Service) Gate() *Gate {
	return s.gate
}

// Restore восстанавливает дневной счётчик из daily_counters, чтобы рестарт не обнулял лимит.
func (s *Service) Restore(ctx context.Context) error {
	now := s.now()
	counters, err := s.deps.Counters.GetCounters(ctx, now.In(s.cfg.Location))
	if err != nil {
		return fmt.Errorf("чтение дневных счётчиков: %w", err)
	}
	s.gate.Seed(now, counters.Published)
	metrics.SetPostsToday(counters.Published)
	s.log.Info().Int("posts_today", counters.Published).Int("max", s.cfg.MaxPostsPerDay).Msg("дневной лимит восстановлен")
	return nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}

func (s *Service) day() time.Time {
	return s.now().In(s.cfg.Location)
}

func (s *Service) bumpCounters(ctx context.Context, delta domain.CounterDelta) {
	if err := s.deps.Counters.IncrementCounters(ctx, s.day(), delta); err != nil {
		s.logger(ctx).Error().Err(err).Msg("не удалось обновить дневные счётчики")
	}
}

func (s *Service) fail(ctx context.Context, stage string) {
	metrics.IncPipelineError(stage)
	s.bumpCounters(ctx, domain.CounterDelta{Errors: 1})
}

// GenerateAndQueue генерирует текст для следующего проекта и ставит его в очередь
// со случайной задержкой. Ничего не делает, если дневной лимит исчерпан.
func (s *Service) GenerateAndQueue(ctx context.Context) (domain.QueueItem, error) {
	if !s.gate.CanPost(s.now()) {
		s.logger(ctx).Info().Msg("дневной лимит исчерпан, генерация пропущена")
		return domain.QueueItem{}, ErrDailyCapReached
	}
	return s.Enqueue(ctx, 0, true)
}

// Enqueue генерирует текст для проекта subjectID (0 означает следующий по очереди) и ставит
// его в очередь. delayed задаёт случайную задержку публикации.
func (s *Service) Enqueue(ctx context.Context, subjectID int64, delayed bool) (domain.QueueItem, error) {
	subject, text, err := s.generate(ctx, subjectID)
	if err != nil {
		return domain.QueueItem{}, err
	}
	now := s.now()
	scheduled := now
	if delayed {
		scheduled = now.Add(s.randDelay(s.cfg.PostDelayMin, s.cfg.PostDelayMax))
	}
	item, err := s.deps.Queue.Enqueue(ctx, domain.QueueItem{
		SubjectID:   subject.ID,
		Subject:     subject,
		Content:     text,
		ContentType: contentType(text),
		ScheduledAt: scheduled,
		Status:      domain.QueueStatusPending,
		CreatedAt:   now,
	})
	if err != nil {
		s.fail(ctx, "store")
		return domain.QueueItem{}, fmt.Errorf("постановка в очередь: %w", err)
	}
	s.bumpCounters(ctx, domain.CounterDelta{Generated: 1})
	metrics.IncPostsGenerated()
	s.refreshQueueDepth(ctx)
	s.logger(ctx).Info().
		Str("project", subject.Name).
		Int64("queue_id", item.ID).
		Time("scheduled_time", item.ScheduledAt).
		Msg("контент поставлен в очередь")
	return item, nil
}

func (s *Service) generate(ctx context.Context, subjectID int64) (domain.Subject, string, error) {
	subject, err := s.selectSubject(ctx, subjectID)
	if err != nil {
		return domain.Subject{}, "", err
	}
	history, err := s.deps.Posted.RecentContent(ctx, subject.ID, s.now().Add(-s.cfg.DedupWindow), historyLimit)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Str("project", subject.Name).Msg("история публикаций недоступна")
		history = nil
	}
	text, err := s.deps.Content.Generate(ctx, subject, history)
	if err != nil {
		s.fail(ctx, "generate")
		s.logger(ctx).Warn().Err(err).Str("project", subject.Name).Msg("генерация не дала контента")
		return domain.Subject{}, "", err
	}
	return subject, text, nil
}

func (s *Service) selectSubject(ctx context.Context, subjectID int64) (domain.Subject, error) {
	if subjectID > 0 {
		subject, err := s.deps.Subjects.GetSubject(ctx, subjectID)
		if err != nil {
			return domain.Subject{}, fmt.Errorf("получение проекта: %w", err)
		}
		return subject, nil
	}
	subjects, err := s.deps.Subjects.ListSubjects(ctx)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("список проектов: %w", err)
	}
	subject, err := PickNext(subjects, s.now(), s.cfg.RepostCooldown)
	if err != nil {
		s.logger(ctx).Info().Msg("нет проекта для публикации, цикл пропущен")
		return domain.Subject{}, err
	}
	return subject, nil
}

// ProcessQueue публикует готовые элементы очереди, пока позволяет дневной лимит.
// Между успешными публикациями выдерживается случайная пауза.
func (s *Service) ProcessQueue(ctx context.Context) (int, error) {
	if !s.gate.CanPost(s.now()) {
		s.logger(ctx).Debug().Msg("дневной лимит исчерпан, очередь не разбирается")
		return 0, nil
	}
	items, err := s.deps.Queue.ListReady(ctx, s.now())
	if err != nil {
		s.fail(ctx, "store")
		return 0, fmt.Errorf("чтение очереди: %w", err)
	}
	defer s.refreshQueueDepth(ctx)

	posted := 0
	for i, item := range items {
		if !s.gate.CanPost(s.now()) {
			s.logger(ctx).Info().Int("left", len(items)-i).Msg("дневной лимит достигнут во время разбора очереди")
			break
		}
		res, err := s.publishItem(ctx, item)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				break
			}
			continue
		}
		posted++
		if errors.Is(res.partial, domain.ErrRateLimited) {
			s.logger(ctx).Warn().Int("left", len(items)-i-1).Msg("лимит запросов X, разбор очереди остановлен")
			break
		}
		if i < len(items)-1 && s.gate.CanPost(s.now()) {
			if err := s.sleep(ctx, s.randDelay(s.cfg.PostDelayMin, s.cfg.PostDelayMax)); err != nil {
				return posted, err
			}
		}
	}
	return posted, nil
}

// published итог публикации элемента очереди.
type published struct {
	record domain.PostedRecord
	// partial ошибка платформы, на которой оборвался тред.
	partial error
}

// publishItem публикует элемент очереди и фиксирует результат. Частично опубликованный
// тред сохраняется с опубликованными частями, элемент удаляется из очереди.
func (s *Service) publishItem(ctx context.Context, item domain.QueueItem) (published, error) {
	log := s.logger(ctx).With().Int64("queue_id", item.ID).Str("project", item.Subject.Name).Logger()
	receipt, err := s.deps.Publisher.Publish(ctx, item.Content)
	if len(receipt.IDs) == 0 {
		if err == nil {
			err = errors.New("платформа не вернула идентификатор")
		}
		s.fail(ctx, "publish")
		log.Error().Err(err).Msg("публикация не удалась, элемент остаётся в очереди")
		s.emit(ctx, domain.PostEvent{Type: domain.PostEventFailed, SubjectID: item.SubjectID, SubjectName: item.Subject.Name, ContentType: item.ContentType, Error: err.Error()})
		return published{}, err
	}

	rec := domain.PostedRecord{
		SubjectID:   item.SubjectID,
		SubjectName: item.Subject.Name,
		Content:     item.Content,
		ExternalID:  receipt.Primary(),
		ContentType: item.ContentType,
		PostedAt:    s.now(),
	}
	delta := domain.CounterDelta{Published: 1}
	event := domain.PostEvent{Type: domain.PostEventPublished, SubjectID: item.SubjectID, SubjectName: item.Subject.Name, ExternalIDs: receipt.IDs, ContentType: item.ContentType}
	var partialErr error
	if receipt.Partial() {
		partialErr = err
		if partialErr == nil {
			partialErr = fmt.Errorf("опубликовано %d из %d частей", len(receipt.IDs), receipt.Expected)
		}
		rec.Content = strings.Join(receipt.Parts, "\n\n")
		rec.ContentType = domain.ContentTypeThreadPartial
		delta.Errors = 1
		metrics.IncPipelineError("publish_partial")
		event.Type = domain.PostEventPartial
		event.ContentType = rec.ContentType
		event.Error = partialErr.Error()
		log.Warn().Err(partialErr).Int("posted", len(receipt.IDs)).Int("expected", receipt.Expected).Msg("тред опубликован частично")
		s.notify(ctx, fmt.Sprintf("Тред по %s опубликован частично: %d из %d частей. Ошибка: %v", item.Subject.Name, len(receipt.IDs), receipt.Expected, partialErr))
	}

	count := s.gate.Record(s.now())
	metrics.SetPostsToday(count)
	s.bumpCounters(ctx, delta)

	saved, markErr := s.deps.Posted.MarkPosted(ctx, rec, item.ID)
	if markErr != nil {
		s.fail(ctx, "store")
		log.Error().Err(markErr).Str("post_id", rec.ExternalID).Msg("пост опубликован, но не сохранён")
		return published{record: rec, partial: partialErr}, fmt.Errorf("сохранение публикации: %w", markErr)
	}
	if rememberErr := s.deps.Content.Remember(ctx, item.Content); rememberErr != nil {
		log.Warn().Err(rememberErr).Msg("отпечаток не сохранён")
	}
	s.emit(ctx, event)
	log.Info().Str("post_id", rec.ExternalID).Int("posts_today", count).Msg("публикация сохранена")
	return published{record: saved, partial: partialErr}, nil
}

// GenerateNow ручной запуск генерации: ставит текст в очередь без задержки
// или, если publishNow, публикует сразу.
func (s *Service) GenerateNow(ctx context.Context, subjectID int64, publishNow bool) (domain.QueueItem, *domain.PostedRecord, error) {
	if !publishNow {
		item, err := s.Enqueue(ctx, subjectID, false)
		return item, nil, err
	}
	rec, err := s.PublishNow(ctx, subjectID)
	if err != nil {
		return domain.QueueItem{}, nil, err
	}
	return domain.QueueItem{}, &rec, nil
}

// PublishNow генерирует и сразу публикует текст для проекта subjectID (0 означает следующий).
// Дневной лимит не проверяется, но публикация в него засчитывается.
// Если публикация не удалась, текст остаётся в очереди.
func (s *Service) PublishNow(ctx context.Context, subjectID int64) (domain.PostedRecord, error) {
	item, err := s.Enqueue(ctx, subjectID, false)
	if err != nil {
		return domain.PostedRecord{}, err
	}
	res, err := s.publishItem(ctx, item)
	return res.record, err
}

// PublishNextReady публикует первый готовый элемент очереди. Возвращает
// domain.ErrQueueItemNotFound, если очередь пуста.
func (s *Service) PublishNextReady(ctx context.Context) (domain.PostedRecord, error) {
	items, err := s.deps.Queue.ListReady(ctx, s.now())
	if err != nil {
		return domain.PostedRecord{}, fmt.Errorf("чтение очереди: %w", err)
	}
	if len(items) == 0 {
		return domain.PostedRecord{}, domain.ErrQueueItemNotFound
	}
	defer s.refreshQueueDepth(ctx)
	res, err := s.publishItem(ctx, items[0])
	return res.record, err
}

// CronResult ответ внешнего крон-триггера.
type CronResult struct {
	Posted     bool
	Reason     string
	NextPostIn time.Duration
	Record     domain.PostedRecord
}

// RunCron публикует сразу, если с последней публикации прошёл интервал и не исчерпан лимит.
func (s *Service) RunCron(ctx context.Context) (CronResult, error) {
	last, err := s.deps.Posted.LastPostedAt(ctx)
	if err != nil {
		return CronResult{}, fmt.Errorf("время последней публикации: %w", err)
	}
	if last != nil {
		if since := s.now().Sub(*last); since < s.cfg.PostInterval {
			return CronResult{Reason: ErrTooSoon.Error(), NextPostIn: s.cfg.PostInterval - since}, nil
		}
	}
	if !s.gate.CanPost(s.now()) {
		return CronResult{Reason: ErrDailyCapReached.Error()}, nil
	}
	rec, err := s.PublishNow(ctx, 0)
	if err != nil {
		return CronResult{}, err
	}
	return CronResult{Posted: true, Record: rec}, nil
}

// DailyReset сбрасывает дневной лимит, удаляет устаревшие элементы очереди
// и отправляет администратору сводку за прошедший день.
func (s *Service) DailyReset(ctx context.Context) error {
	now := s.now()
	s.gate.Reset(now)
	metrics.SetPostsToday(0)

	removed, err := s.deps.Queue.PurgeStalePending(ctx, now.Add(-s.cfg.StaleAfter))
	if err != nil {
		s.fail(ctx, "store")
		return fmt.Errorf("очистка очереди: %w", err)
	}
	s.refreshQueueDepth(ctx)
	s.logger(ctx).Info().Int64("removed", removed).Msg("дневной сброс выполнен")

	s.sendDailySummary(ctx, now.In(s.cfg.Location).AddDate(0, 0, -1), removed)
	return nil
}

func (s *Service) sendDailySummary(ctx context.Context, day time.Time, removed int64) {
	if s.deps.Notifier == nil {
		return
	}
	send := func() error {
		c, err := s.deps.Counters.GetCounters(ctx, day)
		if err != nil {
			return err
		}
		return s.deps.Notifier.Notify(ctx, fmt.Sprintf(
			"Итоги за %s\nСгенерировано: %d\nОпубликовано: %d\nОшибок: %d\nУдалено устаревших из очереди: %d",
			day.Format(time.DateOnly), c.Generated, c.Published, c.Errors, removed))
	}
	var err error
	if s.deps.Cache != nil {
		err = s.deps.Cache.Once(ctx, "daily-summary:"+day.Format(time.DateOnly), 48*time.Hour, send)
	} else {
		err = send()
	}
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("сводка за день не отправлена")
	}
}

// MaintenanceReport итог еженедельного обслуживания.
type MaintenanceReport struct {
	Purged  int64
	Checked int
	Updated int
	Failed  int
}

// WeeklyMaintenance удаляет старые публикации и обновляет оценки вовлечённости
// за последние дни. Ошибки по отдельным записям пропускаются.
func (s *Service) WeeklyMaintenance(ctx context.Context) (MaintenanceReport, error) {
	now := s.now()
	var report MaintenanceReport
	purged, err := s.deps.Posted.PurgePostedBefore(ctx, now.Add(-s.cfg.PostedRetention))
	if err != nil {
		s.fail(ctx, "store")
		return report, fmt.Errorf("очистка истории: %w", err)
	}
	report.Purged = purged

	records, err := s.deps.Posted.ListForEngagement(ctx, now.Add(-s.cfg.EngagementWindow), s.cfg.EngagementBatch)
	if err != nil {
		s.fail(ctx, "store")
		return report, fmt.Errorf("выборка для вовлечённости: %w", err)
	}
	for _, rec := range records {
		report.Checked++
		m, err := s.deps.Metrics.TweetMetrics(ctx, rec.ExternalID)
		if err != nil {
			report.Failed++
			metrics.IncPipelineError("engagement")
			s.logger(ctx).Warn().Err(err).Str("post_id", rec.ExternalID).Msg("метрики поста недоступны")
			continue
		}
		if err := s.deps.Posted.UpdateEngagement(ctx, rec.ID, m.Score()); err != nil {
			report.Failed++
			s.logger(ctx).Warn().Err(err).Int64("posted_id", rec.ID).Msg("оценка вовлечённости не сохранена")
			continue
		}
		report.Updated++
	}
	s.logger(ctx).Info().
		Int64("purged", report.Purged).
		Int("checked", report.Checked).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Msg("еженедельное обслуживание выполнено")
	return report, nil
}

// DeleteQueueItem удаляет элемент очереди вручную.
func (s *Service) DeleteQueueItem(ctx context.Context, id int64) error {
	if err := s.deps.Queue.DeleteQueueItem(ctx, id); err != nil {
		return err
	}
	s.refreshQueueDepth(ctx)
	return nil
}

// Pause останавливает выполнение задач по расписанию.
func (s *Service) Pause() {
	s.paused.Store(true)
	s.log.Info().Msg("планировщик приостановлен")
}

// Resume возобновляет выполнение задач по расписанию.
func (s *Service) Resume() {
	s.paused.Store(false)
	s.log.Info().Msg("планировщик возобновлён")
}

// Paused сообщает, приостановлен ли планировщик.
func (s *Service) Paused() bool {
	return s.paused.Load()
}

func (s *Service) refreshQueueDepth(ctx context.Context) {
	n, err := s.deps.Queue.CountPending(ctx)
	if err != nil {
		return
	}
	metrics.SetQueueDepth(n)
}

func (s *Service) emit(ctx context.Context, event domain.PostEvent) {
	if s.deps.Events == nil {
		return
	}
	if event.RunID == "" {
		event.RunID = runIDFrom(ctx)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.deps.Events.Publish(ctx, event); err != nil {
		s.logger(ctx).Warn().Err(err).Str("event", string(event.Type)).Msg("событие не отправлено")
	}
}

func (s *Service) notify(ctx context.Context, text string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, text); err != nil {
		s.logger(ctx).Warn().Err(err).Msg("уведомление не отправлено")
	}
}

func contentType(text string) string {
	if publish.IsThread(text) {
		return domain.ContentTypeThread
	}
	return domain.ContentTypeSingle
}

func randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
)

// Имена задач планировщика.
const (
	JobGenerate = "generate"
	JobDrain    = "drain_queue"
	JobDaily    = "daily_reset"
	JobWeekly   = "weekly_maintenance"
)

const (
	dailySpec  = "0 0 * * *"
	weeklySpec = "0 2 * * 0"
	jobTimeout = 30 * time.Minute
)

type runIDKey struct{}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Start регистрирует задачи и запускает планировщик. Генерация выполняется
// сразу после старта и затем каждые PostInterval.
func (s *Service) Start(ctx context.Context) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron != nil {
		return errors.New("планировщик уже запущен")
	}

	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.baseCtx = ctx

	s.entries[JobGenerate] = c.Schedule(cron.Every(s.cfg.PostInterval), s.job(JobGenerate, func(ctx context.Context) error {
		_, err := s.GenerateAndQueue(ctx)
		if errors.Is(err, ErrDailyCapReached) || errors.Is(err, domain.ErrNoSubject) || errors.Is(err, domain.ErrNoContent) {
			return nil
		}
		return err
	}))
	s.entries[JobDrain] = c.Schedule(cron.Every(s.cfg.QueuePollInterval), s.job(JobDrain, func(ctx context.Context) error {
		_, err := s.ProcessQueue(ctx)
		return err
	}))
	id, err := c.AddJob(dailySpec, s.job(JobDaily, s.DailyReset))
	if err != nil {
		return err
	}
	s.entries[JobDaily] = id
	id, err = c.AddJob(weeklySpec, s.job(JobWeekly, func(ctx context.Context) error {
		_, err := s.WeeklyMaintenance(ctx)
		return err
	}))
	if err != nil {
		return err
	}
	s.entries[JobWeekly] = id

	s.cron = c
	c.Start()
	go c.Entry(s.entries[JobGenerate]).WrappedJob.Run()

	s.log.Info().
		Dur("post_interval", s.cfg.PostInterval).
		Dur("queue_poll_interval", s.cfg.QueuePollInterval).
		Int("max_posts_per_day", s.cfg.MaxPostsPerDay).
		Str("tz", s.cfg.Location.String()).
		Msg("планировщик запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения выполняющихся задач.
func (s *Service) Stop(ctx context.Context) error {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		s.log.Info().Msg("планировщик остановлен")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// job оборачивает задачу: пропуск на паузе, run_id в логах, таймаут и метрики.
func (s *Service) job(name string, fn func(ctx context.Context) error) cron.Job {
	return cron.FuncJob(func() {
		if s.Paused() {
			s.log.Debug().Str("job", name).Msg("планировщик на паузе, задача пропущена")
			return
		}
		runID := uuid.NewString()
		logger := s.log.With().Str("job", name).Str("run_id", runID).Logger()
		ctx, cancel := context.WithTimeout(s.baseCtx, jobTimeout)
		defer cancel()
		ctx = context.WithValue(logger.WithContext(ctx), runIDKey{}, runID)

		start := time.Now()
		err := fn(ctx)
		metrics.ObserveJob(name, start, err)
		if err != nil {
			logger.Error().Err(err).Dur("took", time.Since(start)).Msg("задача завершилась с ошибкой")
			return
		}
		logger.Debug().Dur("took", time.Since(start)).Msg("задача выполнена")
	})
}

// JobState состояние задачи планировщика.
type JobState struct {
	Name string    `json:"name"`
	Next time.Time `json:"next_run"`
	Prev time.Time `json:"prev_run,omitempty"`
}

// Status снимок состояния планировщика.
type Status struct {
	Running      bool       `json:"running"`
	Paused       bool       `json:"paused"`
	PostsToday   int        `json:"posts_today"`
	MaxPerDay    int        `json:"max_posts_per_day"`
	Day          string     `json:"day"`
	PostInterval string     `json:"post_interval"`
	Jobs         []JobState `json:"jobs"`
}

// Status возвращает состояние планировщика и ближайшие запуски задач.
func (s *Service) Status() Status {
	count, limit, day := s.gate.Snapshot(s.now())
	st := Status{
		Paused:       s.Paused(),
		PostsToday:   count,
		MaxPerDay:    limit,
		Day:          day,
		PostInterval: s.cfg.PostInterval.String(),
	}

	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron == nil {
		return st
	}
	st.Running = true
	for _, name := range []string{JobGenerate, JobDrain, JobDaily, JobWeekly} {
		id, ok := s.entries[name]
		if !ok {
			continue
		}
		e := s.cron.Entry(id)
		st.Jobs = append(st.Jobs, JobState{Name: name, Next: e.Next, Prev: e.Prev})
	}
	return st
}

// cronLogger направляет журнал robfig/cron в zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

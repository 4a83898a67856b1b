package domain

import (
	"context"
	"time"
)

// SubjectRepo управляет каталогом проектов.
type SubjectRepo interface {
	SeedSubjects(ctx context.Context, subjects []Subject) (int, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	GetSubject(ctx context.Context, id int64) (Subject, error)
}

// QueueRepo управляет очередью сгенерированного контента.
type QueueRepo interface {
	Enqueue(ctx context.Context, item QueueItem) (QueueItem, error)
	ListReady(ctx context.Context, now time.Time) ([]QueueItem, error)
	CountPending(ctx context.Context) (int, error)
	DeleteQueueItem(ctx context.Context, id int64) error
	PurgeStalePending(ctx context.Context, createdBefore time.Time) (int64, error)
}

// PostedRepo хранит историю публикаций.
type PostedRepo interface {
	// MarkPosted атомарно сохраняет запись, обновляет проект и удаляет элемент очереди.
	// queueItemID == 0 означает публикацию в обход очереди.
	MarkPosted(ctx context.Context, rec PostedRecord, queueItemID int64) (PostedRecord, error)
	RecentContent(ctx context.Context, subjectID int64, since time.Time, limit int) ([]string, error)
	ListRecentPosted(ctx context.Context, limit int) ([]PostedRecord, error)
	ListForEngagement(ctx context.Context, since time.Time, limit int) ([]PostedRecord, error)
	UpdateEngagement(ctx context.Context, id int64, score int) error
	PurgePostedBefore(ctx context.Context, before time.Time) (int64, error)
	LastPostedAt(ctx context.Context) (*time.Time, error)
	PostingStats(ctx context.Context, since time.Time) (PostingStats, error)
	CountBySubjectSince(ctx context.Context, since time.Time) (map[int64]int, error)
}

// CounterRepo ведёт дневные счётчики.
type CounterRepo interface {
	IncrementCounters(ctx context.Context, day time.Time, delta CounterDelta) error
	GetCounters(ctx context.Context, day time.Time) (DailyCounters, error)
	ListCounters(ctx context.Context, since time.Time) ([]DailyCounters, error)
}

// TextGenerator генерирует текст по промпту.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, sampling Sampling) (string, error)
	Name() string
}

// PostClient публикует пост, опционально как ответ на parentID.
type PostClient interface {
	CreatePost(ctx context.Context, text, parentID string) (string, error)
}

// PlatformClient полный клиент платформы публикаций.
type PlatformClient interface {
	PostClient
	Me(ctx context.Context) (PlatformAccount, error)
	TweetMetrics(ctx context.Context, id string) (TweetMetrics, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// EventPublisher отправляет события публикаций во внешнюю шину.
type EventPublisher interface {
	Publish(ctx context.Context, event PostEvent) error
}

// Notifier отправляет служебные уведомления администратору.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

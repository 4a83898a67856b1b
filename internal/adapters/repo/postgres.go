package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SubjectRepo = (*Postgres)(nil)
	_ domain.QueueRepo   = (*Postgres)(nil)
	_ domain.PostedRepo  = (*Postgres)(nil)
	_ domain.CounterRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Ping проверяет соединение с БД.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	err := p.pool.Ping(ctx)
	metrics.ObserveNetworkRequest("postgres", "ping", "pool", start, err)
	return err
}

// SeedSubjects добавляет проекты каталога, уже существующие по имени пропускаются.
func (p *Postgres) SeedSubjects(ctx context.Context, subjects []domain.Subject) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "subjects", start, err)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, s := range subjects {
		start = time.Now()
		tag, err := tx.Exec(ctx, `
INSERT INTO subjects (name, website, handle, description, category, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO NOTHING
`, s.Name, s.Website, s.Handle, s.Description, s.Category, s.IsActive)
		metrics.ObserveNetworkRequest("postgres", "seed_subject", "subjects", start, err)
		if err != nil {
			return 0, fmt.Errorf("добавление проекта %s: %w", s.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

const subjectColumns = `id, name, website, handle, description, category, added_date, last_posted, post_count, is_active`

func scanSubject(row pgx.Row) (domain.Subject, error) {
	var (
		s          domain.Subject
		lastPosted sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Website, &s.Handle, &s.Description, &s.Category, &s.AddedAt, &lastPosted, &s.PostCount, &s.IsActive); err != nil {
		return domain.Subject{}, err
	}
	if lastPosted.Valid {
		t := lastPosted.Time
		s.LastPosted = &t
	}
	return s, nil
}

// ListSubjects возвращает все проекты каталога.
func (p *Postgres) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY id`)
	metrics.ObserveNetworkRequest("postgres", "list_subjects", "subjects", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSubject возвращает проект по идентификатору.
func (p *Postgres) GetSubject(ctx context.Context, id int64) (domain.Subject, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	s, err := scanSubject(p.pool.QueryRow(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "get_subject", "subjects", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subject{}, domain.ErrSubjectNotFound
	}
	return s, err
}

// Enqueue ставит текст в очередь. Время публикации не бывает раньше времени создания.
func (p *Postgres) Enqueue(ctx context.Context, item domain.QueueItem) (domain.QueueItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	item = normalizeQueueItem(item, time.Now())
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO queue (subject_id, content, content_type, scheduled_time, status, created_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, item.SubjectID, item.Content, item.ContentType, item.ScheduledAt, string(item.Status), item.CreatedAt).Scan(&item.ID)
	metrics.ObserveNetworkRequest("postgres", "enqueue", "queue", start, err)
	if err != nil {
		return domain.QueueItem{}, err
	}
	return item, nil
}

func normalizeQueueItem(item domain.QueueItem, now time.Time) domain.QueueItem {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.ScheduledAt.Before(item.CreatedAt) {
		item.ScheduledAt = item.CreatedAt
	}
	if item.Status == "" {
		item.Status = domain.QueueStatusPending
	}
	if item.ContentType == "" {
		item.ContentType = domain.ContentTypeSingle
	}
	return item
}

// ListReady возвращает элементы очереди, время публикации которых наступило.
func (p *Postgres) ListReady(ctx context.Context, now time.Time) ([]domain.QueueItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT q.id, q.subject_id, q.content, q.content_type, q.scheduled_time, q.status, q.created_date,
       s.name, s.website, s.handle, s.category
FROM queue q
JOIN subjects s ON s.id = q.subject_id
WHERE q.status = 'pending' AND q.scheduled_time <= $1
ORDER BY q.scheduled_time, q.id
`, now)
	metrics.ObserveNetworkRequest("postgres", "list_ready", "queue", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		var (
			item   domain.QueueItem
			status string
		)
		if err := rows.Scan(&item.ID, &item.SubjectID, &item.Content, &item.ContentType, &item.ScheduledAt, &status, &item.CreatedAt,
			&item.Subject.Name, &item.Subject.Website, &item.Subject.Handle, &item.Subject.Category); err != nil {
			return nil, err
		}
		item.Status = domain.QueueStatus(status)
		item.Subject.ID = item.SubjectID
		out = append(out, item)
	}
	return out, rows.Err()
}

// CountPending возвращает количество ожидающих элементов.
func (p *Postgres) CountPending(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var n int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM queue WHERE status = 'pending'`).Scan(&n)
	metrics.ObserveNetworkRequest("postgres", "count_pending", "queue", start, err)
	return n, err
}

// DeleteQueueItem удаляет элемент очереди.
func (p *Postgres) DeleteQueueItem(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM queue WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "delete_queue_item", "queue", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQueueItemNotFound
	}
	return nil
}

// PurgeStalePending удаляет ожидающие элементы, созданные раньше createdBefore.
func (p *Postgres) PurgeStalePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM queue WHERE status = 'pending' AND created_date < $1`, createdBefore)
	metrics.ObserveNetworkRequest("postgres", "purge_stale_pending", "queue", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkPosted в одной транзакции сохраняет публикацию, обновляет проект и удаляет элемент очереди.
func (p *Postgres) MarkPosted(ctx context.Context, rec domain.PostedRecord, queueItemID int64) (domain.PostedRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}
	if rec.ContentType == "" {
		rec.ContentType = domain.ContentTypeSingle
	}

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "posted", start, err)
	if err != nil {
		return domain.PostedRecord{}, err
	}
	defer tx.Rollback(ctx)

	externalID := sql.NullString{String: rec.ExternalID, Valid: rec.ExternalID != ""}
	start = time.Now()
	err = tx.QueryRow(ctx, `
INSERT INTO posted (subject_id, content, external_id, posted_date, engagement_score, content_type)
VALUES ($1, $2, $3, $4, 0, $5)
RETURNING id
`, rec.SubjectID, rec.Content, externalID, rec.PostedAt, rec.ContentType).Scan(&rec.ID)
	metrics.ObserveNetworkRequest("postgres", "insert_posted", "posted", start, err)
	if err != nil {
		return domain.PostedRecord{}, fmt.Errorf("сохранение публикации: %w", err)
	}

	start = time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE subjects SET last_posted = $2, post_count = post_count + 1
WHERE id = $1
`, rec.SubjectID, rec.PostedAt)
	metrics.ObserveNetworkRequest("postgres", "bump_subject", "subjects", start, err)
	if err != nil {
		return domain.PostedRecord{}, fmt.Errorf("обновление проекта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.PostedRecord{}, domain.ErrSubjectNotFound
	}

	if queueItemID > 0 {
		start = time.Now()
		_, err = tx.Exec(ctx, `DELETE FROM queue WHERE id = $1`, queueItemID)
		metrics.ObserveNetworkRequest("postgres", "remove_queue_item", "queue", start, err)
		if err != nil {
			return domain.PostedRecord{}, fmt.Errorf("удаление из очереди: %w", err)
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "posted", start, err)
	if err != nil {
		return domain.PostedRecord{}, err
	}
	return rec, nil
}

// RecentContent возвращает тексты последних публикаций проекта.
func (p *Postgres) RecentContent(ctx context.Context, subjectID int64, since time.Time, limit int) ([]string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT content FROM posted
WHERE subject_id = $1 AND posted_date >= $2
ORDER BY posted_date DESC
LIMIT $3
`, subjectID, since, limit)
	metrics.ObserveNetworkRequest("postgres", "recent_content", "posted", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) listPosted(ctx context.Context, op, where string, args ...any) ([]domain.PostedRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT p.id, p.subject_id, s.name, p.content, p.external_id, p.posted_date, p.engagement_score, p.content_type
FROM posted p
JOIN subjects s ON s.id = p.subject_id
`+where, args...)
	metrics.ObserveNetworkRequest("postgres", op, "posted", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PostedRecord
	for rows.Next() {
		var (
			rec        domain.PostedRecord
			externalID sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.SubjectName, &rec.Content, &externalID, &rec.PostedAt, &rec.EngagementScore, &rec.ContentType); err != nil {
			return nil, err
		}
		rec.ExternalID = externalID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListRecentPosted возвращает последние публикации.
func (p *Postgres) ListRecentPosted(ctx context.Context, limit int) ([]domain.PostedRecord, error) {
	return p.listPosted(ctx, "list_recent_posted", `ORDER BY p.posted_date DESC LIMIT $1`, limit)
}

// ListForEngagement возвращает публикации с внешним идентификатором для обновления вовлечённости.
func (p *Postgres) ListForEngagement(ctx context.Context, since time.Time, limit int) ([]domain.PostedRecord, error) {
	return p.listPosted(ctx, "list_for_engagement", `
WHERE p.posted_date >= $1 AND p.external_id IS NOT NULL AND p.external_id <> ''
ORDER BY p.posted_date DESC
LIMIT $2`, since, limit)
}

// UpdateEngagement сохраняет оценку вовлечённости, не уменьшая её.
func (p *Postgres) UpdateEngagement(ctx context.Context, id int64, score int) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	if score < 0 {
		score = 0
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE posted SET engagement_score = GREATEST(engagement_score, $2) WHERE id = $1`, id, score)
	metrics.ObserveNetworkRequest("postgres", "update_engagement", "posted", start, err)
	return err
}

// PurgePostedBefore удаляет публикации старше before.
func (p *Postgres) PurgePostedBefore(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM posted WHERE posted_date < $1`, before)
	metrics.ObserveNetworkRequest("postgres", "purge_posted", "posted", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LastPostedAt возвращает время последней публикации или nil.
func (p *Postgres) LastPostedAt(ctx context.Context) (*time.Time, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var last sql.NullTime
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT max(posted_date) FROM posted`).Scan(&last)
	metrics.ObserveNetworkRequest("postgres", "last_posted_at", "posted", start, err)
	if err != nil || !last.Valid {
		return nil, err
	}
	t := last.Time
	return &t, nil
}

// PostingStats собирает сводку публикаций начиная с since.
func (p *Postgres) PostingStats(ctx context.Context, since time.Time) (domain.PostingStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var stats domain.PostingStats
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM posted WHERE posted_date >= $1`, since).Scan(&stats.TotalPosts)
	metrics.ObserveNetworkRequest("postgres", "stats_total", "posted", start, err)
	if err != nil {
		return domain.PostingStats{}, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT s.id, s.name, count(p.id)
FROM subjects s
JOIN posted p ON p.subject_id = s.id AND p.posted_date >= $1
GROUP BY s.id, s.name
ORDER BY count(p.id) DESC, s.id
`, since)
	metrics.ObserveNetworkRequest("postgres", "stats_by_subject", "posted", start, err)
	if err != nil {
		return domain.PostingStats{}, err
	}
	for rows.Next() {
		var c domain.SubjectCount
		if err := rows.Scan(&c.SubjectID, &c.Name, &c.Posts); err != nil {
			rows.Close()
			return domain.PostingStats{}, err
		}
		stats.BySubject = append(stats.BySubject, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.PostingStats{}, err
	}

	start = time.Now()
	rows, err = p.pool.Query(ctx, `
SELECT to_char(date(posted_date), 'YYYY-MM-DD'), count(*)
FROM posted
WHERE posted_date >= $1
GROUP BY 1
ORDER BY 1 DESC
`, since)
	metrics.ObserveNetworkRequest("postgres", "stats_by_day", "posted", start, err)
	if err != nil {
		return domain.PostingStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.DayCount
		if err := rows.Scan(&d.Date, &d.Posts); err != nil {
			return domain.PostingStats{}, err
		}
		stats.ByDay = append(stats.ByDay, d)
	}
	return stats, rows.Err()
}

// CountBySubjectSince возвращает количество публикаций по проектам начиная с since.
func (p *Postgres) CountBySubjectSince(ctx context.Context, since time.Time) (map[int64]int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT subject_id, count(*) FROM posted WHERE posted_date >= $1 GROUP BY subject_id`, since)
	metrics.ObserveNetworkRequest("postgres", "count_by_subject", "posted", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// IncrementCounters прибавляет delta к счётчикам дня, создавая строку при необходимости.
func (p *Postgres) IncrementCounters(ctx context.Context, day time.Time, delta domain.CounterDelta) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO daily_counters (date, generated, published, errors, last_updated)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (date) DO UPDATE SET
	generated = daily_counters.generated + EXCLUDED.generated,
	published = daily_counters.published + EXCLUDED.published,
	errors = daily_counters.errors + EXCLUDED.errors,
	last_updated = now()
`, dayKey(day), delta.Generated, delta.Published, delta.Errors)
	metrics.ObserveNetworkRequest("postgres", "increment_counters", "daily_counters", start, err)
	return err
}

// GetCounters возвращает счётчики дня, для дня без записей нулевые.
func (p *Postgres) GetCounters(ctx context.Context, day time.Time) (domain.DailyCounters, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	c := domain.DailyCounters{Date: dayKey(day)}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT generated, published, errors, last_updated FROM daily_counters WHERE date = $1
`, dayKey(day)).Scan(&c.Generated, &c.Published, &c.Errors, &c.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "get_counters", "daily_counters", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	return c, err
}

// ListCounters возвращает счётчики начиная с since, новые первыми.
func (p *Postgres) ListCounters(ctx context.Context, since time.Time) ([]domain.DailyCounters, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT date, generated, published, errors, last_updated
FROM daily_counters
WHERE date >= $1
ORDER BY date DESC
`, dayKey(since))
	metrics.ObserveNetworkRequest("postgres", "list_counters", "daily_counters", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyCounters
	for rows.Next() {
		var c domain.DailyCounters
		if err := rows.Scan(&c.Date, &c.Generated, &c.Published, &c.Errors, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// dayKey приводит момент времени к календарной дате в его часовом поясе.
func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

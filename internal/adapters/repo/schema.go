package repo

import (
	"context"
	"fmt"
	"time"

	"analysis-bot/internal/infra/metrics"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	website TEXT NOT NULL DEFAULT '',
	handle TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	added_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_posted TIMESTAMPTZ,
	post_count INTEGER NOT NULL DEFAULT 0 CHECK (post_count >= 0),
	is_active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE TABLE IF NOT EXISTS posted (
	id BIGSERIAL PRIMARY KEY,
	subject_id BIGINT NOT NULL REFERENCES subjects(id),
	content TEXT NOT NULL,
	external_id TEXT,
	posted_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	engagement_score INTEGER NOT NULL DEFAULT 0 CHECK (engagement_score >= 0),
	content_type TEXT NOT NULL DEFAULT 'single'
)`,
	`CREATE INDEX IF NOT EXISTS posted_subject_date_idx ON posted (subject_id, posted_date DESC)`,
	`CREATE INDEX IF NOT EXISTS posted_date_idx ON posted (posted_date DESC)`,
	`CREATE TABLE IF NOT EXISTS queue (
	id BIGSERIAL PRIMARY KEY,
	subject_id BIGINT NOT NULL REFERENCES subjects(id),
	content TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'single',
	scheduled_time TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'posted')),
	created_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (scheduled_time >= created_date)
)`,
	`CREATE INDEX IF NOT EXISTS queue_ready_idx ON queue (status, scheduled_time)`,
	`CREATE TABLE IF NOT EXISTS daily_counters (
	date DATE PRIMARY KEY,
	generated INTEGER NOT NULL DEFAULT 0,
	published INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// EnsureSchema создаёт таблицы и индексы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for i, stmt := range schema {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return fmt.Errorf("применение схемы (шаг %d): %w", i+1, err)
		}
	}
	return nil
}

package domain

import "time"

// PostEventType тип события публикации.
type PostEventType string

const (
	// PostEventPublished пост или тред опубликован полностью.
	PostEventPublished PostEventType = "published"
	// PostEventPartial тред опубликован частично.
	PostEventPartial PostEventType = "partial"
	// PostEventFailed публикация не удалась.
	PostEventFailed PostEventType = "failed"
)

// PostEvent событие для внешних потребителей.
type PostEvent struct {
	ID          string        `json:"event_id"`
	RunID       string        `json:"run_id,omitempty"`
	Type        PostEventType `json:"type"`
	SubjectID   int64         `json:"project_id"`
	SubjectName string        `json:"project_name"`
	ExternalIDs []string      `json:"external_ids,omitempty"`
	ContentType string        `json:"content_type"`
	Error       string        `json:"error,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

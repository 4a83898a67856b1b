package domain

import "errors"

var (
	// ErrNoSubject нет проекта, доступного для публикации.
	ErrNoSubject = errors.New("no eligible subject")
	// ErrNoContent генерация не дала пригодного текста.
	ErrNoContent = errors.New("no usable content")
	// ErrDuplicate текст повторяет недавно опубликованный.
	ErrDuplicate = errors.New("duplicate content")
	// ErrForbidden платформа отклонила публикацию (403).
	ErrForbidden = errors.New("platform: forbidden")
	// ErrRateLimited платформа ограничила частоту запросов (429).
	ErrRateLimited = errors.New("platform: rate limited")
	// ErrContentTooShort текст короче минимально допустимого.
	ErrContentTooShort = errors.New("content too short")
	// ErrSubjectNotFound проект не найден.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrQueueItemNotFound элемент очереди не найден.
	ErrQueueItemNotFound = errors.New("queue item not found")
)

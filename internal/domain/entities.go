package domain

import "time"

// Subject описывает проект из каталога, о котором публикуется контент.
type Subject struct {
	ID          int64
	Name        string
	Website     string
	Handle      string
	Description string
	Category    string
	AddedAt     time.Time
	LastPosted  *time.Time
	PostCount   int
	IsActive    bool
}

// QueueStatus статус элемента очереди публикаций.
type QueueStatus string

const (
	// QueueStatusPending элемент ждёт публикации.
	QueueStatusPending QueueStatus = "pending"
	// QueueStatusPosted элемент опубликован.
	QueueStatusPosted QueueStatus = "posted"
)

// Типы контента, которые сохраняются в очереди и истории.
const (
	ContentTypeSingle        = "single"
	ContentTypeThread        = "thread"
	ContentTypeThreadPartial = "thread_partial"
)

// QueueItem сгенерированный текст, ожидающий публикации.
type QueueItem struct {
	ID          int64
	SubjectID   int64
	Subject     Subject
	Content     string
	ContentType string
	ScheduledAt time.Time
	Status      QueueStatus
	CreatedAt   time.Time
}

// PostedRecord запись об успешной публикации.
type PostedRecord struct {
	ID              int64
	SubjectID       int64
	SubjectName     string
	Content         string
	ExternalID      string
	ContentType     string
	PostedAt        time.Time
	EngagementScore int
}

// DailyCounters агрегированные счётчики за день.
type DailyCounters struct {
	Date      time.Time
	Generated int
	Published int
	Errors    int
	UpdatedAt time.Time
}

// CounterDelta приращение дневных счётчиков.
type CounterDelta struct {
	Generated int
	Published int
	Errors    int
}

// SubjectCount количество публикаций по проекту.
type SubjectCount struct {
	SubjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Posts     int    `json:"posts"`
}

// DayCount количество публикаций за день.
type DayCount struct {
	Date  string `json:"date"`
	Posts int    `json:"posts"`
}

// PostingStats сводка публикаций за период.
type PostingStats struct {
	TotalPosts int            `json:"total_posts"`
	BySubject  []SubjectCount `json:"posts_by_project"`
	ByDay      []DayCount     `json:"daily_posts"`
}

// TweetMetrics публичные метрики опубликованного поста.
type TweetMetrics struct {
	Likes    int `json:"like_count"`
	Retweets int `json:"retweet_count"`
	Replies  int `json:"reply_count"`
	Quotes   int `json:"quote_count"`
}

// Score считает вовлечённость: ответы весят больше репостов, репосты больше лайков.
func (m TweetMetrics) Score() int {
	return m.Likes + 2*m.Retweets + 3*m.Replies + 2*m.Quotes
}

// PlatformAccount аккаунт, от имени которого публикуются посты.
type PlatformAccount struct {
	ID       string
	Username string
	Name     string
}

// Sampling параметры генерации текста.
type Sampling struct {
	Temperature float32
	TopP        float32
	TopK        int
	MaxTokens   int
}

// PublishReceipt результат публикации одиночного поста или треда.
type PublishReceipt struct {
	IDs      []string
	Parts    []string
	Thread   bool
	Expected int
}

// Primary возвращает идентификатор первого опубликованного поста.
func (r PublishReceipt) Primary() string {
	if len(r.IDs) == 0 {
		return ""
	}
	return r.IDs[0]
}

// Partial сообщает, что тред опубликован не полностью.
func (r PublishReceipt) Partial() bool {
	return r.Thread && len(r.IDs) > 0 && len(r.IDs) < r.Expected
}

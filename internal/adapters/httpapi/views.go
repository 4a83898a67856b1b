package httpapi

import (
	"time"

	"analysis-bot/internal/domain"
)

type projectView struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Website       string     `json:"website"`
	TwitterHandle string     `json:"twitter_handle"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	AddedDate     time.Time  `json:"added_date"`
	LastPosted    *time.Time `json:"last_posted"`
	PostCount     int        `json:"post_count"`
	IsActive      bool       `json:"is_active"`
	RecentPosts   int        `json:"recent_posts"`
}

func newProjectView(s domain.Subject, recent int) projectView {
	return projectView{
		ID:            s.ID,
		Name:          s.Name,
		Website:       s.Website,
		TwitterHandle: s.Handle,
		Description:   s.Description,
		Category:      s.Category,
		AddedDate:     s.AddedAt,
		LastPosted:    s.LastPosted,
		PostCount:     s.PostCount,
		IsActive:      s.IsActive,
		RecentPosts:   recent,
	}
}

type queueView struct {
	ID            int64     `json:"id"`
	ProjectID     int64     `json:"project_id"`
	ProjectName   string    `json:"project_name"`
	Content       string    `json:"content"`
	ContentType   string    `json:"content_type"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Status        string    `json:"status"`
	CreatedDate   time.Time `json:"created_date"`
}

func newQueueView(item domain.QueueItem) queueView {
	return queueView{
		ID:            item.ID,
		ProjectID:     item.SubjectID,
		ProjectName:   item.Subject.Name,
		Content:       item.Content,
		ContentType:   item.ContentType,
		ScheduledTime: item.ScheduledAt,
		Status:        string(item.Status),
		CreatedDate:   item.CreatedAt,
	}
}

type postedView struct {
	ProjectName     string    `json:"project_name"`
	Content         string    `json:"content"`
	TweetID         string    `json:"tweet_id"`
	ContentType     string    `json:"content_type"`
	PostedDate      time.Time `json:"posted_date"`
	EngagementScore int       `json:"engagement_score"`
}

func postedViews(records []domain.PostedRecord) []postedView {
	out := make([]postedView, 0, len(records))
	for _, rec := range records {
		out = append(out, postedView{
			ProjectName:     rec.SubjectName,
			Content:         rec.Content,
			TweetID:         rec.ExternalID,
			ContentType:     rec.ContentType,
			PostedDate:      rec.PostedAt,
			EngagementScore: rec.EngagementScore,
		})
	}
	return out
}

type counters struct {
	Date      string `json:"date"`
	Generated int    `json:"generated"`
	Published int    `json:"published"`
	Errors    int    `json:"errors"`
}

func countersView(c domain.DailyCounters) counters {
	return counters{
		Date:      c.Date.Format(time.DateOnly),
		Generated: c.Generated,
		Published: c.Published,
		Errors:    c.Errors,
	}
}

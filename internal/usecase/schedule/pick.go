package schedule

import (
	"time"

	"analysis-bot/internal/domain"
)

// PickNext выбирает активный проект, который дольше всех не публиковался.
// Проекты без публикаций идут первыми, при равенстве побеждает меньший ID.
// cooldown > 0 исключает проекты, опубликованные позже now-cooldown.
func PickNext(subjects []domain.Subject, now time.Time, cooldown time.Duration) (domain.Subject, error) {
	var (
		best  domain.Subject
		found bool
	)
	for _, s := range subjects {
		if !s.IsActive {
			continue
		}
		if cooldown > 0 && s.LastPosted != nil && s.LastPosted.After(now.Add(-cooldown)) {
			continue
		}
		if !found || postedBefore(s, best) {
			best = s
			found = true
		}
	}
	if !found {
		return domain.Subject{}, domain.ErrNoSubject
	}
	return best, nil
}

func postedBefore(a, b domain.Subject) bool {
	switch {
	case a.LastPosted == nil && b.LastPosted == nil:
		return a.ID < b.ID
	case a.LastPosted == nil:
		return true
	case b.LastPosted == nil:
		return false
	case a.LastPosted.Equal(*b.LastPosted):
		return a.ID < b.ID
	}
	return a.LastPosted.Before(*b.LastPosted)
}

package schedule

import (
	"sync"
	"time"
)

// Gate ограничивает число публикаций за календарный день. Счётчик сбрасывается
// лениво, при первой проверке в новый день. Мьютекс защищает только память:
// между проверкой и публикацией гарантии нет, лимит мягкий.
type Gate struct {
	mu    sync.Mutex
	max   int
	loc   *time.Location
	day   string
	count int
}

// NewGate создаёт гейт с лимитом max публикаций в сутки по часовому поясу loc.
func NewGate(max int, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{max: max, loc: loc}
}

func (g *Gate) dayOf(t time.Time) string {
	return t.In(g.loc).Format(time.DateOnly)
}

func (g *Gate) rollover(now time.Time) {
	if day := g.dayOf(now); day != g.day {
		g.day = day
		g.count = 0
	}
}

// Seed восстанавливает счётчик из сохранённого значения за текущий день.
func (g *Gate) Seed(now time.Time, published int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.day = g.dayOf(now)
	g.count = published
}

// CanPost сообщает, остался ли запас публикаций на сегодня.
func (g *Gate) CanPost(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(now)
	return g.count < g.max
}

// Record учитывает публикацию и возвращает счётчик за день.
func (g *Gate) Record(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(now)
	g.count++
	return g.count
}

// Reset обнуляет счётчик.
func (g *Gate) Reset(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.day = g.dayOf(now)
	g.count = 0
}

// Snapshot возвращает счётчик, лимит и дату последней проверки.
func (g *Gate) Snapshot(now time.Time) (count, limit int, day string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(now)
	return g.count, g.max, g.day
}

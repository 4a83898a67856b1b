// Package httpapi реализует JSON API панели управления ботом.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
	httpinfra "analysis-bot/internal/infra/http"
	"analysis-bot/internal/usecase/schedule"
)

const (
	statsWindow  = 30 * 24 * time.Hour
	recentPosted = 10
)

// Store данные для чтения панелью.
type Store interface {
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	ListReady(ctx context.Context, now time.Time) ([]domain.QueueItem, error)
	CountPending(ctx context.Context) (int, error)
	ListRecentPosted(ctx context.Context, limit int) ([]domain.PostedRecord, error)
	PostingStats(ctx context.Context, since time.Time) (domain.PostingStats, error)
	CountBySubjectSince(ctx context.Context, since time.Time) (map[int64]int, error)
	GetCounters(ctx context.Context, day time.Time) (domain.DailyCounters, error)
}

// Scheduler управляющие операции конвейера.
type Scheduler interface {
	GenerateNow(ctx context.Context, subjectID int64, publishNow bool) (domain.QueueItem, *domain.PostedRecord, error)
	RunCron(ctx context.Context) (schedule.CronResult, error)
	DeleteQueueItem(ctx context.Context, id int64) error
	Pause()
	Resume()
	Status() schedule.Status
}

// Check проверка доступности зависимости для /api/status.
type Check func(ctx context.Context) error

// Handler обработчики панели.
type Handler struct {
	store     Store
	scheduler Scheduler
	checks    map[string]Check
	token     string
	loc       *time.Location
	log       zerolog.Logger
	now       func() time.Time
}

// Options параметры панели.
type Options struct {
	// Token защищает управляющие маршруты. Пустой токен отключает проверку.
	Token    string
	Checks   map[string]Check
	Location *time.Location
}

// NewHandler создаёт обработчики панели.
func NewHandler(store Store, scheduler Scheduler, opts Options, logger zerolog.Logger) *Handler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store:     store,
		scheduler: scheduler,
		checks:    opts.Checks,
		token:     opts.Token,
		loc:       loc,
		log:       logger,
		now:       time.Now,
	}
}

// Mount регистрирует маршруты в r.
func (h *Handler) Mount(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})

	r.Get("/api/stats", h.stats)
	r.Get("/api/projects", h.projects)
	r.Get("/api/queue", h.queue)
	r.Get("/api/status", h.status)

	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.TokenAuthMiddleware(h.token, func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusOK, "Unauthorized")
		}))
		protected.Post("/api/generate", h.generate)
		protected.Get("/api/cron", h.cron)
		protected.Post("/api/cron", h.cron)
		protected.Delete("/api/delete_queue/{id}", h.deleteQueue)
		protected.Post("/api/scheduler/pause", h.pause)
		protected.Post("/api/scheduler/resume", h.resume)
	})
}

// Recoverer отвечает 500 в формате панели, если обработчик паникует.
func Recoverer(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic в обработчике")
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	stats, err := h.store.PostingStats(ctx, now.Add(-statsWindow))
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	recent, err := h.store.ListRecentPosted(ctx, recentPosted)
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	pending, err := h.store.CountPending(ctx)
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	today, err := h.store.GetCounters(ctx, now.In(h.loc))
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	st := h.scheduler.Status()
	writeJSON(w, map[string]any{
		"success":      true,
		"stats":        stats,
		"today":        countersView(today),
		"recent_posts": postedViews(recent),
		"queue_count":  pending,
		"bot_status":   botStatus(st),
		"scheduler":    st,
	})
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjects, err := h.store.ListSubjects(ctx)
	if err != nil {
		h.fail(w, "projects", err)
		return
	}
	recent, err := h.store.CountBySubjectSince(ctx, h.now().Add(-statsWindow))
	if err != nil {
		h.fail(w, "projects", err)
		return
	}
	out := make([]projectView, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, newProjectView(s, recent[s.ID]))
	}
	writeJSON(w, map[string]any{"success": true, "projects": out})
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListReady(r.Context(), h.now())
	if err != nil {
		h.fail(w, "queue", err)
		return
	}
	out := make([]queueView, 0, len(items))
	for _, item := range items {
		out = append(out, newQueueView(item))
	}
	writeJSON(w, map[string]any{"success": true, "queue": out})
}

type generateRequest struct {
	ProjectID  int64 `json:"project_id"`
	PublishNow bool  `json:"publish_now"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusOK, "Invalid request body")
		return
	}
	item, rec, err := h.scheduler.GenerateNow(r.Context(), req.ProjectID, req.PublishNow)
	if err != nil {
		h.log.Error().Err(err).Int64("project_id", req.ProjectID).Msg("ручная генерация не удалась")
		writeError(w, http.StatusOK, generateError(err))
		return
	}
	if rec != nil {
		writeJSON(w, map[string]any{
			"success":  true,
			"message":  fmt.Sprintf("Content generated and posted for %s", rec.SubjectName),
			"tweet_id": rec.ExternalID,
			"project":  rec.SubjectName,
		})
		return
	}
	writeJSON(w, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Content generated and queued for %s", item.Subject.Name),
		"queue":   newQueueView(item),
		"project": item.Subject.Name,
	})
}

func (h *Handler) cron(w http.ResponseWriter, r *http.Request) {
	res, err := h.scheduler.RunCron(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("крон-триггер не удался")
		writeError(w, http.StatusOK, generateError(err))
		return
	}
	if !res.Posted {
		resp := map[string]any{"success": true, "message": cronMessage(res.Reason)}
		if res.NextPostIn > 0 {
			resp["next_post_in"] = res.NextPostIn.Round(time.Second).String()
		}
		writeJSON(w, resp)
		return
	}
	writeJSON(w, map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Content generated and posted for %s", res.Record.SubjectName),
		"tweet_id": res.Record.ExternalID,
		"project":  res.Record.SubjectName,
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]any, len(h.checks)+1)
	for name, check := range h.checks {
		state := "connected"
		if err := check(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("проверка зависимости не прошла")
			state = "error"
		}
		status[name] = state
	}
	st := h.scheduler.Status()
	status["scheduler"] = st
	status["uptime"] = botStatus(st)
	writeJSON(w, map[string]any{"success": true, "status": status})
}

func (h *Handler) deleteQueue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusOK, "Invalid queue id")
		return
	}
	if err := h.scheduler.DeleteQueueItem(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrQueueItemNotFound) {
			writeError(w, http.StatusOK, "Queue item not found")
			return
		}
		h.fail(w, "delete_queue", err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "Queue item deleted"})
}

func (h *Handler) pause(w http.ResponseWriter, _ *http.Request) {
	h.scheduler.Pause()
	writeJSON(w, map[string]any{"success": true, "message": "Scheduler paused"})
}

func (h *Handler) resume(w http.ResponseWriter, _ *http.Request) {
	h.scheduler.Resume()
	writeJSON(w, map[string]any{"success": true, "message": "Scheduler resumed"})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.log.Error().Err(err).Str("op", op).Msg("ошибка обработчика панели")
	writeError(w, http.StatusOK, err.Error())
}

func botStatus(st schedule.Status) string {
	switch {
	case !st.Running:
		return "stopped"
	case st.Paused:
		return "paused"
	}
	return "running"
}

func generateError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoSubject):
		return "No projects available"
	case errors.Is(err, domain.ErrSubjectNotFound):
		return "Project not found"
	case errors.Is(err, domain.ErrNoContent):
		return "Failed to generate content"
	}
	return err.Error()
}

func cronMessage(reason string) string {
	switch reason {
	case schedule.ErrTooSoon.Error():
		return "Too soon since last post"
	case schedule.ErrDailyCapReached.Error():
		return "Daily post limit reached"
	}
	return reason
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

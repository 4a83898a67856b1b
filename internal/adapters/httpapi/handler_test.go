package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/usecase/schedule"
)

type fakeStore struct {
	subjects []domain.Subject
	queue    []domain.QueueItem
	recent   map[int64]int
	err      error
}

func (f *fakeStore) ListSubjects(context.Context) ([]domain.Subject, error) {
	return f.subjects, f.err
}

func (f *fakeStore) ListReady(context.Context, time.Time) ([]domain.QueueItem, error) {
	return f.queue, f.err
}

func (f *fakeStore) CountPending(context.Context) (int, error) {
	return len(f.queue), f.err
}

func (f *fakeStore) ListRecentPosted(context.Context, int) ([]domain.PostedRecord, error) {
	return []domain.PostedRecord{{SubjectName: "Arbitrum", Content: "text", ExternalID: "1"}}, f.err
}

func (f *fakeStore) PostingStats(context.Context, time.Time) (domain.PostingStats, error) {
	return domain.PostingStats{TotalPosts: 4}, f.err
}

func (f *fakeStore) CountBySubjectSince(context.Context, time.Time) (map[int64]int, error) {
	return f.recent, f.err
}

func (f *fakeStore) GetCounters(_ context.Context, day time.Time) (domain.DailyCounters, error) {
	return domain.DailyCounters{Date: day, Published: 2}, f.err
}

type fakeScheduler struct {
	paused     bool
	deleted    []int64
	deleteErr  error
	cron       schedule.CronResult
	genErr     error
	publishNow bool
	subjectID  int64
}

func (f *fakeScheduler) GenerateNow(_ context.Context, subjectID int64, publishNow bool) (domain.QueueItem, *domain.PostedRecord, error) {
	f.subjectID = subjectID
	f.publishNow = publishNow
	if f.genErr != nil {
		return domain.QueueItem{}, nil, f.genErr
	}
	if publishNow {
		return domain.QueueItem{}, &domain.PostedRecord{SubjectName: "Base", ExternalID: "tw-1"}, nil
	}
	return domain.QueueItem{ID: 9, SubjectID: subjectID, Subject: domain.Subject{Name: "Base"}}, nil, nil
}

func (f *fakeScheduler) RunCron(context.Context) (schedule.CronResult, error) {
	return f.cron, nil
}

func (f *fakeScheduler) DeleteQueueItem(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeScheduler) Pause() { f.paused = true }
func (f *fakeScheduler) Resume() { f.paused = false }

func (f *fakeScheduler) Status() schedule.Status {
	return schedule.Status{Running: true, Paused: f.paused, MaxPerDay: 6}
}

func newTestRouter(store *fakeStore, sched *fakeScheduler, token string, checks map[string]Check) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(zerolog.Nop()))
	NewHandler(store, sched, Options{Token: token, Checks: checks}, zerolog.Nop()).Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestStats(t *testing.T) {
	h := newTestRouter(&fakeStore{queue: []domain.QueueItem{{ID: 1}, {ID: 2}}}, &fakeScheduler{}, "", nil)

	code, body := do(t, h, http.MethodGet, "/api/stats", "")
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	if body["queue_count"].(float64) != 2 || body["bot_status"] != "running" {
		t.Fatalf("unexpected stats %v", body)
	}
	stats := body["stats"].(map[string]any)
	if stats["total_posts"].(float64) != 4 {
		t.Fatalf("unexpected total_posts %v", stats)
	}
}

func TestStoreErrorReturnsEnvelope(t *testing.T) {
	h := newTestRouter(&fakeStore{err: errors.New("db down")}, &fakeScheduler{}, "", nil)

	code, body := do(t, h, http.MethodGet, "/api/queue", "")
	if code != http.StatusOK || body["success"] != false || body["error"] != "db down" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
}

func TestProjectsIncludeRecentPosts(t *testing.T) {
	store := &fakeStore{
		subjects: []domain.Subject{{ID: 1, Name: "Arbitrum", Handle: "@arbitrum", IsActive: true}},
		recent:   map[int64]int{1: 3},
	}
	h := newTestRouter(store, &fakeScheduler{}, "", nil)

	_, body := do(t, h, http.MethodGet, "/api/projects", "")
	projects := body["projects"].([]any)
	p := projects[0].(map[string]any)
	if p["recent_posts"].(float64) != 3 || p["twitter_handle"] != "@arbitrum" {
		t.Fatalf("unexpected project %v", p)
	}
}

func TestGenerate(t *testing.T) {
	sched := &fakeScheduler{}
	h := newTestRouter(&fakeStore{}, sched, "", nil)

	_, body := do(t, h, http.MethodPost, "/api/generate", `{"project_id": 5, "publish_now": true}`)
	if body["success"] != true || body["tweet_id"] != "tw-1" {
		t.Fatalf("unexpected response %v", body)
	}
	if sched.subjectID != 5 || !sched.publishNow {
		t.Fatalf("request not passed through: %+v", sched)
	}

	_, body = do(t, h, http.MethodPost, "/api/generate", "")
	if body["success"] != true || body["project"] != "Base" {
		t.Fatalf("unexpected response %v", body)
	}
	if sched.publishNow {
		t.Fatalf("empty body must only queue content")
	}
}

func TestGenerateErrors(t *testing.T) {
	sched := &fakeScheduler{genErr: domain.ErrNoSubject}
	h := newTestRouter(&fakeStore{}, sched, "", nil)

	code, body := do(t, h, http.MethodPost, "/api/generate", "")
	if code != http.StatusOK || body["error"] != "No projects available" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
}

func TestCronTooSoon(t *testing.T) {
	sched := &fakeScheduler{cron: schedule.CronResult{Reason: schedule.ErrTooSoon.Error(), NextPostIn: 90 * time.Minute}}
	h := newTestRouter(&fakeStore{}, sched, "", nil)

	_, body := do(t, h, http.MethodGet, "/api/cron", "")
	if body["success"] != true || body["message"] != "Too soon since last post" || body["next_post_in"] != "1h30m0s" {
		t.Fatalf("unexpected response %v", body)
	}
}

func TestControlRoutesRequireToken(t *testing.T) {
	sched := &fakeScheduler{}
	h := newTestRouter(&fakeStore{}, sched, "secret", nil)

	code, body := do(t, h, http.MethodPost, "/api/scheduler/pause", "")
	if code != http.StatusOK || body["success"] != false || body["error"] != "Unauthorized" {
		t.Fatalf("expected error envelope with 200, got %d %v", code, body)
	}
	if sched.paused {
		t.Fatalf("scheduler must not be paused without token")
	}

	code, _ = do(t, h, http.MethodPost, "/api/scheduler/pause?token=secret", "")
	if code != http.StatusOK || !sched.paused {
		t.Fatalf("expected pause with token, got %d", code)
	}

	code, _ = do(t, h, http.MethodGet, "/api/stats", "")
	if code != http.StatusOK {
		t.Fatalf("read routes must stay open, got %d", code)
	}
}

func TestDeleteQueue(t *testing.T) {
	sched := &fakeScheduler{}
	h := newTestRouter(&fakeStore{}, sched, "", nil)

	_, body := do(t, h, http.MethodDelete, "/api/delete_queue/7", "")
	if body["success"] != true || len(sched.deleted) != 1 || sched.deleted[0] != 7 {
		t.Fatalf("unexpected response %v %v", body, sched.deleted)
	}

	sched.deleteErr = domain.ErrQueueItemNotFound
	_, body = do(t, h, http.MethodDelete, "/api/delete_queue/8", "")
	if body["success"] != false || body["error"] != "Queue item not found" {
		t.Fatalf("unexpected response %v", body)
	}
}

func TestStatusChecks(t *testing.T) {
	checks := map[string]Check{
		"database":    func(context.Context) error { return nil },
		"twitter_api": func(context.Context) error { return errors.New("401") },
	}
	h := newTestRouter(&fakeStore{}, &fakeScheduler{}, "", checks)

	_, body := do(t, h, http.MethodGet, "/api/status", "")
	status := body["status"].(map[string]any)
	if status["database"] != "connected" || status["twitter_api"] != "error" || status["uptime"] != "running" {
		t.Fatalf("unexpected status %v", status)
	}
}

func TestNotFoundAndPanic(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Recoverer(zerolog.Nop()))
	NewHandler(&fakeStore{}, &fakeScheduler{}, Options{}, zerolog.Nop()).Mount(r)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	code, body := do(t, r, http.MethodGet, "/api/unknown", "")
	if code != http.StatusNotFound || body["error"] != "Endpoint not found" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
	code, body = do(t, r, http.MethodGet, "/boom", "")
	if code != http.StatusInternalServerError || body["error"] != "Internal server error" {
		t.Fatalf("unexpected response %d %v", code, body)
	}
}

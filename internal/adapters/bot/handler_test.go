package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/usecase/schedule"
)

type fakeBot struct {
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) last() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

type fakeControl struct {
	paused     bool
	subjectID  int64
	publishNow bool
	deleted    int64
	deleteErr  error
	genErr     error
	cron       schedule.CronResult
}

func (f *fakeControl) GenerateNow(_ context.Context, subjectID int64, publishNow bool) (domain.QueueItem, *domain.PostedRecord, error) {
	f.subjectID, f.publishNow = subjectID, publishNow
	if f.genErr != nil {
		return domain.QueueItem{}, nil, f.genErr
	}
	if publishNow {
		return domain.QueueItem{}, &domain.PostedRecord{SubjectName: "Base", ExternalID: "77"}, nil
	}
	return domain.QueueItem{ID: 5, Subject: domain.Subject{Name: "Base"}}, nil, nil
}

func (f *fakeControl) RunCron(context.Context) (schedule.CronResult, error) {
	return f.cron, nil
}

func (f *fakeControl) DeleteQueueItem(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = id
	return nil
}

func (f *fakeControl) Pause() { f.paused = true }

func (f *fakeControl) Resume() { f.paused = false }

func (f *fakeControl) Status() schedule.Status {
	return schedule.Status{Running: true, Paused: f.paused, PostsToday: 2, MaxPerDay: 6, PostInterval: "3h30m0s"}
}

type fakeReader struct {
	items []domain.QueueItem
}

func (f fakeReader) ListReady(context.Context, time.Time) ([]domain.QueueItem, error) {
	return f.items, nil
}

func (f fakeReader) GetCounters(_ context.Context, day time.Time) (domain.DailyCounters, error) {
	return domain.DailyCounters{Date: day, Generated: 3, Published: 2, Errors: 1}, nil
}

const adminChat = 100

func message(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

func newTestHandler(control *fakeControl, reader fakeReader) (*Handler, *fakeBot) {
	bot := &fakeBot{}
	return NewHandler(bot, zerolog.Nop(), control, reader, adminChat, time.UTC), bot
}

func TestRejectsForeignChat(t *testing.T) {
	control := &fakeControl{}
	h, bot := newTestHandler(control, fakeReader{})

	h.HandleUpdate(context.Background(), message(7, "/pause"))
	if control.paused {
		t.Fatalf("foreign chat must not control the scheduler")
	}
	if bot.last() != "Доступ запрещён" {
		t.Fatalf("unexpected reply %q", bot.last())
	}
}

func TestPauseResume(t *testing.T) {
	control := &fakeControl{}
	h, _ := newTestHandler(control, fakeReader{})

	h.HandleUpdate(context.Background(), message(adminChat, "/pause"))
	if !control.paused {
		t.Fatalf("expected scheduler to be paused")
	}
	h.HandleUpdate(context.Background(), message(adminChat, "/resume@analysis_bot"))
	if control.paused {
		t.Fatalf("expected scheduler to be resumed")
	}
}

func TestGenerateWithProjectID(t *testing.T) {
	control := &fakeControl{}
	h, bot := newTestHandler(control, fakeReader{})

	h.HandleUpdate(context.Background(), message(adminChat, "/post_now 4"))
	if control.subjectID != 4 || !control.publishNow {
		t.Fatalf("unexpected call %+v", control)
	}
	if !strings.Contains(bot.last(), "77") {
		t.Fatalf("reply must contain post id, got %q", bot.last())
	}

	h.HandleUpdate(context.Background(), message(adminChat, "/generate abc"))
	if !strings.Contains(bot.last(), "/generate 3") {
		t.Fatalf("expected usage hint, got %q", bot.last())
	}
}

func TestGenerateDescribesError(t *testing.T) {
	control := &fakeControl{genErr: domain.ErrNoSubject}
	h, bot := newTestHandler(control, fakeReader{})

	h.HandleUpdate(context.Background(), message(adminChat, "/generate"))
	if bot.last() != "Не удалось: нет доступных проектов" {
		t.Fatalf("unexpected reply %q", bot.last())
	}
}

func TestQueueAndDelete(t *testing.T) {
	control := &fakeControl{}
	reader := fakeReader{items: []domain.QueueItem{{ID: 12, Subject: domain.Subject{Name: "Arbitrum"}, ContentType: "single", Content: strings.Repeat("x", 200)}}}
	h, bot := newTestHandler(control, reader)

	h.HandleUpdate(context.Background(), message(adminChat, "/queue"))
	if !strings.Contains(bot.last(), "#12 Arbitrum") || !strings.HasSuffix(bot.last(), "…") {
		t.Fatalf("unexpected queue reply %q", bot.last())
	}

	h.HandleUpdate(context.Background(), message(adminChat, "/delete #12"))
	if control.deleted != 12 {
		t.Fatalf("expected item 12 deleted, got %d", control.deleted)
	}

	control.deleteErr = domain.ErrQueueItemNotFound
	h.HandleUpdate(context.Background(), message(adminChat, "/delete 13"))
	if bot.last() != "Элемент #13 не найден" {
		t.Fatalf("unexpected reply %q", bot.last())
	}
}

func TestStatusAndCallback(t *testing.T) {
	control := &fakeControl{}
	h, bot := newTestHandler(control, fakeReader{})

	h.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    "status",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: adminChat}},
	}})
	if bot.requests != 1 {
		t.Fatalf("callback must be answered")
	}
	reply := bot.last()
	if !strings.Contains(reply, "2 из 6") || !strings.Contains(reply, "ошибок: 1") {
		t.Fatalf("unexpected status %q", reply)
	}
}

func TestCronTooSoon(t *testing.T) {
	control := &fakeControl{cron: schedule.CronResult{Reason: schedule.ErrTooSoon.Error(), NextPostIn: 90 * time.Minute}}
	h, bot := newTestHandler(control, fakeReader{})

	h.HandleUpdate(context.Background(), message(adminChat, "/cron"))
	if bot.last() != "Слишком рано, следующая публикация через 1h30m0s" {
		t.Fatalf("unexpected reply %q", bot.last())
	}
}

package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestNotifySplitsLongText(t *testing.T) {
	bot := &fakeSender{}
	n := NewNotifier(bot, 42)
	text := strings.Repeat("line\n", 1200)
	if err := n.Notify(context.Background(), text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(bot.sent))
	}
	if bot.sent[0].ChatID != 42 {
		t.Fatalf("unexpected chat id %d", bot.sent[0].ChatID)
	}
}

func TestNotifyReturnsSendError(t *testing.T) {
	n := &Notifier{bot: &fakeSender{err: errors.New("blocked")}, chatID: 1}
	if err := n.Notify(context.Background(), "hi"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNotifyStopsOnCancelledContext(t *testing.T) {
	bot := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewNotifier(bot, 7).Notify(ctx, "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(bot.sent) != 0 {
		t.Fatalf("nothing must be sent after cancel")
	}
}

// Package telegram отправляет служебные уведомления администратору через Bot API.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
)

var _ domain.Notifier = (*Notifier)(nil)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier пишет сообщения в чат администратора.
type Notifier struct {
	bot    sender
	chatID int64
}

// NewNotifier создаёт уведомитель поверх готового клиента Bot API.
func NewNotifier(bot sender, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// Notify отправляет текст, при необходимости несколькими сообщениями.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, messageLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "send_message", "admin", start, err)
		if err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

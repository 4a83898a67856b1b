// Package bot принимает команды администратора в Telegram и управляет конвейером.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"analysis-bot/internal/adapters/telegram"
	"analysis-bot/internal/domain"
	"analysis-bot/internal/infra/metrics"
	"analysis-bot/internal/usecase/schedule"
)

const queuePreviewRunes = 120

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Control операции конвейера, доступные из бота.
type Control interface {
	GenerateNow(ctx context.Context, subjectID int64, publishNow bool) (domain.QueueItem, *domain.PostedRecord, error)
	RunCron(ctx context.Context) (schedule.CronResult, error)
	DeleteQueueItem(ctx context.Context, id int64) error
	Pause()
	Resume()
	Status() schedule.Status
}

// Reader данные для ответов бота.
type Reader interface {
	ListReady(ctx context.Context, now time.Time) ([]domain.QueueItem, error)
	GetCounters(ctx context.Context, day time.Time) (domain.DailyCounters, error)
}

// Handler обслуживает апдейты бота. Команды принимаются только из чата администратора.
type Handler struct {
	bot     botAPI
	log     zerolog.Logger
	control Control
	store   Reader
	adminID int64
	loc     *time.Location
	now     func() time.Time
}

// NewHandler создаёт обработчик.
func NewHandler(bot botAPI, log zerolog.Logger, control Control, store Reader, adminChatID int64, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		bot:     bot,
		log:     log,
		control: control,
		store:   store,
		adminID: adminChatID,
		loc:     loc,
		now:     time.Now,
	}
}

// Run читает апдейты до отмены ctx или закрытия канала.
func (h *Handler) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) allowed(chatID int64) bool {
	return h.adminID != 0 && chatID == h.adminID
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !h.allowed(chatID) {
		h.log.Warn().Int64("chat_id", chatID).Msg("команда из чужого чата отклонена")
		h.reply(chatID, "Доступ запрещён", nil)
		return
	}
	text := strings.TrimSpace(msg.Text)
	command, payload, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	payload = strings.TrimSpace(payload)

	switch command {
	case "/start", "/help":
		h.reply(chatID, helpMessage(), mainKeyboard())
	case "/status":
		h.handleStatus(ctx, chatID)
	case "/queue":
		h.handleQueue(ctx, chatID)
	case "/pause":
		h.control.Pause()
		h.reply(chatID, "⏸ Планировщик приостановлен", nil)
	case "/resume":
		h.control.Resume()
		h.reply(chatID, "▶️ Планировщик возобновлён", nil)
	case "/generate":
		h.handleGenerate(ctx, chatID, payload, false)
	case "/post_now":
		h.handleGenerate(ctx, chatID, payload, true)
	case "/cron":
		h.handleCron(ctx, chatID)
	case "/delete":
		h.handleDelete(ctx, chatID, payload)
	default:
		h.reply(chatID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	if h.allowed(chatID) {
		switch cb.Data {
		case "status":
			h.handleStatus(ctx, chatID)
		case "queue":
			h.handleQueue(ctx, chatID)
		case "pause":
			h.control.Pause()
			h.reply(chatID, "⏸ Планировщик приостановлен", nil)
		case "resume":
			h.control.Resume()
			h.reply(chatID, "▶️ Планировщик возобновлён", nil)
		case "generate":
			h.handleGenerate(ctx, chatID, "", false)
		case "cron":
			h.handleCron(ctx, chatID)
		}
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleStatus(ctx context.Context, chatID int64) {
	st := h.control.Status()
	state := "работает"
	switch {
	case !st.Running:
		state = "остановлен"
	case st.Paused:
		state = "на паузе"
	}
	lines := []string{
		fmt.Sprintf("Планировщик: %s", state),
		fmt.Sprintf("Публикаций сегодня: %d из %d", st.PostsToday, st.MaxPerDay),
		fmt.Sprintf("Интервал генерации: %s", st.PostInterval),
	}
	if c, err := h.store.GetCounters(ctx, h.now().In(h.loc)); err != nil {
		h.log.Warn().Err(err).Msg("счётчики недоступны")
	} else {
		lines = append(lines, fmt.Sprintf("Сгенерировано: %d, опубликовано: %d, ошибок: %d", c.Generated, c.Published, c.Errors))
	}
	for _, job := range st.Jobs {
		if job.Next.IsZero() {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s: %s", job.Name, job.Next.In(h.loc).Format("02.01 15:04")))
	}
	h.reply(chatID, strings.Join(lines, "\n"), mainKeyboard())
}

func (h *Handler) handleQueue(ctx context.Context, chatID int64) {
	items, err := h.store.ListReady(ctx, h.now())
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось прочитать очередь")
		h.reply(chatID, "Не удалось прочитать очередь", nil)
		return
	}
	if len(items) == 0 {
		h.reply(chatID, "Очередь пуста", nil)
		return
	}
	lines := []string{fmt.Sprintf("Готово к публикации: %d", len(items))}
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("#%d %s [%s]: %s", item.ID, item.Subject.Name, item.ContentType, preview(item.Content)))
	}
	h.reply(chatID, strings.Join(lines, "\n\n"), nil)
}

func (h *Handler) handleGenerate(ctx context.Context, chatID int64, payload string, publishNow bool) {
	var subjectID int64
	if payload != "" {
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil || id <= 0 {
			h.reply(chatID, "Укажите числовой ID проекта, например /generate 3", nil)
			return
		}
		subjectID = id
	}
	item, rec, err := h.control.GenerateNow(ctx, subjectID, publishNow)
	if err != nil {
		h.log.Error().Err(err).Int64("project_id", subjectID).Msg("генерация из бота не удалась")
		h.reply(chatID, "Не удалось: "+describeError(err), nil)
		return
	}
	if rec != nil {
		h.reply(chatID, fmt.Sprintf("✅ Опубликовано для %s, id %s", rec.SubjectName, rec.ExternalID), nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("📝 В очереди #%d для %s, публикация после %s",
		item.ID, item.Subject.Name, item.ScheduledAt.In(h.loc).Format("15:04")), nil)
}

func (h *Handler) handleCron(ctx context.Context, chatID int64) {
	res, err := h.control.RunCron(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("крон из бота не удался")
		h.reply(chatID, "Не удалось: "+describeError(err), nil)
		return
	}
	switch {
	case res.Posted:
		h.reply(chatID, fmt.Sprintf("✅ Опубликовано для %s, id %s", res.Record.SubjectName, res.Record.ExternalID), nil)
	case res.NextPostIn > 0:
		h.reply(chatID, fmt.Sprintf("Слишком рано, следующая публикация через %s", res.NextPostIn.Round(time.Minute)), nil)
	default:
		h.reply(chatID, "Пропущено: "+res.Reason, nil)
	}
}

func (h *Handler) handleDelete(ctx context.Context, chatID int64, payload string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, "#"), 10, 64)
	if err != nil || id <= 0 {
		h.reply(chatID, "Укажите ID элемента очереди, например /delete 12", nil)
		return
	}
	if err := h.control.DeleteQueueItem(ctx, id); err != nil {
		if errors.Is(err, domain.ErrQueueItemNotFound) {
			h.reply(chatID, fmt.Sprintf("Элемент #%d не найден", id), nil)
			return
		}
		h.log.Error().Err(err).Int64("queue_id", id).Msg("не удалось удалить элемент очереди")
		h.reply(chatID, "Не удалось удалить элемент", nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("🗑 Элемент #%d удалён", id), nil)
}

func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoSubject):
		return "нет доступных проектов"
	case errors.Is(err, domain.ErrSubjectNotFound):
		return "проект не найден"
	case errors.Is(err, domain.ErrNoContent):
		return "модель не дала пригодного текста"
	case errors.Is(err, domain.ErrRateLimited):
		return "X ограничил частоту запросов"
	case errors.Is(err, domain.ErrForbidden):
		return "X отклонил публикацию"
	}
	return err.Error()
}

func preview(text string) string {
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(runes) <= queuePreviewRunes {
		return string(runes)
	}
	return string(runes[:queuePreviewRunes]) + "…"
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статус", "status"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Очередь", "queue"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏸ Пауза", "pause"),
			tgbotapi.NewInlineKeyboardButtonData("▶️ Продолжить", "resume"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Сгенерировать", "generate"),
			tgbotapi.NewInlineKeyboardButtonData("🚀 Крон", "cron"),
		),
	)
	return &buttons
}

func helpMessage() string {
	lines := []string{
		"📖 Команды управления:",
		"",
		"• /status — состояние планировщика и счётчики за сегодня.",
		"• /queue — элементы очереди, готовые к публикации.",
		"• /pause и /resume — остановить и возобновить задачи по расписанию.",
		"• /generate [id] — сгенерировать текст и поставить в очередь.",
		"• /post_now [id] — сгенерировать и сразу опубликовать.",
		"• /cron — опубликовать, если прошёл интервал с прошлого поста.",
		"• /delete 12 — удалить элемент очереди.",
	}
	return strings.Join(lines, "\n")
}

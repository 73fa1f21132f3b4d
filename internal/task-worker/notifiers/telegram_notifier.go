package notifiers

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts reminders to a single Telegram chat.
type TelegramNotifier struct {
	api    messageSender
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatReminder(r))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram reminder for task %s: %w", r.TaskID, err)
	}
	return nil
}

// FormatReminder renders r as Telegram HTML.
func FormatReminder(r Reminder) string {
	heading := "⏰ <b>Due soon</b>"
	if r.Type == "overdue" {
		heading = "⚠️ <b>Overdue</b>"
	}
	return fmt.Sprintf("%s\nTask <code>%s</code> is due %s UTC",
		heading,
		html.EscapeString(r.TaskID),
		r.DueAt.UTC().Format("2006-01-02 15:04"),
	)
}

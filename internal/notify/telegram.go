package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// TelegramSender delivers notifications through the Telegram Bot API.
// Send-only: no poller is attached.
type TelegramSender struct {
	bot *tele.Bot
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b}, nil
}

func (t *TelegramSender) SendText(ctx context.Context, chatID int64, text string) error {
	// telebot has no per-call context; keep the deadline by checking up front
	// and capping message size to Telegram's limit.
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > 4000 {
		text = text[:4000] + "..."
	}
	_, err := t.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	return err
}

var _ Sender = (*TelegramSender)(nil)

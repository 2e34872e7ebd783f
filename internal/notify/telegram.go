package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"llm-perps-trader/internal/interfaces"
	"llm-perps-trader/internal/logger"
)

// maxMessageLen is Telegram's hard limit per message.
const maxMessageLen = 4096

// Telegram delivers cycle reports to a chat. Delivery is fire and forget:
// a failed send is logged, never propagated, so notification outages cannot
// block trading.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Send(ctx context.Context, msg string) {
	for _, chunk := range chunkMessage(msg, maxMessageLen) {
		t.sendChunk(ctx, chunk)
	}
}

func (t *Telegram) sendChunk(ctx context.Context, chunk string) {
	m := tgbotapi.NewMessage(t.chatID, chunk)
	m.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(m); err == nil {
		return
	}

	// Markdown parsing rejects messages with unbalanced markup; retry plain.
	m.ParseMode = ""
	if _, err := t.bot.Send(m); err != nil {
		logger.ErrorWithErr(ctx, "Failed to send telegram message", err,
			"chat_id", t.chatID, "chars", len(chunk))
	}
}

// chunkMessage splits a message into limit-sized pieces, preferring to break
// at a newline so reports stay readable.
func chunkMessage(msg string, limit int) []string {
	if msg == "" {
		return nil
	}
	var chunks []string
	for len(msg) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if msg[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
		if len(msg) > 0 && msg[0] == '\n' {
			msg = msg[1:]
		}
	}
	if len(msg) > 0 {
		chunks = append(chunks, msg)
	}
	return chunks
}

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	tgsender "github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/relay/engine"
)

var _ engine.Transport[*tele.Message] = (*telegramTransport)(nil)

// telegramTransport implements the engine transport on top of a live bot.
// Copies run synchronously because the engine needs the created message ID
// for reply routing; notifications go through the async dispatcher and fall
// back to a direct send when the queue is saturated.
//
// The bot instance only exists once RunTelegram has started, so both pointers
// are bound from the OnStart hook.
type telegramTransport struct {
	bot        atomic.Pointer[tele.Bot]
	dispatcher atomic.Pointer[tgsender.Dispatcher]
}

func newTelegramTransport() *telegramTransport { return &telegramTransport{} }

// Bind attaches the live bot and dispatcher built by the runtime.
func (t *telegramTransport) Bind(bot *tele.Bot, d *tgsender.Dispatcher) {
	t.bot.Store(bot)
	t.dispatcher.Store(d)
}

// DeliverCopy copies the message to target, preserving text and attachments
// without any forwarded-from header.
func (t *telegramTransport) DeliverCopy(ctx context.Context, target int64, content *tele.Message) (int, error) {
	bot := t.bot.Load()
	if bot == nil {
		return 0, fmt.Errorf("transport: bot not bound")
	}
	copied, err := bot.Copy(tele.ChatID(target), content)
	if err != nil {
		return 0, err
	}
	return copied.ID, nil
}

// Notify sends a best-effort service message with the rendered menu attached.
func (t *telegramTransport) Notify(ctx context.Context, target int64, text string, menu engine.MenuSpec) {
	bot := t.bot.Load()
	if bot == nil {
		logger.Warn(ctx, "tg", "notify.skip",
			slog.Int64("target_id", target),
			slog.String("err", "bot not bound"),
		)
		return
	}

	send := func() error {
		_, err := bot.Send(tele.ChatID(target), text, &tele.SendOptions{
			ParseMode:   tele.ModeMarkdown,
			ReplyMarkup: RenderMenu(menu),
		})
		return err
	}

	if d := t.dispatcher.Load(); d != nil {
		if err := d.Enqueue(ctx, "notify", "sendMessage", send); err == nil {
			return
		}
	}
	if err := send(); err != nil {
		logger.Warn(ctx, "tg", "notify.fail",
			slog.Int64("target_id", target),
			slog.String("err", err.Error()),
		)
	}
}

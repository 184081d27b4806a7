package router

import (
	"time"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls routing of plain (non-command) updates.
type MessageOptions struct {
	// Relay receives every plain message: text that is not a registered
	// command, and any media update. Required.
	Relay tele.HandlerFunc
}

// MessageRoutes builds handlers for text and media updates. Text is first
// matched against registered text-command aliases; everything else falls
// through to the relay handler.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if opts.Relay != nil {
			return handleWithSummary(c, "relay", start, "", "", func() error {
				return opts.Relay(c)
			})
		}

		if reg != nil {
			if fallback := reg.TextFallback(); fallback != nil {
				return handleWithSummary(c, "text_fallback", start, "", "", func() error {
					return fallback(c)
				})
			}
		}

		logHandlerSummary(c, "relay", start, "skip", "ok", nil)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.Relay != nil {
			return handleWithSummary(c, "relay_media", start, "", "", func() error {
				return opts.Relay(c)
			})
		}
		logHandlerSummary(c, "relay_media", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(textHandler)),
		},
		{
			Endpoint: tele.OnMedia,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler)),
		},
	}
}

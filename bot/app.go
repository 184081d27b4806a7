// Package bot wires the relay core into a Telegram dispatcher: commands,
// callback buttons, message routing, and lifecycle.
package bot

import (
	"context"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/bootstrap"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/commands"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/relay/audit"
	"github.com/m3rciful/relaybot/relay/engine"
	"github.com/m3rciful/relaybot/relay/routing"
	"github.com/m3rciful/relaybot/relay/session"
)

// App owns the relay components and their Telegram wiring.
type App struct {
	cfg       *Config
	registry  *tg.Registry
	transport *telegramTransport
	engine    *engine.Engine[*tele.Message]
	audit     *audit.Store
	db        *sqlx.DB
}

// NewApp runs the bootstrap pipeline and assembles the relay. The database
// is touched only when the audit journal is enabled.
func NewApp(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:          cfg.CoreConfig(),
		Database:        cfg.Database,
		DatabaseEnabled: cfg.Audit.Enabled,
	})
	if err != nil {
		return nil, err
	}

	var (
		store    *audit.Store
		observer session.Observer
	)
	if res.DB != nil {
		store = audit.NewStore(res.DB)
		observer = store.Observer()
	}

	sessions := session.NewRegistry(observer)
	routes, err := routing.NewTable(cfg.Relay.RoutingCapacity)
	if err != nil {
		return nil, err
	}

	transport := newTelegramTransport()
	app := &App{
		cfg:       cfg,
		registry:  tg.NewRegistry(),
		transport: transport,
		engine:    engine.New[*tele.Message](cfg.Core.Telegram.AdminID, sessions, routes, transport),
		audit:     store,
		db:        res.DB,
	}
	app.registerCommands()
	app.registerCallbacks()
	// Unknown or outdated buttons are acknowledged by the router already;
	// stay silent instead of advertising the action set.
	app.registry.SetCallbackNotFound(func(tele.Context) error { return nil })
	return app, nil
}

// Engine exposes the relay engine, mainly for tests.
func (a *App) Engine() *engine.Engine[*tele.Message] { return a.engine }

func (a *App) registerCommands() {
	a.registry.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Show the main menu",
	})
	a.registry.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "How this bot works",
	})
	a.registry.RegisterCommand("/panel", commands.Command{
		Handler:     a.handlePanel,
		Description: "Operator panel",
		AdminOnly:   true,
	})
	a.registry.RegisterCommand("/connect", commands.Command{
		Handler:     a.handleConnect,
		Description: "Open a session with a user",
		AdminOnly:   true,
	})
	a.registry.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Session counters",
		AdminOnly:   true,
	})
}

func (a *App) registerCallbacks() {
	_ = a.registry.RegisterCallback(cbUserApply, a.cbUserApply)
	_ = a.registry.RegisterCallback(cbUserCancel, a.cbUserCancel)
	_ = a.registry.RegisterCallback(cbUserEnd, a.cbUserEnd)
	_ = a.registry.RegisterCallback(cbAdminPending, a.cbAdminPending)
	_ = a.registry.RegisterCallback(cbAdminActive, a.cbAdminActive)
	_ = a.registry.RegisterCallback(cbAdminConnect, a.cbAdminConnectHint)
	_ = a.registry.RegisterCallback(cbAdminAccept, a.cbAdminAccept)
	_ = a.registry.RegisterCallback(cbAdminReject, a.cbAdminReject)
	_ = a.registry.RegisterCallback(cbAdminEnd, a.cbAdminEnd)
}

// TelegramRunOptions assembles routes, middleware, and lifecycle hooks for
// the shared bot runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	cfg := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.registry, router.MessageOptions{
		Relay: a.relayMessage,
	})...)

	return tg.RunOptions{
		Config:      cfg,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(cfg, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.transport.Bind(rt.Bot, rt.Dispatcher)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			if a.audit != nil {
				a.audit.Close()
			}
			if a.db != nil {
				_ = a.db.Close()
			}
			return nil
		},
	}, nil
}

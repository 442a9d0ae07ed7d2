// Package app wires configuration, storage, the transcript core and the
// transport into a runnable bot.
package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"teobot/bot/gateway"
	"teobot/bot/guard"
	"teobot/bot/habits"
	"teobot/bot/notify"
	"teobot/bot/provider"
	"teobot/bot/router"
	"teobot/bot/session"
	"teobot/bot/settings"
	coreconfig "teobot/core/config"
	coredatabase "teobot/core/database"
	"teobot/core/logger"
	coretelegram "teobot/core/telegram"
)

// App holds the wired assistant.
type App struct {
	cfg *coreconfig.Config
	db  *sqlx.DB

	gw       *lazyGateway
	guard    *guard.Guard
	router   *router.Router
	notifier *notify.Scheduler
}

// Build initializes the logger, connects the database, applies migrations and
// wires the assistant components.
func Build(cfg *coreconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("app: logger init failed: %w", err)
	}
	db, err := coredatabase.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("app: database initialization failed: %w", err)
	}
	if err := coredatabase.RunMigrations(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app: migrations failed: %w", err)
	}

	sessions := session.NewSQLStore(db)
	settingsStore := settings.NewSQLStore(db)
	habitsStore := habits.NewSQLStore(db)
	registry := provider.NewRegistry(settingsStore, habitsStore)

	gw := &lazyGateway{}
	g := guard.New(sessions, gw, guard.Options{
		Retries: cfg.Assistant.PresentRetries,
		Backoff: cfg.PresentBackoff(),
	})

	return &App{
		cfg:      cfg,
		db:       db,
		gw:       gw,
		guard:    g,
		router:   router.New(sessions, g, registry, cfg.ProviderTimeout()),
		notifier: notify.New(sessions, settingsStore, registry, g, cfg.NotifyTick()),
	}, nil
}

// RunOptions assembles the transport run options. The gateway binds to the
// bot instance on start since it does not exist earlier.
func (a *App) RunOptions() coretelegram.RunOptions {
	var stopNotify context.CancelFunc

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.router.Routes(),
		Commands:    a.router.Commands(),
		OnStart: func(ctx context.Context, bot *tele.Bot) error {
			a.gw.bind(gateway.NewTelebotGateway(bot))
			a.guard.Start(ctx)

			nctx, cancel := context.WithCancel(ctx)
			stopNotify = cancel
			go func() { _ = a.notifier.Run(nctx) }()
			return nil
		},
		OnStop: func(ctx context.Context, bot *tele.Bot) error {
			if stopNotify != nil {
				stopNotify()
			}
			a.guard.Stop()
			return a.db.Close()
		},
	}
}

// lazyGateway delegates to the real gateway once the bot instance exists.
// Handlers cannot fire before the transport starts, so the nil window is
// confined to startup.
type lazyGateway struct {
	target atomic.Pointer[gateway.TelebotGateway]
}

var _ gateway.Gateway = (*lazyGateway)(nil)

func (l *lazyGateway) bind(gw *gateway.TelebotGateway) {
	l.target.Store(gw)
}

func (l *lazyGateway) Send(ctx context.Context, chatID int64, content gateway.Content) (int, error) {
	gw := l.target.Load()
	if gw == nil {
		return 0, &gateway.Error{Kind: gateway.KindTransient, Cause: fmt.Errorf("gateway not bound yet")}
	}
	return gw.Send(ctx, chatID, content)
}

func (l *lazyGateway) Edit(ctx context.Context, chatID int64, messageID int, content gateway.Content) error {
	gw := l.target.Load()
	if gw == nil {
		return &gateway.Error{Kind: gateway.KindTransient, Cause: fmt.Errorf("gateway not bound yet")}
	}
	return gw.Edit(ctx, chatID, messageID, content)
}

func (l *lazyGateway) Delete(ctx context.Context, chatID int64, messageID int) error {
	gw := l.target.Load()
	if gw == nil {
		return &gateway.Error{Kind: gateway.KindTransient, Cause: fmt.Errorf("gateway not bound yet")}
	}
	return gw.Delete(ctx, chatID, messageID)
}

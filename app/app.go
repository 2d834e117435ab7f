package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation/flows"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/discord"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
	"github.com/Black-And-White-Club/osrs-event-bot/app/observability"
	"github.com/Black-And-White-Club/osrs-event-bot/config"
)

// App wires the Discord gateway, the conversation engine and the event module.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *bun.DB
	Registry      *prometheus.Registry
	Bot           *discord.Bot
	Client        *discord.Client
	EventModule   *event.Module
	Conversations *conversation.Engine
}

// NewApp builds every component from cfg. Nothing connects to Discord until Run.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	reg := observability.NewRegistry()

	db, err := openDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	bot, err := discord.NewBot(cfg.Discord.Token, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	client := discord.NewClient(bot.Session, bot.Session.State, logger)

	eventModule, err := event.NewEventModule(ctx, cfg, logger, db, client, reg, observability.Tracer("osrs-event-bot/event"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize event module: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Registry:      reg,
		Bot:           bot,
		Client:        client,
		EventModule:   eventModule,
		Conversations: conversation.NewEngine(conversation.NewDispatcher(), client, cfg.Conversation.Timeout, logger),
	}, nil
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Run starts the event module, the metrics endpoint and the gateway, and blocks
// until ctx is cancelled or one of them fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go app.EventModule.Run(ctx, &wg)

	router := discord.NewRouter(ctx, app.Config.Discord.Prefix, app.Conversations, app.Client, flows.Deps{
		Service:  app.EventModule.EventService,
		Clock:    eventutil.RealClock{},
		Times:    eventutil.NewTimeParser(),
		Location: time.UTC,
	}, app.Logger)
	app.Bot.Attach(router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return observability.ServeMetrics(gctx, app.Config.Observability.MetricsAddress, app.Registry, app.Logger)
	})
	g.Go(func() error {
		return app.Bot.Run(gctx)
	})

	err := g.Wait()
	cancel()
	wg.Wait()
	return err
}

// Close releases the gateway, the event module and the database.
func (app *App) Close() error {
	app.Logger.Info("Shutting down application")

	var firstErr error
	if err := app.Bot.Close(); err != nil {
		app.Logger.Error("Error closing Discord session", slog.Any("error", err))
		firstErr = err
	}
	if err := app.EventModule.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := app.DB.Close(); err != nil {
		app.Logger.Error("Error closing database", slog.Any("error", err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/hiscores"
	eventqueue "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/queue"
	eventdb "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
	"github.com/Black-And-White-Club/osrs-event-bot/config"
)

// Module represents the event module.
type Module struct {
	EventService *eventservice.EventService
	Bus          *eventservice.Bus
	timers       *eventservice.TimerScheduler
	queue        *eventqueue.Service
	config       *config.Config
	logger       *slog.Logger
	cancelFunc   context.CancelFunc
}

// NewEventModule builds the event lifecycle: repository, stat gateway, signal
// bus, boundary scheduler and service, with handlers registered on the bus.
func NewEventModule(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *bun.DB,
	chat eventservice.Chat,
	reg prometheus.Registerer,
	tracer trace.Tracer,
) (*Module, error) {
	logger.InfoContext(ctx, "event.NewEventModule initializing")

	clock := eventutil.RealClock{}
	repo := eventdb.NewRepository(db)
	metrics := eventservice.NewMetrics(reg)

	bus, err := eventservice.NewBus(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	firer := eventservice.NewFirer(repo, bus, logger)

	module := &Module{
		Bus:    bus,
		config: cfg,
		logger: logger,
	}

	var scheduler eventservice.Scheduler
	switch cfg.Scheduler.Backend {
	case config.SchedulerRiver:
		queue, err := eventqueue.NewService(ctx, db, repo, cfg.Postgres.DSN, firer.Fire, clock, eventqueue.Options{
			Lookahead:      cfg.Scheduler.Lookahead,
			RescanInterval: cfg.Scheduler.RescanInterval,
			MaxWorkers:     cfg.Scheduler.MaxWorkers,
		}, logger, metrics)
		if err != nil {
			_ = bus.Close()
			return nil, fmt.Errorf("failed to create event queue: %w", err)
		}
		module.queue = queue
		scheduler = queue
	default:
		module.timers = eventservice.NewTimerScheduler(repo, clock, firer.Fire, cfg.Scheduler.Lookahead, logger)
		scheduler = module.timers
	}

	lookup := hiscores.NewClient(cfg.Hiscores.BaseURL, cfg.Hiscores.Timeout, nil, logger)
	gateway := statsource.NewGateway(lookup, statsource.Config{
		TTL:             cfg.Stats.CacheTTL,
		MaxEntries:      cfg.Stats.MaxEntries,
		MaxRetries:      cfg.Stats.MaxRetries,
		InitialInterval: cfg.Stats.InitialInterval,
		MaxInterval:     cfg.Stats.MaxInterval,
		FetchTimeout:    cfg.Stats.FetchTimeout,
	}, clock, logger, statsource.NewMetrics(reg))

	svcCfg := eventservice.DefaultConfig()
	svcCfg.ForceUpdateWindow = cfg.Events.ForceUpdateWindow

	module.EventService = eventservice.NewEventService(
		repo, gateway, chat, bus, scheduler, clock, logger, metrics, tracer, db, svcCfg,
	)
	module.EventService.RegisterHandlers(bus)

	return module, nil
}

// Run starts the bus, the update worker and the scheduler, and blocks until ctx
// is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting event module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	go func() {
		if err := m.Bus.Run(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Event bus stopped with error", slog.Any("error", err))
			cancel()
		}
	}()

	select {
	case <-m.Bus.Running():
	case <-ctx.Done():
		return
	}

	go m.EventService.RunUpdates(ctx)

	if m.queue != nil {
		if err := m.queue.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start event queue", slog.Any("error", err))
			return
		}
	} else {
		go m.timers.Run(ctx, m.config.Scheduler.RescanInterval)
	}

	<-ctx.Done()
	m.logger.Info("Event module goroutine stopped")
}

// Close shuts down the event module.
func (m *Module) Close() error {
	m.logger.Info("Stopping event module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.queue != nil {
		if err := m.queue.Stop(context.Background()); err != nil {
			m.logger.Error("Error stopping event queue", "error", err)
		}
	}

	if err := m.Bus.Close(); err != nil {
		m.logger.Error("Error closing event bus", "error", err)
		return fmt.Errorf("error closing event bus: %w", err)
	}

	m.logger.Info("Event module stopped")
	return nil
}

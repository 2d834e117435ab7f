// Package eventservice drives the event lifecycle: commands, boundary signals,
// and the serialized score update pipeline.
package eventservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventdb "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/scoreboard"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
	"github.com/Black-And-White-Club/osrs-event-bot/app/observability"
	"github.com/Black-And-White-Club/osrs-event-bot/pkg/results"
)

// StatFetcher is the slice of the stat gateway the service uses.
type StatFetcher interface {
	Fetch(ctx context.Context, rsn string, forceRefresh bool) statsource.Result
}

// Config tunes the service.
type Config struct {
	ForceUpdateWindow time.Duration
	Palette           scoreboard.Palette
}

// DefaultConfig is one forced update per event every 15 minutes.
func DefaultConfig() Config {
	return Config{
		ForceUpdateWindow: 15 * time.Minute,
		Palette:           scoreboard.DefaultPalette,
	}
}

// EventService implements the Service interface.
type EventService struct {
	repo      eventdb.Repository
	stats     StatFetcher
	chat      Chat
	publisher Publisher
	scheduler Scheduler
	throttle  *Throttle
	clock     eventutil.Clock
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	db        *bun.DB
	cfg       Config
	queue     *updateQueue
}

// NewEventService creates an EventService. A nil db runs every operation
// without a transaction.
func NewEventService(
	repo eventdb.Repository,
	stats StatFetcher,
	chat Chat,
	publisher Publisher,
	scheduler Scheduler,
	clock eventutil.Clock,
	logger *slog.Logger,
	metrics *Metrics,
	tracer trace.Tracer,
	db *bun.DB,
	cfg Config,
) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = eventutil.RealClock{}
	}
	if cfg.ForceUpdateWindow <= 0 {
		cfg.ForceUpdateWindow = DefaultConfig().ForceUpdateWindow
	}
	return &EventService{
		repo:      repo,
		stats:     stats,
		chat:      chat,
		publisher: publisher,
		scheduler: scheduler,
		throttle:  NewThrottle(cfg.ForceUpdateWindow, clock),
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
		cfg:       cfg,
		queue:     newUpdateQueue(),
	}
}

// emit publishes an informational signal. Failures are logged because the
// change it describes has already been persisted.
func (s *EventService) emit(ctx context.Context, topic string, sig Signal) {
	if err := s.publisher.Publish(ctx, topic, sig); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish signal",
			observability.CorrelationAttr(ctx),
			slog.String("topic", topic),
			slog.Int64("event_id", sig.EventID),
			slog.Any("error", err),
		)
	}
}

// RequestUpdate queues a score update for eventID.
func (s *EventService) RequestUpdate(ctx context.Context, req Signal) {
	s.emit(ctx, TopicWillUpdateScores, req)
}

// load reads an event, mapping a missing row to ErrEventNotFound.
func (s *EventService) load(ctx context.Context, db bun.IDB, eventID int64) (*eventdomain.Event, error) {
	e, err := s.repo.GetByID(ctx, db, eventID)
	if err != nil {
		if errors.Is(err, eventdb.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return e, nil
}

// loadForGuild is load restricted to events guildID takes part in. Events of
// other guilds look missing.
func (s *EventService) loadForGuild(ctx context.Context, db bun.IDB, eventID int64, guildID string) (*eventdomain.Event, error) {
	e, err := s.load(ctx, db, eventID)
	if err != nil {
		return nil, err
	}
	if !e.Guilds.Contains(guildID) {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// save persists e and returns the stored copy.
func (s *EventService) save(ctx context.Context, db bun.IDB, e *eventdomain.Event) (*eventdomain.Event, error) {
	saved, err := s.repo.Upsert(ctx, db, e)
	if err != nil {
		return nil, fmt.Errorf("failed to save event: %w", err)
	}
	return saved, nil
}

// IsFailure reports whether err is a user-facing domain failure rather than an
// infrastructure error.
func IsFailure(err error) bool {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return true
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrForceUpdateDropped),
		errors.Is(err, ErrNotLockable),
		errors.Is(err, ErrPlayerUnavailable),
		errors.Is(err, statsource.ErrPlayerNotFound),
		errors.Is(err, statsource.ErrInvalidName):
		return true
	}
	for _, domainErr := range []error{
		eventdomain.ErrRSNAlreadyUsed, eventdomain.ErrRSNRequired, eventdomain.ErrLockedByAdmin,
		eventdomain.ErrTeamNameRequired, eventdomain.ErrTeamNameTaken, eventdomain.ErrLockedBeforeGlobalStart,
		eventdomain.ErrAlreadySignedUp, eventdomain.ErrNotSignedUp, eventdomain.ErrGuildNotParticipating,
		eventdomain.ErrGuildAlreadyJoined, eventdomain.ErrLeaveLocked, eventdomain.ErrOnlyGuild,
		eventdomain.ErrCreatorCannotLeave, eventdomain.ErrNotGlobal, eventdomain.ErrAlreadyStarted,
		eventdomain.ErrNotStarted, eventdomain.ErrEventEnded,
	} {
		if errors.Is(err, domainErr) {
			return true
		}
	}
	return false
}

// classify splits err into a failure result or an infrastructure error.
func classify[S any](err error) (results.OperationResult[S, error], error) {
	if IsFailure(err) {
		return results.FailureResult[S, error](err), nil
	}
	return results.OperationResult[S, error]{}, err
}

// unwrap turns an operation result back into a plain (value, error) pair.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, nil
	}
	return *result.Success, nil
}

// execute runs op under withTelemetry and unwraps its result.
func execute[S any](s *EventService, ctx context.Context, operationName, identifier string, op operationFunc[S, error]) (S, error) {
	result, err := withTelemetry(s, ctx, operationName, identifier, op)
	return unwrap(result, err)
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *EventService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(operationName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(operationName, time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, "Operation triggered",
		observability.CorrelationAttr(ctx),
		slog.String("operation", operationName),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				observability.CorrelationAttr(ctx),
				slog.String("identifier", identifier),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(operationName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			observability.CorrelationAttr(ctx),
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
			slog.Any("error", wrappedErr),
		)
		s.metrics.RecordOperationFailure(operationName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			observability.CorrelationAttr(ctx),
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
			slog.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			observability.CorrelationAttr(ctx),
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
		)
	}

	s.metrics.RecordOperationSuccess(operationName)
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *EventService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}

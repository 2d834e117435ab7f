// Package eventqueue schedules event boundaries as durable River jobs, so armed
// boundaries survive restarts.
package eventqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"

	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	eventdb "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/infrastructure/repositories"
	eventutil "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/utils"
)

// Metrics records queue operations. *eventservice.Metrics satisfies it.
type Metrics interface {
	RecordOperationAttempt(operation string)
	RecordOperationSuccess(operation string)
	RecordOperationFailure(operation string)
	RecordOperationDuration(operation string, d time.Duration)
}

// Ensure Service implements eventservice.Scheduler
var _ eventservice.Scheduler = (*Service)(nil)

// Service arms event boundaries as River jobs.
type Service struct {
	client    *river.Client[pgx.Tx]
	pool      *pgxpool.Pool
	db        bun.IDB
	repo      eventdb.Repository
	clock     eventutil.Clock
	lookahead time.Duration
	logger    *slog.Logger
	metrics   Metrics
}

// Options tunes the River scheduler.
type Options struct {
	Lookahead      time.Duration
	RescanInterval time.Duration
	MaxWorkers     int
}

// NewService connects to dsn and builds a River client whose workers call fire.
func NewService(
	ctx context.Context,
	db bun.IDB,
	repo eventdb.Repository,
	dsn string,
	fire eventservice.FireFunc,
	clock eventutil.Clock,
	opts Options,
	logger *slog.Logger,
	metrics Metrics,
) (*Service, error) {
	ctxLogger := logger.With(
		slog.String("operation", "new_event_queue_service"),
		slog.String("component", "river_queue"),
	)
	if opts.Lookahead <= 0 {
		opts.Lookahead = eventservice.DefaultLookahead
	}
	if opts.RescanInterval <= 0 {
		opts.RescanInterval = eventservice.DefaultRescanInterval
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if clock == nil {
		clock = eventutil.RealClock{}
	}

	ctxLogger.Info("Initializing event queue service")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	service := &Service{
		pool:      pool,
		db:        db,
		repo:      repo,
		clock:     clock,
		lookahead: opts.Lookahead,
		logger:    ctxLogger,
		metrics:   metrics,
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewBoundaryWorker(fire, ctxLogger))
	river.AddWorker(workers, &RescanWorker{scheduler: service})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
			queueName:          {MaxWorkers: opts.MaxWorkers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(opts.RescanInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return RescanJob{}, &river.InsertOpts{Queue: queueName}
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	service.client = client

	ctxLogger.Info("Event queue service initialized successfully")
	return service, nil
}

// track records one queue operation's metrics around fn.
func (s *Service) track(operation string, fn func() error) error {
	if s.metrics == nil {
		return fn()
	}
	start := time.Now()
	s.metrics.RecordOperationAttempt(operation)
	err := fn()
	if err != nil {
		s.metrics.RecordOperationFailure(operation)
	} else {
		s.metrics.RecordOperationSuccess(operation)
	}
	s.metrics.RecordOperationDuration(operation, time.Since(start))
	return err
}

// Start starts the River client, which also runs the first rescan.
func (s *Service) Start(ctx context.Context) error {
	return s.track("start_service", func() error {
		s.logger.Info("Starting event queue service")
		if err := s.client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start River client: %w", err)
		}
		return nil
	})
}

// Stop drains running jobs and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	return s.track("stop_service", func() error {
		s.logger.Info("Stopping event queue service")
		defer s.pool.Close()
		if err := s.client.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop River client: %w", err)
		}
		return nil
	})
}

// Arm implements eventservice.Scheduler.
func (s *Service) Arm(ctx context.Context, e *eventdomain.Event) error {
	if e.ID == nil {
		return errors.New("cannot arm an unsaved event")
	}
	return s.track("arm", func() error {
		now := s.clock.Now()
		for _, b := range eventservice.Boundaries(e) {
			if !b.At.After(now) || b.At.Sub(now) > s.lookahead {
				continue
			}
			job := BoundaryJob{EventID: *e.ID, Boundary: string(b.Boundary), At: b.At}
			res, err := s.client.Insert(ctx, job, &river.InsertOpts{
				Queue:       queueName,
				ScheduledAt: b.At,
				UniqueOpts: river.UniqueOpts{
					ByArgs: true,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to schedule %s of event %d: %w", b.Boundary, *e.ID, err)
			}
			s.logger.InfoContext(ctx, "Boundary job scheduled",
				slog.Int64("event_id", *e.ID),
				slog.String("boundary", string(b.Boundary)),
				slog.Int64("job_id", res.Job.ID),
				slog.Bool("duplicate", res.UniqueSkippedAsDuplicate),
			)
		}
		return nil
	})
}

type riverJobRow struct {
	ID          int64          `bun:"id"`
	Kind        string         `bun:"kind"`
	State       string         `bun:"state"`
	Args        map[string]any `bun:"args,type:jsonb"`
	ScheduledAt *time.Time     `bun:"scheduled_at"`
}

// pendingJobs lists boundary jobs of eventID that have not run yet.
func (s *Service) pendingJobs(ctx context.Context, eventID int64) ([]riverJobRow, error) {
	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "args", "scheduled_at").
		Where("kind = ?", kindBoundary).
		Where("state IN (?, ?, ?)", "available", "scheduled", "retryable").
		Where("(args->>'event_id')::bigint = ?", eventID).
		Order("scheduled_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to query boundary jobs: %w", err)
	}
	return jobs, nil
}

// Disarm implements eventservice.Scheduler.
func (s *Service) Disarm(ctx context.Context, eventID int64) error {
	return s.track("disarm", func() error {
		jobs, err := s.pendingJobs(ctx, eventID)
		if err != nil {
			return err
		}
		cancelled := 0
		for _, job := range jobs {
			if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
				s.logger.WarnContext(ctx, "Failed to cancel job",
					slog.Int64("job_id", job.ID),
					slog.Any("error", err),
				)
				continue
			}
			cancelled++
		}
		s.logger.InfoContext(ctx, "Boundary jobs cancelled",
			slog.Int64("event_id", eventID),
			slog.Int("total_found", len(jobs)),
			slog.Int("cancelled_count", cancelled),
		)
		return nil
	})
}

// Rescan implements eventservice.Scheduler.
func (s *Service) Rescan(ctx context.Context) error {
	return s.track("rescan", func() error {
		now := s.clock.Now()
		events, err := s.repo.ListBetween(ctx, nil, now, now.Add(s.lookahead))
		if err != nil {
			return fmt.Errorf("failed to list upcoming events: %w", err)
		}
		for _, e := range events {
			if err := s.Arm(ctx, e); err != nil {
				return err
			}
		}
		s.logger.InfoContext(ctx, "Rescanned event boundaries", slog.Int("events", len(events)))
		return nil
	})
}

// ScheduledJobs lists the pending boundary jobs of eventID.
func (s *Service) ScheduledJobs(ctx context.Context, eventID int64) ([]JobInfo, error) {
	jobs, err := s.pendingJobs(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		info := JobInfo{ID: job.ID, Kind: job.Kind, EventID: eventID, State: job.State}
		if b, ok := job.Args["boundary"].(string); ok {
			info.Boundary = b
		}
		if job.ScheduledAt != nil {
			info.ScheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		out[i] = info
	}
	return out, nil
}

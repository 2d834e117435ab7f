package eventqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
)

// BoundaryWorker hands due boundaries to the lifecycle firer.
type BoundaryWorker struct {
	river.WorkerDefaults[BoundaryJob]
	fire   eventservice.FireFunc
	logger *slog.Logger
}

// NewBoundaryWorker creates a BoundaryWorker.
func NewBoundaryWorker(fire eventservice.FireFunc, logger *slog.Logger) *BoundaryWorker {
	return &BoundaryWorker{fire: fire, logger: logger}
}

// Work fires the boundary. Errors make River retry the job.
func (w *BoundaryWorker) Work(ctx context.Context, job *river.Job[BoundaryJob]) error {
	w.logger.InfoContext(ctx, "Boundary job due",
		slog.Int64("job_id", job.ID),
		slog.Int64("event_id", job.Args.EventID),
		slog.String("boundary", job.Args.Boundary),
	)
	return w.fire(ctx, job.Args.EventID, eventservice.Boundary(job.Args.Boundary), job.Args.At)
}

// Timeout bounds one firing, including the reload.
func (w *BoundaryWorker) Timeout(*river.Job[BoundaryJob]) time.Duration { return boundaryTimeout }

// RescanWorker runs the periodic rescan.
type RescanWorker struct {
	river.WorkerDefaults[RescanJob]
	scheduler eventservice.Scheduler
}

// Work rescans upcoming boundaries.
func (w *RescanWorker) Work(ctx context.Context, _ *river.Job[RescanJob]) error {
	return w.scheduler.Rescan(ctx)
}

package eventqueue

import "time"

const (
	queueName       = "event"
	kindBoundary    = "event_boundary"
	kindRescan      = "event_rescan"
	boundaryTimeout = 5 * time.Minute
)

// BoundaryJob fires one boundary of one event. At is part of the unique args, so
// moving a boundary schedules a new job and leaves the old one to be skipped as stale.
type BoundaryJob struct {
	EventID  int64     `json:"event_id"`
	Boundary string    `json:"boundary"`
	At       time.Time `json:"at"`
}

// Kind returns the job type identifier for River
func (BoundaryJob) Kind() string { return kindBoundary }

// RescanJob arms every boundary inside the lookahead.
type RescanJob struct{}

// Kind returns the job type identifier for River
func (RescanJob) Kind() string { return kindRescan }

// JobInfo describes a pending job, for debugging.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	EventID     int64  `json:"event_id"`
	Boundary    string `json:"boundary"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
}

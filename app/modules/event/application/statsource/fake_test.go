package statsource

import (
	"context"
	"sync"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// FakeLookup records calls and delegates to LookupFunc.
type FakeLookup struct {
	mu    sync.Mutex
	calls []string

	LookupFunc func(ctx context.Context, rsn string) (*eventdomain.Snapshot, error)
}

func (f *FakeLookup) Lookup(ctx context.Context, rsn string) (*eventdomain.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rsn)
	f.mu.Unlock()
	if f.LookupFunc != nil {
		return f.LookupFunc(ctx, rsn)
	}
	return &eventdomain.Snapshot{eventdomain.CategorySkills: {"attack": {XP: 1}}}, nil
}

func (f *FakeLookup) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ Lookup = (*FakeLookup)(nil)

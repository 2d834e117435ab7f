package flows

import (
	"context"
	"errors"

	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

var errUnexpectedCall = errors.New("unexpected call")

// FakeService implements eventservice.Service. Unset funcs fail the call.
type FakeService struct {
	CreateEventFunc     func(ctx context.Context, actor eventservice.Actor, req eventservice.CreateEventRequest) (*eventdomain.Event, error)
	SignupFunc          func(ctx context.Context, actor eventservice.Actor, eventID int64, rsn, team string) (*eventdomain.Event, error)
	UnsignupFunc        func(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error)
	AddScoreFunc        func(ctx context.Context, actor eventservice.Actor, eventID int64, userID string, delta int64) (*eventdomain.Event, error)
	EndEventFunc        func(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error)
	DeleteEventFunc     func(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error)
	SetLockedFunc       func(ctx context.Context, actor eventservice.Actor, eventID int64, locked bool) (*eventdomain.Event, error)
	JoinGlobalFunc      func(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error)
	LeaveGlobalFunc     func(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error)
	ForceUpdateFunc     func(ctx context.Context, actor eventservice.Actor, eventID int64) error
	GetEventFunc        func(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error)
	ListGuildEventsFunc func(ctx context.Context, guildID string) ([]*eventdomain.Event, error)

	trace []string
}

var _ eventservice.Service = (*FakeService)(nil)

func (f *FakeService) record(name string) { f.trace = append(f.trace, name) }

// Trace lists the called methods in order.
func (f *FakeService) Trace() []string { return f.trace }

func (f *FakeService) CreateEvent(ctx context.Context, actor eventservice.Actor, req eventservice.CreateEventRequest) (*eventdomain.Event, error) {
	f.record("CreateEvent")
	if f.CreateEventFunc != nil {
		return f.CreateEventFunc(ctx, actor, req)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) Signup(ctx context.Context, actor eventservice.Actor, eventID int64, rsn, team string) (*eventdomain.Event, error) {
	f.record("Signup")
	if f.SignupFunc != nil {
		return f.SignupFunc(ctx, actor, eventID, rsn, team)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) Unsignup(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error) {
	f.record("Unsignup")
	if f.UnsignupFunc != nil {
		return f.UnsignupFunc(ctx, actor, eventID)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) AddScore(ctx context.Context, actor eventservice.Actor, eventID int64, userID string, delta int64) (*eventdomain.Event, error) {
	f.record("AddScore")
	if f.AddScoreFunc != nil {
		return f.AddScoreFunc(ctx, actor, eventID, userID, delta)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) EndEvent(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error) {
	f.record("EndEvent")
	if f.EndEventFunc != nil {
		return f.EndEventFunc(ctx, actor, eventID)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) DeleteEvent(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error) {
	f.record("DeleteEvent")
	if f.DeleteEventFunc != nil {
		return f.DeleteEventFunc(ctx, actor, eventID)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) SetLocked(ctx context.Context, actor eventservice.Actor, eventID int64, locked bool) (*eventdomain.Event, error) {
	f.record("SetLocked")
	if f.SetLockedFunc != nil {
		return f.SetLockedFunc(ctx, actor, eventID, locked)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) JoinGlobal(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error) {
	f.record("JoinGlobal")
	if f.JoinGlobalFunc != nil {
		return f.JoinGlobalFunc(ctx, actor, eventID)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) LeaveGlobal(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error) {
	f.record("LeaveGlobal")
	if f.LeaveGlobalFunc != nil {
		return f.LeaveGlobalFunc(ctx, actor, eventID)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) ForceUpdate(ctx context.Context, actor eventservice.Actor, eventID int64) error {
	f.record("ForceUpdate")
	if f.ForceUpdateFunc != nil {
		return f.ForceUpdateFunc(ctx, actor, eventID)
	}
	return errUnexpectedCall
}

func (f *FakeService) GetEvent(ctx context.Context, actor eventservice.Actor, eventID int64) (*eventdomain.Event, error) {
	f.record("GetEvent")
	if f.GetEventFunc != nil {
		return f.GetEventFunc(ctx, actor, eventID)
	}
	return nil, errUnexpectedCall
}

func (f *FakeService) ListGuildEvents(ctx context.Context, guildID string) ([]*eventdomain.Event, error) {
	f.record("ListGuildEvents")
	if f.ListGuildEventsFunc != nil {
		return f.ListGuildEventsFunc(ctx, guildID)
	}
	return nil, errUnexpectedCall
}

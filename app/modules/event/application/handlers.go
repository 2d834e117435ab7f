package eventservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	"github.com/Black-And-White-Club/osrs-event-bot/app/observability"
)

// Router is where lifecycle handlers are registered. *Bus implements it.
type Router interface {
	Handle(topic string, h SignalHandler)
}

// RegisterHandlers wires the lifecycle reactions onto r.
func (s *EventService) RegisterHandlers(r Router) {
	s.logger.Info("Registering event lifecycle handlers")

	r.Handle(TopicDidAdd, s.HandleDidAdd)
	r.Handle(TopicWillStart, s.HandleWillStart)
	r.Handle(TopicWillEnd, s.HandleWillEnd)
	r.Handle(TopicDidEnd, s.HandleDidEnd)
	r.Handle(TopicDidDelete, s.HandleDidDelete)
	r.Handle(TopicWillForceUpdate, s.HandleWillForceUpdate)
	r.Handle(TopicWillUpdateScores, s.HandleWillUpdateScores)

	s.logger.Info("Event lifecycle handlers registered successfully")
}

// HandleDidAdd arms the new event's boundaries and posts its first scoreboard.
func (s *EventService) HandleDidAdd(ctx context.Context, sig Signal) error {
	if sig.Event == nil || sig.Event.ID == nil {
		return errors.New("did_add without a stored event")
	}
	if err := s.scheduler.Arm(ctx, sig.Event); err != nil {
		return fmt.Errorf("failed to arm event %d: %w", sig.EventID, err)
	}
	s.RequestUpdate(ctx, Signal{EventID: sig.EventID})
	return nil
}

// HandleWillStart takes the starting snapshots, then announces the start.
// Manually scored events have nothing to fetch.
func (s *EventService) HandleWillStart(ctx context.Context, sig Signal) error {
	s.logger.InfoContext(ctx, "Event starting", observability.CorrelationAttr(ctx), attrEventID(sig.EventID))

	if sig.Event != nil && sig.Event.Tracking.Category == eventdomain.CategoryCustom {
		s.emit(ctx, TopicDidStart, sig)
		s.RequestUpdate(ctx, Signal{EventID: sig.EventID})
		return nil
	}
	s.RequestUpdate(ctx, Signal{EventID: sig.EventID, Force: true, Then: TopicDidStart})
	return nil
}

// HandleWillEnd takes the final snapshots and posts the results, then announces the end.
func (s *EventService) HandleWillEnd(ctx context.Context, sig Signal) error {
	s.logger.InfoContext(ctx, "Event ending", observability.CorrelationAttr(ctx), attrEventID(sig.EventID))
	s.RequestUpdate(ctx, Signal{EventID: sig.EventID, Force: true, Final: true, Then: TopicDidEnd})
	return nil
}

// HandleDidEnd drops any trigger still armed for the event.
func (s *EventService) HandleDidEnd(ctx context.Context, sig Signal) error {
	if err := s.scheduler.Disarm(ctx, sig.EventID); err != nil {
		return fmt.Errorf("failed to disarm event %d: %w", sig.EventID, err)
	}
	s.logger.InfoContext(ctx, "Event ended", observability.CorrelationAttr(ctx), attrEventID(sig.EventID))
	return nil
}

// HandleDidDelete cancels the deleted event's triggers.
func (s *EventService) HandleDidDelete(ctx context.Context, sig Signal) error {
	if err := s.scheduler.Disarm(ctx, sig.EventID); err != nil {
		return fmt.Errorf("failed to disarm event %d: %w", sig.EventID, err)
	}
	return nil
}

// HandleWillForceUpdate turns an accepted force request into a forced update.
func (s *EventService) HandleWillForceUpdate(ctx context.Context, sig Signal) error {
	s.RequestUpdate(ctx, Signal{EventID: sig.EventID, Force: true})
	return nil
}

// HandleWillUpdateScores queues the update for the single update worker.
func (s *EventService) HandleWillUpdateScores(ctx context.Context, sig Signal) error {
	s.logger.DebugContext(ctx, "Queueing score update",
		attrEventID(sig.EventID),
		slog.Bool("force", sig.Force),
		slog.Bool("final", sig.Final),
	)
	s.enqueueUpdate(sig)
	return nil
}

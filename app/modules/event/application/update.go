package eventservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/scoreboard"
	"github.com/Black-And-White-Club/osrs-event-bot/app/observability"
	"github.com/Black-And-White-Club/osrs-event-bot/pkg/results"
)

// FetchFailedFooter annotates a scoreboard rendered from the previous snapshots.
const FetchFailedFooter = "Could not reach the hiscores, showing the last known scores."

// updateQueue is the FIFO of pending score updates drained by a single worker.
type updateQueue struct {
	mu      sync.Mutex
	pending []Signal
	wake    chan struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{wake: make(chan struct{}, 1)}
}

func (q *updateQueue) push(sig Signal) int {
	q.mu.Lock()
	q.pending = append(q.pending, sig)
	n := len(q.pending)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return n
}

func (q *updateQueue) pop() (Signal, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Signal{}, 0, false
	}
	sig := q.pending[0]
	q.pending = q.pending[1:]
	return sig, len(q.pending), true
}

// enqueueUpdate appends req to the update queue.
func (s *EventService) enqueueUpdate(req Signal) {
	s.metrics.setQueueDepth(s.queue.push(req))
}

// RunUpdates processes queued score updates one at a time, in arrival order,
// until ctx is cancelled.
func (s *EventService) RunUpdates(ctx context.Context) {
	for {
		for {
			req, depth, ok := s.queue.pop()
			if !ok {
				break
			}
			s.metrics.setQueueDepth(depth)
			if err := s.UpdateScores(ctx, req); err != nil {
				s.logger.ErrorContext(ctx, "Score update failed", attrEventID(req.EventID), attrError(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-s.queue.wake:
		}
	}
}

// UpdateScores runs one full update of an event: fetch, merge, persist, refresh
// every guild's scoreboard, persist the new message refs, then publish
// did_update_scores and req.Then.
func (s *EventService) UpdateScores(ctx context.Context, req Signal) error {
	saved, err := execute(s, ctx, "UpdateScores", idString(req.EventID), func(ctx context.Context) (eventResult, error) {
		return s.updateScoresLogic(ctx, req)
	})
	if errors.Is(err, ErrEventNotFound) {
		s.logger.InfoContext(ctx, "Skipping update for deleted event", attrEventID(req.EventID))
		return nil
	}
	if err != nil {
		return err
	}

	s.emit(ctx, TopicDidUpdateScores, signalFor(saved))
	if req.Then != "" {
		s.emit(ctx, req.Then, signalFor(saved))
	}
	return nil
}

func (s *EventService) updateScoresLogic(ctx context.Context, req Signal) (eventResult, error) {
	e, err := s.load(ctx, nil, req.EventID)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}

	now := s.clock.Now()
	current := e
	footer := ""
	switch {
	case !shouldFetch(e, now, req.Force):
		s.metrics.recordUpdate(updateSkipped)
	default:
		rsns := accountRSNs(e)
		snaps, err := s.fetchAll(ctx, rsns, req.Force)
		if err != nil {
			s.metrics.recordUpdate(updateDegraded)
			s.logger.WarnContext(ctx, "Stat fetch failed, rendering previous snapshots",
				observability.CorrelationAttr(ctx),
				attrEventID(req.EventID),
				attrError(err),
			)
			footer = FetchFailedFooter
			if current, err = s.load(ctx, nil, req.EventID); err != nil {
				return classify[*eventdomain.Event](err)
			}
			break
		}
		s.metrics.recordUpdate(updateFetched)
		if current, err = s.saveSnapshots(ctx, req.EventID, rsns, snaps); err != nil {
			return classify[*eventdomain.Event](err)
		}
	}

	// Every scoreboard posted for an ended event carries the results.
	final := req.Final || current.Status(s.clock.Now()) == eventdomain.StatusEnded
	refs := s.refreshScoreboards(ctx, current, footer, final)

	saved, err := s.saveScoreboardRefs(ctx, req.EventID, refs)
	if err != nil {
		return classify[*eventdomain.Event](err)
	}
	return results.SuccessResult[*eventdomain.Event, error](saved), nil
}

// saveSnapshots applies fetched snapshots to the latest stored copy of the
// event. Commands that landed while the stats were being fetched are kept;
// accounts signed up meanwhile wait for the next update.
func (s *EventService) saveSnapshots(ctx context.Context, eventID int64, rsns []string, snaps []*eventdomain.Snapshot) (*eventdomain.Event, error) {
	byRSN := make(map[string]*eventdomain.Snapshot, len(rsns))
	for i, rsn := range rsns {
		byRSN[eventdomain.NormalizeRSN(rsn)] = snaps[i]
	}

	result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
		latest, err := s.load(ctx, db, eventID)
		if err != nil {
			return eventResult{}, err
		}
		saved, err := s.save(ctx, db, mergeSnapshots(latest, byRSN))
		if err != nil {
			return eventResult{}, err
		}
		return results.SuccessResult[*eventdomain.Event, error](saved), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

// shouldFetch reports whether an update at now needs fresh stats. Nothing is
// fetched before the start, for manually scored events, or after the end unless
// forced by the final update.
func shouldFetch(e *eventdomain.Event, now time.Time, force bool) bool {
	if !e.Started(now) || e.Tracking.Category == eventdomain.CategoryCustom {
		return false
	}
	return e.Status(now) != eventdomain.StatusEnded || force
}

// fetchAll looks up every account concurrently. Any unavailable account fails
// the whole batch.
func (s *EventService) fetchAll(ctx context.Context, rsns []string, force bool) ([]*eventdomain.Snapshot, error) {
	snaps := make([]*eventdomain.Snapshot, len(rsns))

	g, gctx := errgroup.WithContext(ctx)
	for i, rsn := range rsns {
		g.Go(func() error {
			r := s.stats.Fetch(gctx, rsn, force)
			if r.Unavailable() {
				return fmt.Errorf("%s: %w", rsn, r.Err)
			}
			snaps[i] = r.Snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// accountRSNs lists every account in team, participant, account order.
func accountRSNs(e *eventdomain.Event) []string {
	var out []string
	for _, t := range e.Teams {
		for _, p := range t.Participants {
			for _, a := range p.Accounts {
				out = append(out, a.RSN)
			}
		}
	}
	return out
}

// mergeSnapshots returns a copy of e with each account's snapshot taken from
// byRSN, keyed by normalized RSN. Accounts without one are left as they are.
// The first snapshot an account receives also becomes its starting snapshot.
func mergeSnapshots(e *eventdomain.Event, byRSN map[string]*eventdomain.Snapshot) *eventdomain.Event {
	next := e.Clone()
	for ti := range next.Teams {
		for pi := range next.Teams[ti].Participants {
			accounts := next.Teams[ti].Participants[pi].Accounts
			for ai := range accounts {
				snap, ok := byRSN[eventdomain.NormalizeRSN(accounts[ai].RSN)]
				if !ok || snap == nil {
					continue
				}
				if accounts[ai].Starting == nil {
					accounts[ai].Starting = snap.Clone()
				}
				accounts[ai].Ending = snap.Clone()
			}
		}
	}
	return next
}

// refreshScoreboards replaces every guild's scoreboard, creator first and one
// guild at a time. It returns the new message refs keyed by guild.
func (s *EventService) refreshScoreboards(ctx context.Context, e *eventdomain.Event, footer string, final bool) map[string][]eventdomain.MessageRef {
	board := scoreboard.Compute(e)
	now := s.clock.Now()

	var opts SendOptions
	if final {
		opts.Attachments = s.finalAttachments(ctx, e, board)
	}

	refs := make(map[string][]eventdomain.MessageRef)
	for _, g := range e.Guilds.All() {
		text, err := scoreboard.Render(ctx, board, s.resolverFor(g.GuildID), scoreboard.RenderOptions{Now: now, Footer: footer})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to render scoreboard",
				attrEventID(e.IDValue()), slog.String("guild_id", g.GuildID), attrError(err))
			continue
		}

		s.deleteMessages(ctx, g.Scoreboard)
		posted, err := s.chat.Send(ctx, g.ChannelID, text, opts)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to post scoreboard",
				attrEventID(e.IDValue()), slog.String("guild_id", g.GuildID), attrError(err))
		}
		refs[g.GuildID] = posted
	}
	return refs
}

// resolverFor resolves names within guildID, falling back to raw ids when the
// chat platform cannot answer.
func (s *EventService) resolverFor(guildID string) scoreboard.DisplayNameResolver {
	return scoreboard.ResolverFunc(func(ctx context.Context, userIDs []string) ([]string, error) {
		names, err := s.chat.DisplayNames(ctx, guildID, userIDs)
		if err != nil || len(names) != len(userIDs) {
			s.logger.WarnContext(ctx, "Falling back to user ids for display names",
				slog.String("guild_id", guildID), attrError(err))
			return userIDs, nil
		}
		return names, nil
	})
}

// finalAttachments builds the results chart and spreadsheet. Either one is
// skipped when it cannot be produced.
func (s *EventService) finalAttachments(ctx context.Context, e *eventdomain.Event, board scoreboard.Board) []Attachment {
	var out []Attachment

	if png, err := scoreboard.RenderChart(board, s.cfg.Palette); err != nil {
		s.logger.ErrorContext(ctx, "Failed to render results chart", attrEventID(e.IDValue()), attrError(err))
	} else {
		out = append(out, Attachment{Name: "results.png", ContentType: "image/png", Data: png})
	}

	names, _ := s.resolverFor(e.Guilds.Creator.GuildID).DisplayNames(ctx, board.UserIDs())
	if xlsx, err := scoreboard.ExportXLSX(board, names); err != nil {
		s.logger.ErrorContext(ctx, "Failed to export results", attrEventID(e.IDValue()), attrError(err))
	} else {
		out = append(out, Attachment{
			Name:        "results.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        xlsx,
		})
	}
	return out
}

// deleteMessages removes the messages in refs that still exist.
func (s *EventService) deleteMessages(ctx context.Context, refs []eventdomain.MessageRef) {
	for _, ref := range refs {
		msg, err := s.chat.Fetch(ctx, ref)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to look up scoreboard message",
				slog.String("message_id", ref.MessageID), attrError(err))
			continue
		}
		if msg == nil {
			continue
		}
		if err := s.chat.Delete(ctx, ref); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete scoreboard message",
				slog.String("message_id", ref.MessageID), attrError(err))
		}
	}
}

// saveScoreboardRefs records refs on the latest stored copy of the event, so a
// command that landed during the update is not overwritten.
func (s *EventService) saveScoreboardRefs(ctx context.Context, eventID int64, refs map[string][]eventdomain.MessageRef) (*eventdomain.Event, error) {
	result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (eventResult, error) {
		latest, err := s.load(ctx, db, eventID)
		if err != nil {
			return eventResult{}, err
		}
		for _, g := range latest.Guilds.All() {
			if posted, ok := refs[g.GuildID]; ok {
				latest = latest.SetScoreboard(g.GuildID, posted)
			}
		}
		saved, err := s.save(ctx, db, latest)
		if err != nil {
			return eventResult{}, err
		}
		return results.SuccessResult[*eventdomain.Event, error](saved), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

func attrEventID(id int64) slog.Attr { return slog.Int64("event_id", id) }

func attrError(err error) slog.Attr { return slog.Any("error", err) }

package scoreboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// DisplayNameResolver maps user IDs to display names, preserving order.
type DisplayNameResolver interface {
	DisplayNames(ctx context.Context, userIDs []string) ([]string, error)
}

// ResolverFunc adapts a function to DisplayNameResolver.
type ResolverFunc func(ctx context.Context, userIDs []string) ([]string, error)

func (f ResolverFunc) DisplayNames(ctx context.Context, userIDs []string) ([]string, error) {
	return f(ctx, userIDs)
}

// RenderOptions controls the parts of the output that do not come from the board.
type RenderOptions struct {
	Now    time.Time
	Footer string
}

const (
	columnMargin = 2
	indentStep   = "  "
	discard      = "🗑️"
)

var medals = []string{"🥇", "🥈", "🥉"}

type row struct {
	marker string
	label  string
	score  int64
}

// Render formats the board as a chat message. Identical inputs produce identical output.
func Render(ctx context.Context, b Board, resolver DisplayNameResolver, opts RenderOptions) (string, error) {
	ids := b.UserIDs()
	names := ids
	if len(ids) > 0 && resolver != nil {
		resolved, err := resolver.DisplayNames(ctx, ids)
		if err != nil {
			return "", fmt.Errorf("failed to resolve display names: %w", err)
		}
		if len(resolved) != len(ids) {
			return "", fmt.Errorf("resolver returned %d names for %d users", len(resolved), len(ids))
		}
		names = resolved
	}

	rows := buildRows(b, names)

	var sb strings.Builder
	writeHeader(&sb, b, opts.Now)
	if len(rows) == 0 {
		sb.WriteString("No one has signed up yet.\n")
	} else {
		width := 0
		for _, r := range rows {
			width = max(width, utf8.RuneCountInString(r.label))
		}
		width += columnMargin

		sb.WriteString("```\n")
		for _, r := range rows {
			sb.WriteString(r.marker)
			sb.WriteString(r.label)
			sb.WriteString(strings.Repeat(" ", width-utf8.RuneCountInString(r.label)))
			sb.WriteString(strconv.FormatInt(r.score, 10))
			sb.WriteByte('\n')
		}
		sb.WriteString("```\n")
	}
	if opts.Footer != "" {
		sb.WriteString("*")
		sb.WriteString(opts.Footer)
		sb.WriteString("*\n")
	}
	return sb.String(), nil
}

func buildRows(b Board, names []string) []row {
	var rows []row
	n := 0
	for ti, t := range b.Teams {
		rows = append(rows, row{marker: teamMarker(ti, len(b.Teams)), label: t.Name, score: t.Score})
		for _, p := range t.Participants {
			rows = append(rows, row{marker: blankMarker, label: indentStep + names[n], score: p.Score})
			n++
			if p.CustomScore != 0 {
				rows = append(rows, row{marker: blankMarker, label: indentStep + indentStep + "(bonus)", score: p.CustomScore})
			}
			for _, a := range p.Accounts {
				rows = append(rows, row{marker: blankMarker, label: strings.Repeat(indentStep, 2) + a.RSN, score: a.Score})
				for _, m := range a.Metrics {
					if m.Score <= 0 {
						continue
					}
					rows = append(rows, row{marker: blankMarker, label: strings.Repeat(indentStep, 3) + m.Key, score: m.Score})
				}
			}
		}
	}
	return rows
}

const blankMarker = "   "

// teamMarker decorates a team line. The last of two or more teams always gets
// the discard marker, even when it would otherwise hold a medal.
func teamMarker(rank, total int) string {
	switch {
	case total > 1 && rank == total-1:
		return discard + " "
	case rank < len(medals):
		return medals[rank] + " "
	default:
		return blankMarker
	}
}

func writeHeader(sb *strings.Builder, b Board, now time.Time) {
	fmt.Fprintf(sb, "**%s** (%s", b.EventName, b.Category)
	switch b.StatusAt(now) {
	case eventdomain.StatusScheduled:
		fmt.Fprintf(sb, ", starts <t:%d:R>", b.Window.Start.Unix())
	case eventdomain.StatusActive:
		if b.Infinite {
			sb.WriteString(", never ends")
		} else {
			fmt.Fprintf(sb, ", ends <t:%d:R>", b.Window.End.Unix())
		}
	case eventdomain.StatusEnded:
		fmt.Fprintf(sb, ", ended <t:%d:f>", b.Window.End.Unix())
	}
	sb.WriteString(")\n")
}

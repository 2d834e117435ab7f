package flows

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/conversation"
	eventservice "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

const (
	createName = iota + 1
	createStart
	createEnd
	createCategory
	createMetrics
	createGlobal
)

// Create collects a new event and creates it on confirmation.
type Create struct {
	deps    Deps
	actor   eventservice.Actor
	req     eventservice.CreateEventRequest
	problem string
	result  string
}

func NewCreate(deps Deps, actor eventservice.Actor) *Create {
	return &Create{deps: deps, actor: actor}
}

func (f *Create) Question(state conversation.State) (string, bool) {
	if state.IsConfirm() {
		return f.summary() + confirmSuffix, true
	}

	var prompt string
	switch state.Step() {
	case createName:
		prompt = "What should the event be called?"
	case createStart:
		prompt = "When does it start? (e.g. `tomorrow at 6pm`, `2026-01-31 18:00`, `now`)"
	case createEnd:
		prompt = "When does it end? (`never` for a long-running event)"
	case createCategory:
		prompt = "What should be tracked? One of: " + joinCategories()
	case createMetrics:
		if len(f.req.Category.Metrics()) == 0 {
			return "", false
		}
		prompt = fmt.Sprintf("Which %s? Separate several with commas. Options: %s",
			f.req.Category, strings.Join(f.req.Category.Metrics(), ", "))
	case createGlobal:
		prompt = "Should this be a global event other servers can join? (yes/no)"
	default:
		return "", false
	}
	if state.IsRetry() {
		prompt = f.problem + "\n" + prompt
	}
	return prompt, true
}

func (f *Create) Consume(ctx context.Context, state conversation.State, answer string) (conversation.State, error) {
	if state.IsConfirm() {
		return f.commit(ctx, answer)
	}

	answer = strings.TrimSpace(answer)
	retry := func(problem string) (conversation.State, error) {
		f.problem = problem
		return conversation.Retry(state.Step()), nil
	}

	switch state.Step() {
	case createName:
		if n := utf8.RuneCountInString(answer); n < 1 || n > eventdomain.MaxNameLength {
			return retry(fmt.Sprintf("Names must be between 1 and %d characters.", eventdomain.MaxNameLength))
		}
		f.req.Name = answer
	case createStart:
		t, err := f.parseTime(answer)
		if err != nil {
			return retry(err.Error())
		}
		f.req.Start = t
	case createEnd:
		var t time.Time
		if strings.EqualFold(answer, "never") {
			t = eventdomain.InfiniteEnd
		} else {
			parsed, err := f.parseTime(answer)
			if err != nil {
				return retry(err.Error())
			}
			t = parsed
		}
		if !t.After(f.req.Start) {
			return retry("The end must be after the start (" + formatTime(f.req.Start) + ").")
		}
		f.req.End = t
	case createCategory:
		c, ok := eventdomain.ParseCategory(answer)
		if !ok {
			return retry("Unknown category.")
		}
		f.req.Category = c
		f.req.What = nil
	case createMetrics:
		if len(f.req.Category.Metrics()) == 0 {
			break
		}
		what, bad := parseMetrics(f.req.Category, answer)
		if len(bad) > 0 {
			return retry("Unknown: " + strings.Join(bad, ", "))
		}
		if len(what) == 0 {
			return retry("Pick at least one.")
		}
		f.req.What = what
	case createGlobal:
		yes, ok := parseYesNo(answer)
		if !ok {
			return retry("Please answer yes or no.")
		}
		f.req.Global = yes
		return conversation.Confirm, nil
	}
	return conversation.Question(state.Step() + 1), nil
}

func (f *Create) commit(ctx context.Context, answer string) (conversation.State, error) {
	yes, ok := parseYesNo(answer)
	if !ok {
		return conversation.Confirm, nil
	}
	if !yes {
		f.result = abortedMessage
		return conversation.Done, nil
	}
	e, err := f.deps.Service.CreateEvent(ctx, f.actor, f.req)
	if err != nil {
		return conversation.Confirm, result(err)
	}
	f.result = fmt.Sprintf("Created %s. Sign up with `signup %d`.", eventLabel(e), e.IDValue())
	return conversation.Done, nil
}

func (f *Create) Result() string { return f.result }

func (f *Create) parseTime(answer string) (time.Time, error) {
	if strings.EqualFold(answer, "now") {
		return f.deps.now(), nil
	}
	return f.deps.Times.Parse(answer, f.deps.Location, f.deps.Clock)
}

func (f *Create) summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", f.req.Name)
	fmt.Fprintf(&b, "Starts: %s\n", formatTime(f.req.Start))
	fmt.Fprintf(&b, "Ends: %s\n", formatTime(f.req.End))
	fmt.Fprintf(&b, "Tracking: %s", f.req.Category)
	if len(f.req.What) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(f.req.What, ", "))
	}
	if f.req.Global {
		b.WriteString("\nGlobal: yes")
	}
	return b.String()
}

func parseMetrics(c eventdomain.Category, answer string) (what, bad []string) {
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := eventdomain.MetricKey(part)
		switch {
		case !c.HasMetric(key):
			bad = append(bad, part)
		case !slices.Contains(what, key):
			what = append(what, key)
		}
	}
	return what, bad
}

func joinCategories() string {
	names := make([]string, len(eventdomain.Categories))
	for i, c := range eventdomain.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

package eventdomain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Violation tags a broken invariant.
type Violation string

const (
	ViolationNameLength         Violation = "name-length"
	ViolationWindowOrder        Violation = "window-order"
	ViolationWindowTooShort     Violation = "window-too-short"
	ViolationWindowTooLong      Violation = "window-too-long"
	ViolationGlobalStartTooSoon Violation = "global-start-too-soon"
	ViolationGlobalStartTooFar  Violation = "global-start-too-far"
	ViolationEmptyTeam          Violation = "empty-team"
	ViolationDuplicateTeamName  Violation = "duplicate-team-name"
	ViolationDuplicateUser      Violation = "duplicate-participant"
	ViolationDuplicateRSN       Violation = "duplicate-rsn"
	ViolationTrackingCategory   Violation = "invalid-tracking-category"
	ViolationTrackingMetric     Violation = "invalid-tracking-metric"
	ViolationOthersOnStandard   Violation = "others-on-standard"
)

const (
	MaxNameLength         = 50
	MinDuration           = 60 * time.Minute
	MaxStandardDuration   = 5 * 24 * time.Hour
	MaxGlobalDuration     = 7 * 24 * time.Hour
	GlobalMinLeadTime     = 30 * time.Minute
	GlobalMaxLeadTime     = 7 * 24 * time.Hour
	GlobalSignupCutoff    = 10 * time.Minute
	GlobalMembershipLock  = 30 * time.Minute
)

var violationMessages = map[Violation]string{
	ViolationNameLength:         "the name must be between 1 and 50 characters",
	ViolationWindowOrder:        "the end must be after the start",
	ViolationWindowTooShort:     "events must last at least 60 minutes",
	ViolationWindowTooLong:      "the event is too long (5 days max, 7 days for global events)",
	ViolationGlobalStartTooSoon: "global events must start at least 30 minutes from now",
	ViolationGlobalStartTooFar:  "global events must start within 7 days",
	ViolationEmptyTeam:          "teams need at least one participant",
	ViolationDuplicateTeamName:  "team names must be unique",
	ViolationDuplicateUser:      "a user can only be on one team",
	ViolationDuplicateRSN:       "an RSN can only be signed up once",
	ViolationTrackingCategory:   "unknown tracking category",
	ViolationTrackingMetric:     "a tracked metric does not belong to the category",
	ViolationOthersOnStandard:   "only global events can include other servers",
}

// Message is the user-facing description of v.
func (v Violation) Message() string {
	if m, ok := violationMessages[v]; ok {
		return m
	}
	return string(v)
}

// Validate lists every violated invariant at now. An empty result means valid.
func (e *Event) Validate(now time.Time) []Violation {
	var out []Violation

	n := utf8.RuneCountInString(strings.TrimSpace(e.Name))
	if n < 1 || n > MaxNameLength {
		out = append(out, ViolationNameLength)
	}

	if !e.Window.Start.Before(e.Window.End) {
		out = append(out, ViolationWindowOrder)
	} else if e.Window.Duration() < MinDuration {
		out = append(out, ViolationWindowTooShort)
	}

	out = append(out, e.policy().validate(e, now)...)
	out = append(out, e.validateTeams()...)
	out = append(out, e.validateTracking()...)
	return out
}

// ValidateStructure checks only the invariants that hold for the whole life of an
// event, as opposed to creation-time rules tied to the current time.
func (e *Event) ValidateStructure() []Violation {
	var out []Violation
	if !e.Window.Start.Before(e.Window.End) {
		out = append(out, ViolationWindowOrder)
	}
	return append(out, e.validateTeams()...)
}

func (e *Event) validateTeams() []Violation {
	var out []Violation
	seen := make(map[Violation]bool)
	add := func(v Violation) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	names := make(map[string]bool)
	users := make(map[string]bool)
	rsns := make(map[string]bool)
	for _, t := range e.Teams {
		if len(t.Participants) == 0 {
			add(ViolationEmptyTeam)
		}
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if names[key] {
			add(ViolationDuplicateTeamName)
		}
		names[key] = true
		for _, p := range t.Participants {
			if users[p.UserID] {
				add(ViolationDuplicateUser)
			}
			users[p.UserID] = true
			for _, a := range p.Accounts {
				k := NormalizeRSN(a.RSN)
				if rsns[k] {
					add(ViolationDuplicateRSN)
				}
				rsns[k] = true
			}
		}
	}
	return out
}

func (e *Event) validateTracking() []Violation {
	if !e.Tracking.Category.Valid() {
		return []Violation{ViolationTrackingCategory}
	}
	for _, w := range e.Tracking.What {
		if !e.Tracking.Category.HasMetric(w) {
			return []Violation{ViolationTrackingMetric}
		}
	}
	return nil
}

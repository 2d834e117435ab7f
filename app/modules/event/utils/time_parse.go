package eventutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnrecognizedTime is returned when the input matches no supported date format.
var ErrUnrecognizedTime = errors.New("could not recognize that date, try something like \"tomorrow at 6pm\" or \"2026-01-31 18:00\"")

var compactTime = regexp.MustCompile(`(\d{1,2})(\d{2})(am|pm)`)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02 at 15:04",
	"2006-01-02T15:04",
	"01/02/2006 15:04",
	"2006-01-02",
}

// TimeParser turns free-form user dates into instants.
type TimeParser struct {
	w *when.Parser
}

// NewTimeParser creates a parser with the English and common rule sets.
func NewTimeParser() *TimeParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &TimeParser{w: w}
}

// Parse interprets input relative to clock.Now() in loc. Absolute layouts win over
// natural language so "2026-01-31 18:00" is never reinterpreted.
func (p *TimeParser) Parse(input string, loc *time.Location, clock Clock) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return time.Time{}, ErrUnrecognizedTime
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.ParseInLocation(layout, strings.ToUpper(s), loc); err == nil {
			return t.UTC(), nil
		}
	}

	s = strings.ReplaceAll(s, "today ", "today at ")
	s = compactTime.ReplaceAllString(s, "$1:$2 $3")

	r, err := p.w.Parse(s, clock.Now().In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, ErrUnrecognizedTime
	}
	return r.Time.Truncate(time.Minute).UTC(), nil
}

package scoreboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"strconv"
	"testing"
	"time"
	"unicode/utf8"

	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func skills(xp int64) *eventdomain.Snapshot {
	return &eventdomain.Snapshot{eventdomain.CategorySkills: {"attack": {XP: xp}, "defence": {XP: xp / 2}}}
}

func sampleEvent() *eventdomain.Event {
	return &eventdomain.Event{
		Name:     "Skilling Comp",
		Window:   eventdomain.Window{Start: now.Add(-time.Hour), End: now.Add(time.Hour)},
		Tracking: eventdomain.Tracking{Category: eventdomain.CategorySkills, What: []string{"attack", "defence"}},
		Teams: []eventdomain.Team{
			{Name: "Alpha", Participants: []eventdomain.Participant{
				{UserID: "U1", Accounts: []eventdomain.Account{{RSN: "PlayerOne", Starting: skills(1000), Ending: skills(1500)}}},
				{UserID: "U2", CustomScore: 10, Accounts: []eventdomain.Account{{RSN: "Two", Starting: skills(100), Ending: skills(100)}}},
			}},
			{Name: "Beta", Participants: []eventdomain.Participant{
				{UserID: "U3", Accounts: []eventdomain.Account{
					{RSN: "Main", Starting: skills(0), Ending: skills(2000)},
					{RSN: "Alt", Starting: skills(50), Ending: skills(60)},
				}},
			}},
			{Name: "Gamma", Participants: []eventdomain.Participant{{UserID: "U4"}}},
			{Name: "Delta", Participants: []eventdomain.Participant{{UserID: "U5", CustomScore: -5}}},
		},
	}
}

func attackOnly(start, end *eventdomain.Snapshot) *eventdomain.Event {
	return &eventdomain.Event{
		Tracking: eventdomain.Tracking{Category: eventdomain.CategorySkills, What: []string{"attack"}},
		Teams: []eventdomain.Team{{Name: "Solo", Participants: []eventdomain.Participant{
			{UserID: "U1", Accounts: []eventdomain.Account{{RSN: "acc", Starting: start, Ending: end}}},
		}}},
	}
}

func TestCompute_AccountDelta(t *testing.T) {
	start := &eventdomain.Snapshot{eventdomain.CategorySkills: {"attack": {XP: 1000}}}
	end := &eventdomain.Snapshot{eventdomain.CategorySkills: {"attack": {XP: 1500}}}

	b := Compute(attackOnly(start, end))
	assert.EqualValues(t, 500, b.Teams[0].Participants[0].Accounts[0].Score)

	b = Compute(attackOnly(nil, end))
	assert.EqualValues(t, 1500, b.Teams[0].Participants[0].Accounts[0].Score, "newly tracked metric counts in full")

	b = Compute(attackOnly(start, nil))
	assert.Zero(t, b.Teams[0].Participants[0].Accounts[0].Score, "no ending snapshot yet")
}

func TestMetricDelta_ClampsUnranked(t *testing.T) {
	start := &eventdomain.Snapshot{eventdomain.CategoryBosses: {"zulrah": {Score: -1}}}
	end := &eventdomain.Snapshot{eventdomain.CategoryBosses: {"zulrah": {Score: 7}}}
	assert.EqualValues(t, 7, MetricDelta(eventdomain.CategoryBosses, "zulrah", start, end))
	assert.EqualValues(t, 0, MetricDelta(eventdomain.CategoryBosses, "zulrah", end, start))
}

func TestCompute_LMSAndCustomScoreOnlyBonus(t *testing.T) {
	e := &eventdomain.Event{
		Tracking: eventdomain.Tracking{Category: eventdomain.CategoryLMS},
		Teams: []eventdomain.Team{{Name: "T", Participants: []eventdomain.Participant{
			{UserID: "U1", CustomScore: 4, Accounts: []eventdomain.Account{{RSN: "a", Ending: &eventdomain.Snapshot{eventdomain.CategoryLMS: {"rank": {Score: 900}}}}}},
		}}},
	}
	b := Compute(e)
	assert.EqualValues(t, 0, b.Teams[0].Participants[0].Accounts[0].Score)
	assert.EqualValues(t, 4, b.Teams[0].Score)
}

func TestCompute_AggregationAndOrder(t *testing.T) {
	b := Compute(sampleEvent())

	for _, team := range b.Teams {
		var sum int64
		for _, p := range team.Participants {
			acc := p.CustomScore
			for _, a := range p.Accounts {
				var ms int64
				for _, m := range a.Metrics {
					ms += m.Score
				}
				assert.Equal(t, ms, a.Score)
				acc += a.Score
			}
			assert.Equal(t, acc, p.Score, "participant %s", p.UserID)
			sum += p.Score
		}
		assert.Equal(t, sum, team.Score, "team %s", team.Name)
	}

	names := make([]string, len(b.Teams))
	for i, team := range b.Teams {
		names[i] = team.Name
	}
	assert.Equal(t, []string{"Beta", "Alpha", "Gamma", "Delta"}, names)
	assert.EqualValues(t, 3015, b.Teams[0].Score)
	assert.Equal(t, "Main", b.Teams[0].Participants[0].Accounts[0].RSN)
	assert.Equal(t, "U1", b.Teams[1].Participants[0].UserID)
	assert.Equal(t, "attack", b.Teams[1].Participants[0].Accounts[0].Metrics[0].Key)
}

func TestCompute_TiesKeepInsertionOrder(t *testing.T) {
	e := &eventdomain.Event{Tracking: eventdomain.Tracking{Category: eventdomain.CategoryCustom}}
	for _, n := range []string{"First", "Second", "Third"} {
		e.Teams = append(e.Teams, eventdomain.Team{Name: n, Participants: []eventdomain.Participant{{UserID: n, CustomScore: 1}}})
	}
	b := Compute(e)
	assert.Equal(t, "First", b.Teams[0].Name)
	assert.Equal(t, "Second", b.Teams[1].Name)
	assert.Equal(t, "Third", b.Teams[2].Name)
}

type recordingResolver struct {
	calls [][]string
	err   error
}

func (r *recordingResolver) DisplayNames(_ context.Context, ids []string) ([]string, error) {
	r.calls = append(r.calls, append([]string(nil), ids...))
	if r.err != nil {
		return nil, r.err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "name-" + id
	}
	return out, nil
}

func TestTeamMarker(t *testing.T) {
	tests := []struct {
		name  string
		total int
		want  []string
	}{
		{name: "single team keeps its medal", total: 1, want: []string{"🥇 "}},
		{name: "two teams", total: 2, want: []string{"🥇 ", "🗑️ "}},
		{name: "three teams", total: 3, want: []string{"🥇 ", "🥈 ", "🗑️ "}},
		{name: "five teams", total: 5, want: []string{"🥇 ", "🥈 ", "🥉 ", blankMarker, "🗑️ "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]string, tt.total)
			for rank := range got {
				got[rank] = teamMarker(rank, tt.total)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	resolver := &recordingResolver{}
	b := Compute(sampleEvent())

	out, err := Render(context.Background(), b, resolver, RenderOptions{Now: now, Footer: "Could not reach the hiscores"})
	require.NoError(t, err)

	require.Len(t, resolver.calls, 1, "names are resolved in one batch")
	assert.Equal(t, []string{"U3", "U1", "U2", "U4", "U5"}, resolver.calls[0])

	lines := strings.Split(out, "\n")
	assert.Equal(t, "**Skilling Comp** (skills, ends <t:"+strconv.FormatInt(now.Add(time.Hour).Unix(), 10)+":R>)", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "🥇 Beta"))
	assert.Contains(t, out, "🥈 Alpha")
	assert.Contains(t, out, "🥉 Gamma")
	assert.Contains(t, out, "🗑️ Delta")
	assert.Contains(t, out, "*Could not reach the hiscores*")
	assert.Contains(t, out, "(bonus)")

	// Two's metrics gained nothing, so only its account line remains.
	assert.Contains(t, out, "    Two")
	for _, l := range lines {
		if strings.Contains(l, "      attack") || strings.Contains(l, "      defence") {
			assert.NotRegexp(t, `\s0$`, l)
		}
	}

	// After the marker, every score starts in the same column.
	col := -1
	inBlock := false
	for _, l := range lines {
		if l == "```" {
			inBlock = !inBlock
			continue
		}
		if !inBlock {
			continue
		}
		body := stripMarker(l)
		c := utf8.RuneCountInString(body[:strings.LastIndexByte(body, ' ')+1])
		if col == -1 {
			col = c
		}
		assert.Equal(t, col, c, "line %q", l)
	}
}

func stripMarker(l string) string {
	for _, m := range []string{"🥇 ", "🥈 ", "🥉 ", "🗑️ ", "   "} {
		if strings.HasPrefix(l, m) {
			return strings.TrimPrefix(l, m)
		}
	}
	return l
}

func TestRender_Idempotent(t *testing.T) {
	e := sampleEvent()
	resolver := &recordingResolver{}
	first, err := Render(context.Background(), Compute(e), resolver, RenderOptions{Now: now})
	require.NoError(t, err)
	second, err := Render(context.Background(), Compute(e), resolver, RenderOptions{Now: now})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_HeaderVariants(t *testing.T) {
	e := sampleEvent()
	e.Teams = nil

	out, err := Render(context.Background(), Compute(e), nil, RenderOptions{Now: now.Add(-2 * time.Hour)})
	require.NoError(t, err)
	assert.Contains(t, out, "starts <t:")
	assert.Contains(t, out, "No one has signed up yet.")

	out, err = Render(context.Background(), Compute(e), nil, RenderOptions{Now: now.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Contains(t, out, "ended <t:")

	e.Window.End = eventdomain.InfiniteEnd
	out, err = Render(context.Background(), Compute(e), nil, RenderOptions{Now: now})
	require.NoError(t, err)
	assert.Contains(t, out, "never ends")
}

func TestRender_ResolverFailure(t *testing.T) {
	resolver := &recordingResolver{err: errors.New("discord down")}
	_, err := Render(context.Background(), Compute(sampleEvent()), resolver, RenderOptions{Now: now})
	assert.ErrorContains(t, err, "discord down")

	short := ResolverFunc(func(context.Context, []string) ([]string, error) { return []string{"x"}, nil })
	_, err = Render(context.Background(), Compute(sampleEvent()), short, RenderOptions{Now: now})
	assert.Error(t, err)
}

func TestRenderChart(t *testing.T) {
	png, err := RenderChart(Compute(sampleEvent()), DefaultPalette)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	png, err = RenderChart(Board{EventName: "empty"}, DefaultPalette)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestExportXLSX(t *testing.T) {
	b := Compute(sampleEvent())
	data, err := ExportXLSX(b, []string{"Main Guy"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Teams", "Participants", "Accounts"}, f.GetSheetList())

	teams, err := f.GetRows("Teams")
	require.NoError(t, err)
	require.Len(t, teams, 5)
	assert.Equal(t, []string{"1", "Beta", "3015"}, teams[1])

	participants, err := f.GetRows("Participants")
	require.NoError(t, err)
	assert.Equal(t, "Main Guy", participants[1][1])
	assert.Equal(t, "U1", participants[2][1], "falls back to the user ID")
}

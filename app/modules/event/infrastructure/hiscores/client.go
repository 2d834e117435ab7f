// Package hiscores is the HTTP client for the Old School RuneScape hiscores.
package hiscores

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/application/statsource"
	eventdomain "github.com/Black-And-White-Club/osrs-event-bot/app/modules/event/domain"
)

// DefaultBaseURL serves the JSON variant of index_lite.
const DefaultBaseURL = "https://secure.runescape.com/m=hiscore_oldschool"

var validRSN = regexp.MustCompile(`^[A-Za-z0-9 _-]{1,12}$`)

var clueTier = regexp.MustCompile(`^Clue Scrolls \((\w+)\)$`)

// Client looks players up on the hiscores. Requests share one rate limiter so a
// full event refresh does not burst the upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Client. A nil limiter allows 5 requests per second.
func NewClient(baseURL string, timeout time.Duration, limiter *rate.Limiter, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 5)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

type response struct {
	Skills []struct {
		Name  string `json:"name"`
		Rank  int64  `json:"rank"`
		Level int64  `json:"level"`
		XP    int64  `json:"xp"`
	} `json:"skills"`
	Activities []struct {
		Name  string `json:"name"`
		Rank  int64  `json:"rank"`
		Score int64  `json:"score"`
	} `json:"activities"`
}

// Lookup fetches the current hiscores of rsn.
func (c *Client) Lookup(ctx context.Context, rsn string) (*eventdomain.Snapshot, error) {
	rsn = strings.TrimSpace(rsn)
	if !validRSN.MatchString(rsn) {
		return nil, statsource.ErrInvalidName
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/index_lite.json?player=%s", c.baseURL, url.QueryEscape(rsn))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query hiscores: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, statsource.ErrPlayerNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return nil, statsource.ErrInvalidName
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hiscores returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode hiscores: %w", err)
	}
	return c.toSnapshot(payload), nil
}

func (c *Client) toSnapshot(p response) *eventdomain.Snapshot {
	snap := eventdomain.Snapshot{}
	put := func(cat eventdomain.Category, key string, st eventdomain.Stat) {
		if snap[cat] == nil {
			snap[cat] = make(map[string]eventdomain.Stat)
		}
		snap[cat][key] = st
	}

	for _, s := range p.Skills {
		put(eventdomain.CategorySkills, eventdomain.MetricKey(s.Name), eventdomain.Stat{Rank: s.Rank, Level: s.Level, XP: s.XP})
	}
	for _, a := range p.Activities {
		st := eventdomain.Stat{Rank: a.Rank, Score: a.Score}
		switch {
		case a.Name == "Bounty Hunter - Hunter":
			put(eventdomain.CategoryBH, "hunter", st)
		case a.Name == "Bounty Hunter - Rogue":
			put(eventdomain.CategoryBH, "rogue", st)
		case a.Name == "LMS - Rank":
			put(eventdomain.CategoryLMS, "rank", st)
		case clueTier.MatchString(a.Name):
			put(eventdomain.CategoryClues, strings.ToLower(clueTier.FindStringSubmatch(a.Name)[1]), st)
		default:
			key := eventdomain.MetricKey(a.Name)
			if eventdomain.CategoryBosses.HasMetric(key) {
				put(eventdomain.CategoryBosses, key, st)
			} else {
				c.logger.Debug("Ignoring hiscores activity", slog.String("name", a.Name))
			}
		}
	}
	return &snap
}

var _ statsource.Lookup = (*Client)(nil)

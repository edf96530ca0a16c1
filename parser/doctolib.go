package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"medibot/types"
)

// maxBodySize caps the availabilities.json body; real responses are a few KB
const maxBodySize = 2 << 20

// Failure classes for one availability fetch
var (
	ErrConnectivity = errors.New("connectivity error")
	ErrRemote       = errors.New("remote error")
	ErrParse        = errors.New("parse error")
)

var naiveLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Client fetches availabilities.json for one doctor at a time
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient creates a client whose every request is bounded by timeout
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// BuildAvailabilityURL rewrites limit and start_date on the stored request URL.
// All other parameters (visit_motive_ids, agenda_ids, practice_ids, ...) are kept.
func BuildAvailabilityURL(raw string, limit int, today time.Time) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid availabilities_url: %v", ErrParse, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: availabilities_url %q is not absolute", ErrParse, raw)
	}

	// u.Query() would silently drop malformed pairs
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("%w: availabilities_url query: %v", ErrParse, err)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start_date", today.Format("2006-01-02"))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// FetchAvailability performs the GET and decodes the JSON body.
// Errors wrap ErrConnectivity, ErrRemote or ErrParse.
func (c *Client) FetchAvailability(ctx context.Context, availabilityURL string) (*types.AvailabilityPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, availabilityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	// Doctolib rejects requests without a browser user agent
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: HTTP %s", ErrRemote, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrConnectivity, err)
	}

	var payload types.AvailabilityPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &payload, nil
}

// ParseNaiveTime parses an ISO 8601 date or date-time and drops any UTC offset,
// keeping the wall clock and placing it in loc.
func ParseNaiveTime(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range naiveLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", ErrParse, value)
}

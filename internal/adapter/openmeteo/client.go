package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

// memberSuffix matches ensemble member columns like "temperature_2m_member3".
// Columns without the suffix belong to member 0.
var memberSuffix = regexp.MustCompile(`^(.+)_member(\d+)$`)

// Settings identifies the forecast point and the variables to request.
type Settings struct {
	// BaseURL is the ensemble forecast endpoint.
	BaseURL string
	// MetadataURL is a format string with one %s verb for the model name.
	MetadataURL string
	Latitude    float64
	Longitude   float64
	Variables   []string
}

// Client fetches ensemble forecasts from the Open-Meteo API.
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo ensemble API client.
func NewClient(settings Settings, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		settings: settings,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// LatestRun returns the initialisation time of the newest available run for
// the given model, read from the model's static metadata document.
func (c *Client) LatestRun(ctx context.Context, model string) (time.Time, error) {
	u := fmt.Sprintf(c.settings.MetadataURL, model)

	body, err := c.get(ctx, u)
	if err != nil {
		return time.Time{}, err
	}

	var meta struct {
		LastRunInitialisationTime int64 `json:"last_run_initialisation_time"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return time.Time{}, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.LastRunInitialisationTime == 0 {
		return time.Time{}, fmt.Errorf("metadata for %s has no last_run_initialisation_time", model)
	}

	return time.Unix(meta.LastRunInitialisationTime, 0).UTC(), nil
}

// FetchRawSeries downloads the hourly per-member series for a run.
func (c *Client) FetchRawSeries(ctx context.Context, run domain.ModelRun) (domain.RawSeries, error) {
	params := url.Values{
		"latitude":   {formatCoord(c.settings.Latitude)},
		"longitude":  {formatCoord(c.settings.Longitude)},
		"models":     {run.Model},
		"hourly":     {strings.Join(c.settings.Variables, ",")},
		"timeformat": {"unixtime"},
	}

	body, err := c.get(ctx, c.settings.BaseURL+"?"+params.Encode())
	if err != nil {
		return domain.RawSeries{}, err
	}

	var resp struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.RawSeries{}, fmt.Errorf("decode forecast: %w", err)
	}
	if len(resp.Hourly) == 0 {
		return domain.RawSeries{}, fmt.Errorf("forecast for %s has no hourly block", run.Model)
	}

	times, err := parseTimeAxis(resp.Hourly)
	if err != nil {
		return domain.RawSeries{}, err
	}

	variables, err := parseMembers(resp.Hourly, times)
	if err != nil {
		return domain.RawSeries{}, err
	}

	raw, err := domain.NewRawSeries(run, variables)
	if err != nil {
		return domain.RawSeries{}, fmt.Errorf("assemble series for %s: %w", run.Model, err)
	}

	c.logger.Debug("fetched ensemble series",
		"model", run.Model,
		"variables", len(variables),
		"steps", len(times),
	)
	return raw, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", fullURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func parseTimeAxis(hourly map[string]json.RawMessage) ([]time.Time, error) {
	rawTimes, ok := hourly["time"]
	if !ok {
		return nil, fmt.Errorf("hourly block has no time axis")
	}

	var stamps []int64
	if err := json.Unmarshal(rawTimes, &stamps); err != nil {
		return nil, fmt.Errorf("decode time axis: %w", err)
	}

	times := make([]time.Time, len(stamps))
	for i, ts := range stamps {
		times[i] = time.Unix(ts, 0).UTC()
	}
	return times, nil
}

// parseMembers groups the hourly columns by base variable name. JSON nulls
// become nil values.
func parseMembers(hourly map[string]json.RawMessage, times []time.Time) (map[string][]domain.MemberSeries, error) {
	variables := make(map[string][]domain.MemberSeries)

	for column, raw := range hourly {
		if column == "time" {
			continue
		}

		name := column
		member := 0
		if m := memberSuffix.FindStringSubmatch(column); m != nil {
			name = m[1]
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", column, err)
			}
			member = n
		}

		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("decode column %s: %w", column, err)
		}
		if len(values) != len(times) {
			return nil, fmt.Errorf("column %s has %d values for %d timestamps", column, len(values), len(times))
		}

		variables[name] = append(variables[name], domain.MemberSeries{
			Member: member,
			Times:  times,
			Values: values,
		})
	}

	for name := range variables {
		members := variables[name]
		sort.Slice(members, func(i, j int) bool { return members[i].Member < members[j].Member })
	}
	return variables, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"janus/internal/adapters/config"
	"janus/internal/metrics"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

// sentinelNoData is returned by the API for observations that are not yet
// published. It must never be parsed as zero.
const sentinelNoData = "."

// Observation is one raw series data point. Date is the reference period,
// not the release date.
type Observation struct {
	Date  time.Time
	Value string
}

// Float returns the numeric value, or ok=false for the "not yet available"
// sentinel and unparsable values
func (o Observation) Float() (float64, bool) {
	if o.Value == sentinelNoData {
		return 0, false
	}
	v, err := strconv.ParseFloat(o.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Client fetches series observations from the statistics source
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// NewClient creates a statistics-source client. A missing API key is a
// configuration error: callers must abort before any partial processing.
func NewClient(cfg config.FredConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrMissingCredentials, "fred api key")
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		log:        logger.Get().With("component", "fred_client"),
	}, nil
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Observations fetches up to limit observations for a series, most recent
// first. Malformed rows are skipped at the boundary rather than trusted.
func (c *Client) Observations(ctx context.Context, seriesID string, limit int) ([]Observation, error) {
	start := time.Now()
	obs, err := c.fetchObservations(ctx, seriesID, limit)
	metrics.RecordAPICall("fred", "series_observations", start, err)
	return obs, err
}

func (c *Client) fetchObservations(ctx context.Context, seriesID string, limit int) ([]Observation, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/fred/series/observations?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create observations request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch observations for %s", seriesID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Wrapf(errors.ErrRateLimitExceeded, "series %s", seriesID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("observations request for %s returned status %d: %s", seriesID, resp.StatusCode, string(body))
	}

	var payload observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrapf(err, "decode observations for %s", seriesID)
	}

	observations := make([]Observation, 0, len(payload.Observations))
	for _, row := range payload.Observations {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			c.log.Warnw("Skipping malformed observation row",
				"series", seriesID,
				"date", row.Date,
			)
			continue
		}
		observations = append(observations, Observation{
			Date:  date.UTC(),
			Value: row.Value,
		})
	}

	if len(observations) == 0 {
		return nil, errors.Wrapf(errors.ErrSeriesUnavailable, "series %s", seriesID)
	}

	return observations, nil
}

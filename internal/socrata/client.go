package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/citydata/crimewatch/internal/config"
)

// Row is one raw record as returned by the Socrata Open Data API: field
// names in the source's casing, values loosely typed (string, number, bool,
// or absent). Typing happens later in the etl package.
type Row map[string]interface{}

// soqlTimeFormat is Socrata's floating timestamp format for SoQL filters.
const soqlTimeFormat = "2006-01-02T15:04:05"

// TransportError wraps any failure to fetch from the portal: network errors,
// timeouts, auth rejections, and non-2xx responses.
type TransportError struct {
	Dataset string
	Status  int // 0 when the request never produced a response
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("socrata: dataset %s returned status %d", e.Dataset, e.Status)
	}
	return fmt.Sprintf("socrata: dataset %s: %v", e.Dataset, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client fetches rows from the Chicago Data Portal.
type Client struct {
	// BaseURL is derived from the configured domain; tests point it at an
	// httptest server.
	BaseURL string

	cfg        config.SocrataConfig
	httpClient *http.Client
}

// NewClient creates a portal client from configuration.
func NewClient(cfg config.SocrataConfig) *Client {
	return &Client{
		BaseURL:    fmt.Sprintf("https://%s", cfg.Domain),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch returns crime rows with date >= since, ordered by date ascending,
// capped at limit. The lower bound is inclusive; callers pass
// checkpoint+1s for incremental pulls.
func (c *Client) Fetch(ctx context.Context, since time.Time, limit int) ([]Row, error) {
	params := url.Values{}
	params.Set("$where", fmt.Sprintf("date >= '%s'", since.Format(soqlTimeFormat)))
	params.Set("$order", "date ASC")
	params.Set("$limit", fmt.Sprintf("%d", limit))

	return c.get(ctx, c.cfg.CrimeDataset, params)
}

// FetchDataset returns up to limit rows of an arbitrary dataset in whatever
// order the portal serves them. Used for the small dimension datasets.
func (c *Client) FetchDataset(ctx context.Context, datasetID string, limit int) ([]Row, error) {
	params := url.Values{}
	params.Set("$limit", fmt.Sprintf("%d", limit))

	return c.get(ctx, datasetID, params)
}

func (c *Client) get(ctx context.Context, datasetID string, params url.Values) ([]Row, error) {
	endpoint := fmt.Sprintf("%s/resource/%s.json?%s", c.BaseURL, datasetID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Dataset: datasetID, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if c.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", c.cfg.AppToken)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Dataset: datasetID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Dataset: datasetID, Status: resp.StatusCode}
	}

	var rows []Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &TransportError{Dataset: datasetID, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return rows, nil
}

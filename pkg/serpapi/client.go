// Package serpapi is a typed client for the SerpApi Google Maps reviews
// engine, used to scrape public review snippets for one place.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/safebites/safebites-api/internal/model"
	"github.com/safebites/safebites-api/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com/search"

// reviewSource labels scraped reviews in responses and stored records.
const reviewSource = "Google (via SerpApi)"

// Client fetches public reviews for a place identifier.
type Client interface {
	Reviews(ctx context.Context, placeID string) ([]model.Review, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 2),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type reviewsResponse struct {
	Error   string      `json:"error"`
	Reviews []rawReview `json:"reviews"`
}

type rawReview struct {
	Snippet string  `json:"snippet"`
	Rating  float64 `json:"rating"`
	Date    string  `json:"date"`
	User    struct {
		Name string `json:"name"`
	} `json:"user"`
}

func (c *httpClient) Reviews(ctx context.Context, placeID string) ([]model.Review, error) {
	if c.apiKey == "" {
		return nil, eris.New("serpapi: api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "serpapi: rate limit")
	}

	params := url.Values{
		"engine":   {"google_maps_reviews"},
		"place_id": {placeID},
		"api_key":  {c.apiKey},
		"query":    {"gluten celiac"},
		"sort_by":  {"qualityScore"},
		"hl":       {"en"},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]model.Review, error) {
		return c.fetch(ctx, reqURL)
	})
}

func (c *httpClient) fetch(ctx context.Context, reqURL string) ([]model.Review, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed reviewsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "serpapi: parse response")
	}
	if parsed.Error != "" {
		return nil, eris.Errorf("serpapi: %s", parsed.Error)
	}

	out := make([]model.Review, 0, len(parsed.Reviews))
	for _, r := range parsed.Reviews {
		// Reviews without a snippet carry no signal for the oracle.
		if r.Snippet == "" {
			continue
		}
		author := r.User.Name
		if author == "" {
			author = "Anonymous"
		}
		out = append(out, model.Review{
			Source:   reviewSource,
			Text:     r.Snippet,
			Rating:   r.Rating,
			Author:   author,
			Date:     r.Date,
			Relevant: true,
		})
	}
	return out, nil
}

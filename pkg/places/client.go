// Package places is a typed client for the Google Places searchText API.
// Raw payloads never leave this package: responses are parsed into Place
// values with per-field defaulting.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/safebites/safebites-api/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask limits the response to the fields the search path consumes.
const fieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.rating,places.location,places.regularOpeningHours," +
	"places.businessStatus,places.types,places.priceLevel"

const (
	// biasRadiusMeters is the locationBias circle radius when user
	// coordinates are known.
	biasRadiusMeters = 5000.0
	minRating        = 3.5
	maxResults       = 10
)

// SearchRequest describes one text search. Lat/Lng bias the search when
// HasBias is set; otherwise Location is appended to the text query.
type SearchRequest struct {
	Query    string
	Location string
	Lat      float64
	Lng      float64
	HasBias  bool
}

// Place is one parsed search result. Missing names default to "Unknown",
// missing ratings to 0.
type Place struct {
	ID         string
	Name       string
	Address    string
	Rating     float64
	Latitude   float64
	Longitude  float64
	OpenNow    *bool
	Hours      []string
	Types      []string
	PriceLevel string
	Status     string
}

// Client performs Places API text searches.
type Client interface {
	TextSearch(ctx context.Context, req SearchRequest) ([]Place, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wire types for the searchText payload.

type searchPayload struct {
	TextQuery      string        `json:"textQuery"`
	MinRating      float64       `json:"minRating"`
	MaxResultCount int           `json:"maxResultCount"`
	LocationBias   *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchResponse struct {
	Places []rawPlace `json:"places"`
}

type rawPlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string  `json:"formattedAddress"`
	Rating           float64 `json:"rating"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	RegularOpeningHours struct {
		OpenNow             *bool    `json:"openNow"`
		WeekdayDescriptions []string `json:"weekdayDescriptions"`
	} `json:"regularOpeningHours"`
	BusinessStatus string   `json:"businessStatus"`
	Types          []string `json:"types"`
	PriceLevel     string   `json:"priceLevel"`
}

func (c *httpClient) TextSearch(ctx context.Context, req SearchRequest) ([]Place, error) {
	if c.apiKey == "" {
		return nil, eris.New("places: api key not configured")
	}

	// Force the dietary qualifier into the query for better relevance.
	payload := searchPayload{
		TextQuery:      fmt.Sprintf("%s gluten-free", req.Query),
		MinRating:      minRating,
		MaxResultCount: maxResults,
	}
	if req.HasBias {
		payload.LocationBias = &locationBias{
			Circle: circle{
				Center: latLng{Latitude: req.Lat, Longitude: req.Lng},
				Radius: biasRadiusMeters,
			},
		}
	} else if req.Location != "" {
		payload.TextQuery = fmt.Sprintf("%s gluten-free in %s", req.Query, req.Location)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Place, error) {
		return c.doSearch(ctx, body)
	})
}

func (c *httpClient) doSearch(ctx context.Context, body []byte) ([]Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	out := make([]Place, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		if p.ID == "" {
			continue
		}
		name := p.DisplayName.Text
		if name == "" {
			name = "Unknown"
		}
		out = append(out, Place{
			ID:         p.ID,
			Name:       name,
			Address:    p.FormattedAddress,
			Rating:     p.Rating,
			Latitude:   p.Location.Latitude,
			Longitude:  p.Location.Longitude,
			OpenNow:    p.RegularOpeningHours.OpenNow,
			Hours:      p.RegularOpeningHours.WeekdayDescriptions,
			Types:      p.Types,
			PriceLevel: p.PriceLevel,
			Status:     p.BusinessStatus,
		})
	}
	return out, nil
}

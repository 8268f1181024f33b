package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"treeradius/internal/geo"
)

const DefaultBaseURL = "https://nominatim.openstreetmap.org"
const defaultUserAgent = "treeradius"

// Resolver maps a free-text address to a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, address string) (geo.Coordinate, error)
}

// Client resolves addresses against the Nominatim search API.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// ResolutionError means an address could not be geocoded, either because
// the service failed or because it found no match.
type ResolutionError struct {
	Address string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve address %q: %v", e.Address, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve geocodes the address and returns the coordinate of the top
// match. A single attempt is made; any failure is returned as a
// *ResolutionError.
func (c *Client) Resolve(ctx context.Context, address string) (geo.Coordinate, error) {
	if strings.TrimSpace(address) == "" {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("address is empty")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.effectiveTimeout())
	defer cancel()

	endpoint, err := url.Parse(c.effectiveBaseURL())
	if err != nil {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("parse geocoder url: %w", err)}
	}
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/search"
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.effectiveUserAgent())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return geo.Coordinate{}, &ResolutionError{
			Address: address,
			Err:     fmt.Errorf("geocoder status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("decode geocoder response: %w", err)}
	}
	if len(places) == 0 {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("no matches")}
	}

	top := places[0]
	lat, err := strconv.ParseFloat(top.Lat, 64)
	if err != nil {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("parse latitude %q: %w", top.Lat, err)}
	}
	lon, err := strconv.ParseFloat(top.Lon, 64)
	if err != nil {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("parse longitude %q: %w", top.Lon, err)}
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return geo.Coordinate{}, &ResolutionError{Address: address, Err: fmt.Errorf("coordinate out of range: %+v", coord)}
	}

	log.Debug().
		Str("address", address).
		Str("match", top.DisplayName).
		Float64("lat", coord.Lat).
		Float64("lon", coord.Lon).
		Msg("address resolved")

	return coord, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.effectiveTimeout()}
}

func (c *Client) effectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 10 * time.Second
}

func (c *Client) effectiveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) effectiveUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

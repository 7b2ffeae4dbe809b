// Package nominatim implements geocode.Geocoder against a Nominatim-style
// JSON API.
package nominatim

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

	"github.com/avdheim/transit-planner/internal/core/observability"
	"github.com/avdheim/transit-planner/internal/geocode"
	"github.com/avdheim/transit-planner/internal/transit"
)

type Client struct {
	base   *url.URL
	http   *http.Client
	userAg string
}

func New(baseURL string, client *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("nominatim: parse base url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: u, http: client, userAg: "transit-planner"}, nil
}

// result mirrors the subset of the Nominatim response we read.
// Nominatim encodes lat/lon as strings.
type result struct {
	Lat     string  `json:"lat"`
	Lon     string  `json:"lon"`
	Name    string  `json:"name"`
	Display string  `json:"display_name"`
	Address address `json:"address"`
}

type address struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Postcode    string `json:"postcode"`
	County      string `json:"county"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

func (a address) locality() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

func (c *Client) Forward(ctx context.Context, query string) (geocode.Place, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	var results []result
	err := c.get(ctx, "/search", q, &results)
	observability.ObserveGeocode("forward", err)
	if err != nil {
		return geocode.Place{}, err
	}
	if len(results) == 0 {
		return geocode.Place{}, geocode.ErrNotFound
	}
	return toPlace(results[0])
}

func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	var res result
	err := c.get(ctx, "/reverse", q, &res)
	observability.ObserveGeocode("reverse", err)
	if err != nil {
		return "", err
	}

	place, err := toPlace(res)
	if err != nil {
		return "", err
	}
	name, ok := place.DisplayName()
	if !ok {
		return "", geocode.ErrNotFound
	}
	return name, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &transit.TransportError{Op: "geocode " + path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAg)

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("geocoder", time.Since(start).Seconds())
	if err != nil {
		return &transit.TransportError{Op: "geocode " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &transit.TransportError{
			Op:  "geocode " + path,
			Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transit.TransportError{Op: "geocode " + path, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &transit.ParseError{Err: err}
	}
	return nil
}

func toPlace(r result) (geocode.Place, error) {
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat != nil || errLon != nil {
		return geocode.Place{}, &transit.ParseError{
			Err: fmt.Errorf("bad coordinate pair %q,%q", r.Lat, r.Lon),
		}
	}

	name := r.Name
	if name == "" {
		name = r.Display
	}

	return geocode.Place{
		FeatureName: name,
		Street:      r.Address.Road,
		HouseNumber: r.Address.HouseNumber,
		Locality:    r.Address.locality(),
		PostalCode:  r.Address.Postcode,
		Subregion:   r.Address.County,
		Region:      r.Address.State,
		Country:     r.Address.Country,
		Coord:       &transit.Coordinate{Lat: lat, Lon: lon},
	}, nil
}

// Package routing queries the HAFAS-style trip endpoint of the route
// provider and parses its JSON answer into an itinerary bundle.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/avdheim/transit-planner/internal/core/observability"
	"github.com/avdheim/transit-planner/internal/future"
	"github.com/avdheim/transit-planner/internal/transit"
)

// Config carries the per-provider settings for one client.
type Config struct {
	BaseURL string
	APIKey  string

	// AwaitTimeout bounds the blocking wait for the provider response.
	// Zero blocks until the transport settles the future.
	AwaitTimeout time.Duration
}

// Client issues one route query at a time. Planner tasks construct their
// own Client; there is no shared mutable state between calls.
type Client struct {
	cfg       Config
	transport Transport
}

func NewClient(cfg Config, transport Transport) *Client {
	return &Client{cfg: cfg, transport: transport}
}

// Query asks the provider for itineraries between two resolved
// coordinates. arriveBy selects whether when is the arrival or the
// departure time; when is rendered in the local timezone.
func (c *Client) Query(ctx context.Context, origin, dest transit.Coordinate, arriveBy bool, when time.Time) (*transit.Bundle, error) {
	reqURL := c.buildURL(origin, dest, arriveBy, when)

	f := future.New[[]byte]()
	start := time.Now()
	c.transport.Get(ctx, reqURL, func(body []byte, err error) {
		if err != nil {
			f.Fail(err)
			return
		}
		f.Resolve(body)
	})

	var body []byte
	var err error
	if c.cfg.AwaitTimeout > 0 {
		body, err = f.AwaitTimeout(c.cfg.AwaitTimeout)
	} else {
		body, err = f.Await()
	}
	observability.ObserveUpstreamLatency("route_provider", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, future.ErrTimeout) {
			return nil, err
		}
		return nil, &transit.TransportError{Op: "trip query", Err: err}
	}

	bundle, err := parseResponse(body)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func (c *Client) buildURL(origin, dest transit.Coordinate, arriveBy bool, when time.Time) string {
	arrival := "0"
	if arriveBy {
		arrival = "1"
	}

	q := url.Values{}
	q.Set("originCoordLat", coord(origin.Lat))
	q.Set("originCoordLong", coord(origin.Lon))
	q.Set("destCoordLat", coord(dest.Lat))
	q.Set("destCoordLong", coord(dest.Lon))
	q.Set("date", when.Local().Format("2006-01-02"))
	q.Set("time", when.Local().Format("15:04"))
	q.Set("searchForArrival", arrival)
	q.Set("accessId", c.cfg.APIKey)
	// Fixed constraints: public transit only, JSON answer.
	q.Set("originCar", "0")
	q.Set("destCar", "0")
	q.Set("originBike", "0")
	q.Set("destBike", "0")
	q.Set("originTaxi", "0")
	q.Set("destTaxi", "0")
	q.Set("originPark", "0")
	q.Set("destPark", "0")
	q.Set("format", "json")

	return c.cfg.BaseURL + "?" + q.Encode()
}

// parseResponse decodes the provider body. A structurally valid answer
// with zero trips means no route exists, which is a caller-visible
// condition, not a success with an empty list.
func parseResponse(body []byte) (*transit.Bundle, error) {
	var bundle transit.Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, &transit.ParseError{Err: err}
	}
	if len(bundle.Trips) == 0 {
		return nil, transit.ErrNoRouteFound
	}
	return &bundle, nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

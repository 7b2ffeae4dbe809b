package routing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avdheim/transit-planner/internal/transit"
)

const tripResponse = `{
	"Trip": [{
		"LegList": {"Leg": [{
			"Origin": {"name": "Frankfurt Hbf", "type": "ST", "extId": "3000010", "lat": 50.107, "lon": 8.663, "time": "14:30:00", "date": "2024-05-01", "track": "7"},
			"Destination": {"name": "Mannheim Hbf", "type": "ST", "extId": "2900001", "lat": 49.479, "lon": 8.468, "time": "15:05:00", "date": "2024-05-01"},
			"name": "ICE 573", "category": "ICE", "number": "573", "type": "JNY"
		}]}
	}],
	"serverVersion": "2.39", "dialectVersion": "unknown-extra-field"
}`

func newClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if cfg.BaseURL == "" {
		cfg.BaseURL = srv.URL
	}
	return NewClient(cfg, NewTransport(srv.Client()))
}

func TestQuery_BuildsProviderURL(t *testing.T) {
	var gotQuery map[string]string

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		_, _ = io.WriteString(w, tripResponse)
	}, Config{APIKey: "test-key"})

	when := time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local)
	_, err := c.Query(context.Background(),
		transit.Coordinate{Lat: 50.107, Lon: 8.663},
		transit.Coordinate{Lat: 49.479, Lon: 8.468},
		true, when)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	want := map[string]string{
		"originCoordLat":   "50.107",
		"originCoordLong":  "8.663",
		"destCoordLat":     "49.479",
		"destCoordLong":    "8.468",
		"date":             "2024-05-01",
		"time":             "14:30",
		"searchForArrival": "1",
		"accessId":         "test-key",
		"originCar":        "0",
		"destCar":          "0",
		"originBike":       "0",
		"destBike":         "0",
		"originTaxi":       "0",
		"destTaxi":         "0",
		"originPark":       "0",
		"destPark":         "0",
		"format":           "json",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("param %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestQuery_ParsesTrips_IgnoresUnknownFields(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, tripResponse)
	}, Config{})

	bundle, err := c.Query(context.Background(), transit.Coordinate{}, transit.Coordinate{}, false, time.Now())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(bundle.Trips) != 1 {
		t.Fatalf("trips = %d, want 1", len(bundle.Trips))
	}
	leg := bundle.Trips[0].LegList.Legs[0]
	if leg.Origin.Name != "Frankfurt Hbf" || leg.Origin.Track != "7" {
		t.Fatalf("origin = %+v", leg.Origin)
	}
	if leg.Number != "573" || leg.Category != "ICE" {
		t.Fatalf("leg = %+v", leg)
	}
}

func TestQuery_ZeroTripsIsNoRouteFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"Trip": []}`)
	}, Config{})

	_, err := c.Query(context.Background(), transit.Coordinate{}, transit.Coordinate{}, false, time.Now())
	if !errors.Is(err, transit.ErrNoRouteFound) {
		t.Fatalf("err = %v, want ErrNoRouteFound", err)
	}
}

func TestQuery_MissingTripKeyIsNoRouteFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"errorCode": "SVC_LOC"}`)
	}, Config{})

	_, err := c.Query(context.Background(), transit.Coordinate{}, transit.Coordinate{}, false, time.Now())
	if !errors.Is(err, transit.ErrNoRouteFound) {
		t.Fatalf("err = %v, want ErrNoRouteFound", err)
	}
}

func TestQuery_MalformedBodyIsParseError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	}, Config{})

	_, err := c.Query(context.Background(), transit.Coordinate{}, transit.Coordinate{}, false, time.Now())
	var perr *transit.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %T (%v), want ParseError", err, err)
	}
}

func TestQuery_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	client := srv.Client()
	srv.Close() // connection refused from here on

	c := NewClient(Config{BaseURL: srv.URL}, NewTransport(client))
	_, err := c.Query(context.Background(), transit.Coordinate{}, transit.Coordinate{}, false, time.Now())
	var terr *transit.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %T (%v), want TransportError", err, err)
	}
}

func TestQuery_UpstreamErrorStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	}, Config{})

	_, err := c.Query(context.Background(), transit.Coordinate{}, transit.Coordinate{}, false, time.Now())
	var terr *transit.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %T (%v), want TransportError", err, err)
	}
}

// Package transit contains the wire and persistence data types for
// itineraries returned by the route provider.
package transit

import "encoding/json"

// Coordinate is a WGS84 position. Immutable once resolved.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Stop is one end of a leg. The provider sometimes returns the raw
// "lat,lon" pair in Name instead of a place name; the scrubber repairs
// that before a bundle leaves the planner.
type Stop struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	ExtID string  `json:"extId"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Time  string  `json:"time,omitempty"`
	Date  string  `json:"date,omitempty"`
	Track string  `json:"track,omitempty"`
}

// Leg is a single vehicle segment of a trip.
type Leg struct {
	Origin      Stop   `json:"Origin"`
	Destination Stop   `json:"Destination"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Number      string `json:"number"`
	Type        string `json:"type"`
}

type LegList struct {
	Legs []Leg `json:"Leg"`
}

// Trip is one route alternative, an ordered sequence of legs.
type Trip struct {
	LegList LegList `json:"LegList"`
}

// Bundle is the full set of route alternatives returned for one query,
// plus persistence metadata. ID stays 0 until the bundle is stored.
// EventID associates the bundle with one external calendar entry.
type Bundle struct {
	ID         int64  `json:"-"`
	EventID    int64  `json:"-"`
	DataSource string `json:"-"`
	Trips      []Trip `json:"Trip"`
}

// Clone returns a deep copy. Save works on a copy so the caller's bundle
// is never mutated behind its back.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Trips = make([]Trip, len(b.Trips))
	for i, t := range b.Trips {
		legs := make([]Leg, len(t.LegList.Legs))
		copy(legs, t.LegList.Legs)
		cp.Trips[i] = Trip{LegList: LegList{Legs: legs}}
	}
	return &cp
}

// MarshalTrips serializes a trip list for the store's text column.
func MarshalTrips(trips []Trip) (string, error) {
	if trips == nil {
		return "[]", nil
	}
	b, err := json.Marshal(trips)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalTrips is the inverse of MarshalTrips.
func UnmarshalTrips(s string) ([]Trip, error) {
	if s == "" {
		return nil, nil
	}
	var trips []Trip
	if err := json.Unmarshal([]byte(s), &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// Package geocode defines the geocoder collaborator used by the planner:
// forward lookups from text to coordinates and reverse lookups from
// coordinates to a display name.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/avdheim/transit-planner/internal/transit"
)

// ErrNotFound is returned when a lookup completes but matches nothing.
// Transport and IO failures are returned as distinct errors.
var ErrNotFound = errors.New("geocode: no match")

// Place is a structured address. Coord is nil until the place has been
// resolved; a route query requires both ends resolved.
type Place struct {
	FeatureName string
	Street      string
	HouseNumber string
	Locality    string
	PostalCode  string
	Subregion   string
	Region      string
	Country     string

	Coord *transit.Coordinate
}

// Resolved reports whether the place already carries a coordinate.
func (p Place) Resolved() bool { return p.Coord != nil }

// Query joins the descriptive fields into a forward-geocoding query,
// skipping absent fields. Field order is fixed: feature name, street,
// locality, postal code, subregion, region, country.
func (p Place) Query() string {
	parts := make([]string, 0, 7)
	for _, s := range []string{
		p.FeatureName, p.Street, p.Locality, p.PostalCode,
		p.Subregion, p.Region, p.Country,
	} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// DisplayName composes the human-readable name for a reverse-geocoded
// place: "locality, street houseNumber" when all three are present,
// otherwise the feature name. The bool is false when neither form is
// available.
func (p Place) DisplayName() (string, bool) {
	if p.Locality != "" && p.Street != "" && p.HouseNumber != "" {
		return p.Locality + ", " + p.Street + " " + p.HouseNumber, true
	}
	if p.FeatureName != "" {
		return p.FeatureName, true
	}
	return "", false
}

// Geocoder resolves addresses in both directions.
type Geocoder interface {
	// Forward resolves free text to a place with a coordinate.
	// Returns ErrNotFound when the text matches nothing.
	Forward(ctx context.Context, query string) (Place, error)

	// Reverse resolves a coordinate to a display name.
	// Returns ErrNotFound when no name can be composed.
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Package scrub repairs itinerary bundles whose stop names carry raw
// "lat,lon" pairs instead of place names, a quirk of the route provider
// when a journey starts or ends at a free coordinate.
package scrub

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	h3 "github.com/uber/h3-go/v4"

	"github.com/avdheim/transit-planner/internal/geocode"
	"github.com/avdheim/transit-planner/internal/logger"
	"github.com/avdheim/transit-planner/internal/transit"
)

var coordPattern = regexp.MustCompile(`^-?\d+(\.\d+)?,\s*-?\d+(\.\d+)?$`)

// memoRes is fine enough (~10m cells) that distinct stops never share a
// cell, while jittered encodings of the same stop do.
const memoRes = 12

const memoSize = 64

// Scrubber replaces coordinate-pair stop names with reverse-geocoded
// place names. A lookup miss or failure leaves the original name in
// place; scrubbing never empties a name and never fails a bundle.
type Scrubber struct {
	geo geocode.Geocoder
	log *zerolog.Logger
}

func New(geo geocode.Geocoder, log *zerolog.Logger) *Scrubber {
	return &Scrubber{geo: geo, log: log}
}

// Scrub visits both stops of every leg in the bundle, in place.
// Idempotent: a bundle without coordinate names is left untouched.
func (s *Scrubber) Scrub(ctx context.Context, bundle *transit.Bundle) {
	if bundle == nil {
		return
	}

	// Reverse lookups are memoized for the duration of this call only;
	// the same interchange stop appears in many legs of one bundle.
	memo, _ := lru.New[string, string](memoSize)

	for ti := range bundle.Trips {
		legs := bundle.Trips[ti].LegList.Legs
		for li := range legs {
			s.fixStop(ctx, &legs[li].Origin, memo)
			s.fixStop(ctx, &legs[li].Destination, memo)
		}
	}
}

func (s *Scrubber) fixStop(ctx context.Context, stop *transit.Stop, memo *lru.Cache[string, string]) {
	if !coordPattern.MatchString(stop.Name) {
		return
	}

	lat, lon, ok := parsePair(stop.Name)
	if !ok {
		return
	}

	key := memoKey(lat, lon)
	if name, hit := memo.Get(key); hit {
		if name != "" {
			stop.Name = name
		}
		return
	}

	name, err := s.geo.Reverse(ctx, lat, lon)
	if err != nil {
		// Best effort: keep the coordinate string rather than losing
		// the stop's only identifier.
		logger.FromContext(ctx, s.log).Debug().
			Err(err).Str("stop", stop.Name).Msg("reverse geocode miss, keeping raw name")
		memo.Add(key, "")
		return
	}

	memo.Add(key, name)
	stop.Name = name
}

func parsePair(name string) (lat, lon float64, ok bool) {
	parts := strings.SplitN(name, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// memoKey collapses jittered encodings of the same position onto one H3
// cell. Falls back to the raw pair if the position is not indexable.
func memoKey(lat, lon float64) string {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, memoRes)
	if err != nil {
		return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
	}
	return cell.String()
}

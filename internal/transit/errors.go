package transit

import (
	"errors"
	"fmt"
)

// Side names which end of a journey an error refers to.
type Side int

const (
	SideOrigin Side = iota
	SideDestination
	SideBoth
)

func (s Side) String() string {
	switch s {
	case SideOrigin:
		return "origin"
	case SideDestination:
		return "destination"
	case SideBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ErrNoRouteFound is returned when the provider answers with zero trips.
var ErrNoRouteFound = errors.New("no route found")

// AddressNotFoundError reports that forward geocoding found nothing for
// one or both of the free-text addresses.
type AddressNotFoundError struct {
	Side        Side
	Origin      string
	Destination string
}

func (e *AddressNotFoundError) Error() string {
	switch e.Side {
	case SideBoth:
		return fmt.Sprintf("no address found for %q and %q", e.Origin, e.Destination)
	case SideDestination:
		return fmt.Sprintf("no address found for destination %q", e.Destination)
	default:
		return fmt.Sprintf("no address found for origin %q", e.Origin)
	}
}

// CoordinateResolutionError reports that a place could not be resolved to
// a coordinate on the place-based query path.
type CoordinateResolutionError struct {
	Side  Side
	Query string
}

func (e *CoordinateResolutionError) Error() string {
	return fmt.Sprintf("no coordinates found for %s %q", e.Side, e.Query)
}

// TransportError wraps a network or IO failure talking to an upstream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError wraps a response body that did not match the expected schema.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

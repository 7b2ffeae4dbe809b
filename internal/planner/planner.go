// Package planner chains geocoding, the route provider query and
// coordinate scrubbing into asynchronous itinerary pipelines, and
// manages persistence of chosen itineraries keyed by event id.
package planner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/avdheim/transit-planner/internal/core/httpclient"
	"github.com/avdheim/transit-planner/internal/core/observability"
	"github.com/avdheim/transit-planner/internal/events"
	"github.com/avdheim/transit-planner/internal/future"
	"github.com/avdheim/transit-planner/internal/geocode"
	"github.com/avdheim/transit-planner/internal/logger"
	"github.com/avdheim/transit-planner/internal/routing"
	"github.com/avdheim/transit-planner/internal/scrub"
	"github.com/avdheim/transit-planner/internal/store"
	"github.com/avdheim/transit-planner/internal/transit"
)

// Pipeline stages, in order. Any stage can fail the pipeline; none is
// retried.
const (
	stageGeocoding = "geocoding"
	stageRouting   = "routing"
	stageScrubbing = "scrubbing"
)

const defaultMaxWorkers = 8

type Options struct {
	// MaxWorkers bounds the number of concurrently running background
	// tasks. Calls beyond the bound still return a future immediately;
	// their work waits for a free slot.
	MaxWorkers int

	// DataSource tag stamped on every bundle produced by a query.
	DataSource string

	// HTTPClient used for route queries. Defaults to the tuned
	// outbound client.
	HTTPClient *http.Client

	// Notifier receives a change notification after every successful
	// save and delete. Optional.
	Notifier events.Notifier

	Logger *zerolog.Logger
}

type Planner struct {
	geo      geocode.Geocoder
	store    store.Store
	routeCfg routing.Config

	dataSource string
	httpClient *http.Client
	notifier   events.Notifier
	log        *zerolog.Logger

	sem   chan struct{}
	watch *watchRegistry
}

func New(geo geocode.Geocoder, st store.Store, routeCfg routing.Config, opts Options) *Planner {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	client := opts.HTTPClient
	if client == nil {
		client = httpclient.NewOutbound()
	}
	source := opts.DataSource
	if source == "" {
		source = "RMV"
	}

	return &Planner{
		geo:        geo,
		store:      st,
		routeCfg:   routeCfg,
		dataSource: source,
		httpClient: client,
		notifier:   opts.Notifier,
		log:        opts.Logger,
		sem:        make(chan struct{}, workers),
		watch:      newWatchRegistry(),
	}
}

// dispatch starts fn on a background goroutine and hands back the future
// right away. The worker bound is enforced inside the goroutine, so a
// burst of calls queues on the semaphore instead of overwhelming the
// upstreams; per-call results stay fully independent.
func dispatch[T any](p *Planner, op string, fn func() (T, error)) *future.Future[T] {
	f := future.New[T]()
	go func() {
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		v, err := fn()
		observability.ObservePlannerOp(op, err)
		if err != nil {
			f.Fail(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// QueryByAddress resolves two free-text addresses and queries the route
// provider for itineraries between them. The future fails with an
// AddressNotFoundError naming the side(s) when forward geocoding finds
// nothing.
func (p *Planner) QueryByAddress(ctx context.Context, originText, destText string, arriveBy bool, when time.Time) *future.Future[*transit.Bundle] {
	ctx = logger.WithQueryID(ctx, fingerprint(originText, destText, arriveBy, when))

	return dispatch(p, "query_by_address", func() (*transit.Bundle, error) {
		start := time.Now()
		origin, oErr := p.forward(ctx, originText)
		dest, dErr := p.forward(ctx, destText)
		observability.ObserveStage(stageGeocoding, time.Since(start).Seconds())

		oMissing := errors.Is(oErr, geocode.ErrNotFound)
		dMissing := errors.Is(dErr, geocode.ErrNotFound)
		switch {
		case oMissing && dMissing:
			return nil, &transit.AddressNotFoundError{Side: transit.SideBoth, Origin: originText, Destination: destText}
		case oMissing:
			return nil, &transit.AddressNotFoundError{Side: transit.SideOrigin, Origin: originText}
		case dMissing:
			return nil, &transit.AddressNotFoundError{Side: transit.SideDestination, Destination: destText}
		case oErr != nil:
			return nil, oErr
		case dErr != nil:
			return nil, dErr
		}

		return p.queryPlaces(ctx, origin, dest, arriveBy, when)
	})
}

// QueryByPlaces queries the route provider between two structured
// places, forward-geocoding any place that does not yet carry a
// coordinate.
func (p *Planner) QueryByPlaces(ctx context.Context, origin, dest geocode.Place, arriveBy bool, when time.Time) *future.Future[*transit.Bundle] {
	ctx = logger.WithQueryID(ctx, fingerprint(origin.Query(), dest.Query(), arriveBy, when))

	return dispatch(p, "query_by_places", func() (*transit.Bundle, error) {
		return p.queryPlaces(ctx, origin, dest, arriveBy, when)
	})
}

// queryPlaces is the shared pipeline tail: resolve → route → scrub.
func (p *Planner) queryPlaces(ctx context.Context, origin, dest geocode.Place, arriveBy bool, when time.Time) (*transit.Bundle, error) {
	start := time.Now()
	origin, err := p.resolve(ctx, origin, transit.SideOrigin)
	if err != nil {
		return nil, err
	}
	dest, err = p.resolve(ctx, dest, transit.SideDestination)
	if err != nil {
		return nil, err
	}
	observability.ObserveStage(stageGeocoding, time.Since(start).Seconds())

	rctx := logger.WithStage(ctx, stageRouting)
	logger.FromContext(rctx, p.log).Debug().
		Float64("origin_lat", origin.Coord.Lat).Float64("origin_lon", origin.Coord.Lon).
		Float64("dest_lat", dest.Coord.Lat).Float64("dest_lon", dest.Coord.Lon).
		Bool("arrive_by", arriveBy).Msg("querying route provider")

	// Each task owns its route client; nothing is shared across calls.
	client := routing.NewClient(p.routeCfg, routing.NewTransport(p.httpClient))

	start = time.Now()
	bundle, err := client.Query(rctx, *origin.Coord, *dest.Coord, arriveBy, when)
	observability.ObserveStage(stageRouting, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	start = time.Now()
	scrub.New(p.geo, p.log).Scrub(logger.WithStage(ctx, stageScrubbing), bundle)
	observability.ObserveStage(stageScrubbing, time.Since(start).Seconds())

	bundle.DataSource = p.dataSource
	return bundle, nil
}

// FetchByEvent reads all persisted bundles for the event and returns a
// live collection that is refreshed after every later save or delete
// touching the same event.
func (p *Planner) FetchByEvent(ctx context.Context, eventID int64) *future.Future[*Watchlist] {
	return dispatch(p, "fetch_by_event", func() (*Watchlist, error) {
		bundles, err := p.store.FetchByEventID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		return p.watch.register(eventID, bundles), nil
	})
}

// Save persists the chosen trips under the event id. The caller's bundle
// is never mutated; the returned bundle carries the stored state and the
// assigned identity. A bundle whose identity is unset or no longer in
// the store is inserted, otherwise updated in place. The decision is a
// lookup followed by a branch; two concurrent saves of the same fresh
// bundle can both insert.
func (p *Planner) Save(ctx context.Context, eventID int64, existing *transit.Bundle, trips []transit.Trip) *future.Future[*transit.Bundle] {
	return dispatch(p, "save", func() (*transit.Bundle, error) {
		b := existing.Clone()
		if b == nil {
			b = &transit.Bundle{DataSource: p.dataSource}
		}

		prevEventID := b.EventID
		b.EventID = eventID
		b.Trips = trips

		stored, err := p.saveBundle(ctx, b)
		if err != nil {
			return nil, err
		}

		if p.notifier != nil {
			p.notifier.Notify(events.Change{
				Action:     events.ActionSaved,
				EventID:    stored.EventID,
				BundleID:   stored.ID,
				DataSource: stored.DataSource,
			})
		}
		p.watch.refresh(ctx, p.store, eventID)
		if prevEventID != 0 && prevEventID != eventID {
			p.watch.refresh(ctx, p.store, prevEventID)
		}
		return stored, nil
	})
}

func (p *Planner) saveBundle(ctx context.Context, b *transit.Bundle) (*transit.Bundle, error) {
	if b.ID != 0 {
		_, err := p.store.FetchByID(ctx, b.ID)
		switch {
		case err == nil:
			if err := p.store.Update(ctx, b); err != nil {
				return nil, err
			}
			return b, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return p.store.Insert(ctx, b)
}

// DeleteTrip removes a persisted bundle by identity.
func (p *Planner) DeleteTrip(ctx context.Context, bundle *transit.Bundle) *future.Future[struct{}] {
	return dispatch(p, "delete_trip", func() (struct{}, error) {
		if bundle == nil || bundle.ID == 0 {
			return struct{}{}, fmt.Errorf("planner: delete: bundle has no identity")
		}
		if err := p.store.Delete(ctx, bundle.ID); err != nil {
			return struct{}{}, err
		}

		if p.notifier != nil {
			p.notifier.Notify(events.Change{
				Action:   events.ActionDeleted,
				EventID:  bundle.EventID,
				BundleID: bundle.ID,
			})
		}
		p.watch.refresh(ctx, p.store, bundle.EventID)
		return struct{}{}, nil
	})
}

func (p *Planner) forward(ctx context.Context, text string) (geocode.Place, error) {
	gctx := logger.WithStage(ctx, stageGeocoding)
	place, err := p.geo.Forward(gctx, text)
	if err != nil {
		logger.FromContext(gctx, p.log).Debug().Err(err).Str("query", text).Msg("forward geocode failed")
		return geocode.Place{}, err
	}
	return place, nil
}

// resolve fills in the coordinate of a place from its descriptive
// fields. Already-resolved places pass through untouched.
func (p *Planner) resolve(ctx context.Context, place geocode.Place, side transit.Side) (geocode.Place, error) {
	if place.Resolved() {
		return place, nil
	}

	query := place.Query()
	found, err := p.forward(ctx, query)
	if errors.Is(err, geocode.ErrNotFound) {
		return geocode.Place{}, &transit.CoordinateResolutionError{Side: side, Query: query}
	}
	if err != nil {
		return geocode.Place{}, err
	}
	return found, nil
}

// fingerprint derives the correlation id for one pipeline run. Stable
// for identical queries within the same minute, which is what makes it
// useful when reading interleaved logs.
func fingerprint(origin, dest string, arriveBy bool, when time.Time) string {
	h := xxhash.New()
	_, _ = h.WriteString(origin)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(dest)
	if arriveBy {
		_, _ = h.WriteString("\x00a")
	}
	_, _ = h.WriteString(when.Truncate(time.Minute).UTC().Format(time.RFC3339))
	return fmt.Sprintf("%016x", h.Sum64())
}

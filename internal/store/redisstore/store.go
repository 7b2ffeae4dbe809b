// Package redisstore implements the trip store on Redis. One bundle is a
// hash keyed by its numeric identity; a per-event set serves the eventId
// index; identities come from a single INCR counter.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avdheim/transit-planner/internal/core/observability"
	"github.com/avdheim/transit-planner/internal/store"
	"github.com/avdheim/transit-planner/internal/transit"
)

const (
	keyNextID   = "trip:next_id"
	keyPrefix   = "trip:"
	eventPrefix = "trip:event:"

	fieldEventID    = "event_id"
	fieldDataSource = "data_source"
	fieldTrips      = "trips"
)

type Store struct {
	rdb     *redis.Client
	timeout time.Duration
}

func New(ctx context.Context, addr string, timeout time.Duration) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redisstore: address is required")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return &Store{rdb: rdb, timeout: timeout}, nil
}

func bundleKey(id int64) string { return keyPrefix + strconv.FormatInt(id, 10) }
func eventKey(eid int64) string { return eventPrefix + strconv.FormatInt(eid, 10) }

func (s *Store) Insert(ctx context.Context, b *transit.Bundle) (out *transit.Bundle, err error) {
	defer func() { observability.ObserveStoreOp("redis", "insert", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.rdb.Incr(ctx, keyNextID).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: issue id: %w", err)
	}

	cp := b.Clone()
	cp.ID = id
	if err := s.writeRow(ctx, cp); err != nil {
		return nil, err
	}
	if err := s.rdb.SAdd(ctx, eventKey(cp.EventID), cp.ID).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: index event: %w", err)
	}
	return cp, nil
}

func (s *Store) Update(ctx context.Context, b *transit.Bundle) (err error) {
	defer func() { observability.ObserveStoreOp("redis", "update", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	oldEvent, err := s.rdb.HGet(ctx, bundleKey(b.ID), fieldEventID).Result()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redisstore: read current row: %w", err)
	}

	if err := s.writeRow(ctx, b); err != nil {
		return err
	}

	newEvent := strconv.FormatInt(b.EventID, 10)
	if oldEvent != newEvent {
		if err := s.rdb.SRem(ctx, eventPrefix+oldEvent, b.ID).Err(); err != nil {
			return fmt.Errorf("redisstore: unindex event: %w", err)
		}
		if err := s.rdb.SAdd(ctx, eventKey(b.EventID), b.ID).Err(); err != nil {
			return fmt.Errorf("redisstore: index event: %w", err)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (err error) {
	defer func() { observability.ObserveStoreOp("redis", "delete", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	event, err := s.rdb.HGet(ctx, bundleKey(id), fieldEventID).Result()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redisstore: read current row: %w", err)
	}

	if err := s.rdb.Del(ctx, bundleKey(id)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete row: %w", err)
	}
	if err := s.rdb.SRem(ctx, eventPrefix+event, id).Err(); err != nil {
		return fmt.Errorf("redisstore: unindex event: %w", err)
	}
	return nil
}

func (s *Store) DeleteByEventID(ctx context.Context, eventID int64) (err error) {
	defer func() { observability.ObserveStoreOp("redis", "delete_by_event", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.rdb.SMembers(ctx, eventKey(eventID)).Result()
	if err != nil {
		return fmt.Errorf("redisstore: list event members: %w", err)
	}
	for _, raw := range ids {
		id, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			continue
		}
		if err := s.rdb.Del(ctx, bundleKey(id)).Err(); err != nil {
			return fmt.Errorf("redisstore: delete row: %w", err)
		}
	}
	if err := s.rdb.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("redisstore: drop event index: %w", err)
	}
	return nil
}

func (s *Store) FetchByID(ctx context.Context, id int64) (out *transit.Bundle, err error) {
	defer func() { observability.ObserveStoreOp("redis", "fetch_by_id", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.readRow(ctx, id)
}

func (s *Store) FetchByEventID(ctx context.Context, eventID int64) (out []*transit.Bundle, err error) {
	defer func() { observability.ObserveStoreOp("redis", "fetch_by_event", err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.rdb.SMembers(ctx, eventKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list event members: %w", err)
	}

	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		if id, convErr := strconv.ParseInt(r, 10, 64); convErr == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bundles := make([]*transit.Bundle, 0, len(ids))
	for _, id := range ids {
		b, err := s.readRow(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// Row deleted between SMEMBERS and here; skip the stale index entry.
			continue
		}
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) writeRow(ctx context.Context, b *transit.Bundle) error {
	trips, err := transit.MarshalTrips(b.Trips)
	if err != nil {
		return fmt.Errorf("redisstore: marshal trips: %w", err)
	}
	err = s.rdb.HSet(ctx, bundleKey(b.ID),
		fieldEventID, b.EventID,
		fieldDataSource, b.DataSource,
		fieldTrips, trips,
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: write row: %w", err)
	}
	return nil
}

func (s *Store) readRow(ctx context.Context, id int64) (*transit.Bundle, error) {
	fields, err := s.rdb.HGetAll(ctx, bundleKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: read row: %w", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}

	eventID, err := strconv.ParseInt(fields[fieldEventID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: corrupt event id on row %d: %w", id, err)
	}
	trips, err := transit.UnmarshalTrips(fields[fieldTrips])
	if err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal trips on row %d: %w", id, err)
	}

	return &transit.Bundle{
		ID:         id,
		EventID:    eventID,
		DataSource: fields[fieldDataSource],
		Trips:      trips,
	}, nil
}

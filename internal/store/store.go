// Package store defines the trip store: keyed persistence for itinerary
// bundles, addressed by their own identity and by the external event id.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/avdheim/transit-planner/internal/transit"
)

// ErrNotFound is returned when the addressed bundle does not exist.
var ErrNotFound = errors.New("trip store: not found")

// Store is thin keyed CRUD. Atomicity is per operation only; callers
// must not assume multi-operation transactions.
type Store interface {
	// Insert persists a new bundle and returns a copy carrying the
	// assigned identity.
	Insert(ctx context.Context, b *transit.Bundle) (*transit.Bundle, error)

	// Update overwrites the stored bundle with the same identity.
	Update(ctx context.Context, b *transit.Bundle) error

	// Delete removes a bundle by identity.
	Delete(ctx context.Context, id int64) error

	// DeleteByEventID removes every bundle associated with the event.
	DeleteByEventID(ctx context.Context, eventID int64) error

	FetchByID(ctx context.Context, id int64) (*transit.Bundle, error)

	// FetchByEventID returns all bundles for the event, oldest first.
	FetchByEventID(ctx context.Context, eventID int64) ([]*transit.Bundle, error)

	Close() error
}

// Lazy defers backend construction to first use. The dial function runs
// exactly once for the process lifetime, whichever caller gets there
// first; every caller shares the resulting instance.
type Lazy struct {
	dial func(ctx context.Context) (Store, error)

	once sync.Once
	st   Store
	err  error
}

func NewLazy(dial func(ctx context.Context) (Store, error)) *Lazy {
	return &Lazy{dial: dial}
}

func (l *Lazy) get(ctx context.Context) (Store, error) {
	l.once.Do(func() {
		l.st, l.err = l.dial(ctx)
	})
	return l.st, l.err
}

func (l *Lazy) Insert(ctx context.Context, b *transit.Bundle) (*transit.Bundle, error) {
	st, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return st.Insert(ctx, b)
}

func (l *Lazy) Update(ctx context.Context, b *transit.Bundle) error {
	st, err := l.get(ctx)
	if err != nil {
		return err
	}
	return st.Update(ctx, b)
}

func (l *Lazy) Delete(ctx context.Context, id int64) error {
	st, err := l.get(ctx)
	if err != nil {
		return err
	}
	return st.Delete(ctx, id)
}

func (l *Lazy) DeleteByEventID(ctx context.Context, eventID int64) error {
	st, err := l.get(ctx)
	if err != nil {
		return err
	}
	return st.DeleteByEventID(ctx, eventID)
}

func (l *Lazy) FetchByID(ctx context.Context, id int64) (*transit.Bundle, error) {
	st, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return st.FetchByID(ctx, id)
}

func (l *Lazy) FetchByEventID(ctx context.Context, eventID int64) ([]*transit.Bundle, error) {
	st, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return st.FetchByEventID(ctx, eventID)
}

// Close shuts the backend down if it was ever dialed.
func (l *Lazy) Close() error {
	var st Store
	l.once.Do(func() {
		// Never dialed; mark settled so a later call cannot dial.
		l.err = errors.New("trip store: closed")
	})
	st = l.st
	if st == nil {
		return nil
	}
	return st.Close()
}

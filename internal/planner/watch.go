package planner

import (
	"context"
	"sync"

	"github.com/avdheim/transit-planner/internal/store"
	"github.com/avdheim/transit-planner/internal/transit"
)

// Watchlist is a live view of the bundles stored for one event: a
// snapshot plus a conflated update channel. Consumers read Bundles for
// the current state and select on Updates to learn about changes made
// through the same planner.
type Watchlist struct {
	eventID int64
	reg     *watchRegistry

	mu      sync.Mutex
	current []*transit.Bundle
	updates chan []*transit.Bundle
	closed  bool
}

// Bundles returns the most recent snapshot.
func (w *Watchlist) Bundles() []*transit.Bundle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Updates delivers a fresh snapshot after each save or delete touching
// the watched event. The channel is conflated: a slow consumer sees
// only the latest state, never a backlog.
func (w *Watchlist) Updates() <-chan []*transit.Bundle {
	return w.updates
}

// Close detaches the watchlist from the planner. Updates is closed.
func (w *Watchlist) Close() {
	w.reg.unregister(w)
}

func (w *Watchlist) push(bundles []*transit.Bundle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.current = bundles

	// Conflate: drop the stale pending snapshot, if any.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- bundles:
	default:
	}
}

type watchRegistry struct {
	mu       sync.Mutex
	watchers map[int64][]*Watchlist
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{watchers: map[int64][]*Watchlist{}}
}

func (r *watchRegistry) register(eventID int64, snapshot []*transit.Bundle) *Watchlist {
	w := &Watchlist{
		eventID: eventID,
		reg:     r,
		current: snapshot,
		updates: make(chan []*transit.Bundle, 1),
	}

	r.mu.Lock()
	r.watchers[eventID] = append(r.watchers[eventID], w)
	r.mu.Unlock()
	return w
}

func (r *watchRegistry) unregister(w *Watchlist) {
	r.mu.Lock()
	list := r.watchers[w.eventID]
	for i, cand := range list {
		if cand == w {
			r.watchers[w.eventID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.watchers[w.eventID]) == 0 {
		delete(r.watchers, w.eventID)
	}
	r.mu.Unlock()

	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.updates)
	}
	w.mu.Unlock()
}

// refresh re-reads the event's bundles and pushes the new snapshot to
// every watcher. A failed read is skipped; watchers keep their last
// known state rather than seeing a spurious empty list.
func (r *watchRegistry) refresh(ctx context.Context, st store.Store, eventID int64) {
	r.mu.Lock()
	watchers := append([]*Watchlist(nil), r.watchers[eventID]...)
	r.mu.Unlock()

	if len(watchers) == 0 {
		return
	}

	bundles, err := st.FetchByEventID(ctx, eventID)
	if err != nil {
		return
	}
	for _, w := range watchers {
		w.push(bundles)
	}
}

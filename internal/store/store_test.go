package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/avdheim/transit-planner/internal/transit"
)

type stubStore struct {
	inserts atomic.Int64
	closed  atomic.Bool
}

func (s *stubStore) Insert(_ context.Context, b *transit.Bundle) (*transit.Bundle, error) {
	out := b.Clone()
	out.ID = s.inserts.Add(1)
	return out, nil
}

func (s *stubStore) Update(context.Context, *transit.Bundle) error     { return nil }
func (s *stubStore) Delete(context.Context, int64) error               { return nil }
func (s *stubStore) DeleteByEventID(context.Context, int64) error      { return nil }
func (s *stubStore) FetchByID(context.Context, int64) (*transit.Bundle, error) {
	return nil, ErrNotFound
}
func (s *stubStore) FetchByEventID(context.Context, int64) ([]*transit.Bundle, error) {
	return nil, nil
}
func (s *stubStore) Close() error {
	s.closed.Store(true)
	return nil
}

func TestLazy_DialsOnce(t *testing.T) {
	var dials atomic.Int64
	backend := &stubStore{}
	lz := NewLazy(func(context.Context) (Store, error) {
		dials.Add(1)
		return backend, nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lz.Insert(ctx, &transit.Bundle{}); err != nil {
				t.Errorf("Insert: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := dials.Load(); n != 1 {
		t.Fatalf("dial count = %d, want 1", n)
	}
	if n := backend.inserts.Load(); n != 8 {
		t.Fatalf("inserts = %d, want 8", n)
	}
}

func TestLazy_DialErrorReachesEveryCaller(t *testing.T) {
	dialErr := errors.New("backend unreachable")
	lz := NewLazy(func(context.Context) (Store, error) { return nil, dialErr })

	ctx := context.Background()
	if _, err := lz.FetchByID(ctx, 1); !errors.Is(err, dialErr) {
		t.Fatalf("FetchByID err = %v", err)
	}
	if err := lz.Delete(ctx, 1); !errors.Is(err, dialErr) {
		t.Fatalf("Delete err = %v", err)
	}
}

func TestLazy_CloseBeforeDialPreventsLaterDial(t *testing.T) {
	var dials atomic.Int64
	lz := NewLazy(func(context.Context) (Store, error) {
		dials.Add(1)
		return &stubStore{}, nil
	})

	if err := lz.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := lz.Insert(context.Background(), &transit.Bundle{}); err == nil {
		t.Fatal("Insert after Close succeeded")
	}
	if n := dials.Load(); n != 0 {
		t.Fatalf("dial count = %d, want 0", n)
	}
}

func TestLazy_CloseAfterDialClosesBackend(t *testing.T) {
	backend := &stubStore{}
	lz := NewLazy(func(context.Context) (Store, error) { return backend, nil })

	if _, err := lz.Insert(context.Background(), &transit.Bundle{}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := lz.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !backend.closed.Load() {
		t.Fatal("backend not closed")
	}
}

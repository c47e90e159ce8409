package floorplan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-arnav/pkg/graph"
)

// Store holds the active floor plan and its graph. Ready closes once the
// first load settles, successfully or not; Set can replace the plan later.
type Store struct {
	logger *slog.Logger

	loadOnce  sync.Once
	readyOnce sync.Once
	ready     chan struct{}

	mu    sync.RWMutex
	plan  *Plan
	graph *graph.Graph
	err   error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger: defaultLogger(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load starts loading src in the background. Only the first call has any
// effect.
func (s *Store) Load(ctx context.Context, src Source) {
	s.loadOnce.Do(func() {
		go func() {
			start := time.Now()
			p, err := src.Load(ctx)
			if err != nil {
				s.logger.Error("floor plan load failed", "error", err)
				s.fail(err)
				return
			}
			s.Set(p)
			s.logger.Info("floor plan ready", "nodes", len(p.Nodes), "edges", len(p.Edges), "took", time.Since(start))
		}()
	})
}

// Set installs p synchronously and marks the store ready.
func (s *Store) Set(p *Plan) {
	g := p.Graph(graph.WithLogger(s.logger))

	s.mu.Lock()
	s.plan, s.graph, s.err = p, g, nil
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	if s.plan == nil {
		s.err = err
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready is closed when the first load has settled.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the store is ready or ctx ends.
func (s *Store) Wait(ctx context.Context) (*graph.Graph, *Plan, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %v", ErrNotReady, ctx.Err())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotReady, s.err)
	}
	return s.graph, s.plan, nil
}

// Current returns the installed plan without blocking.
func (s *Store) Current() (*graph.Graph, *Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return nil, nil, false
	}
	return s.graph, s.plan, true
}

// Package navigation ties the graph, planner, sampler, coordinate frame and
// dead-reckoning tracker into one per-device engine.
//
// An Engine is driven by discrete events (marker scans, motion and
// orientation samples, destination requests). Each handler runs to
// completion under the engine lock and then hands the events it produced to
// the EventSink. Routes are published as immutable values behind an atomic
// pointer, so readers never observe a half-built waypoint list.
package navigation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
	"github.com/teslashibe/go-arnav/pkg/pdr"
	"github.com/teslashibe/go-arnav/pkg/sampler"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEventSink sets the receiver of engine events.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithClock overrides the time source used to stamp events and routes.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine is the navigation context of one device.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	graph   *graph.Graph
	frame   *frame.Frame
	tracker *pdr.Tracker
	logger  *slog.Logger
	sink    EventSink
	now     func() time.Time

	state       State
	destination string
	generation  uint64
	next        int // first waypoint not yet reached
	route       atomic.Pointer[Route]

	pending []Event
}

// New creates an uninitialized engine over g.
func New(g *graph.Graph, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		graph:  g,
		frame:  frame.New(cfg.MapUnitsToMeters, cfg.Recalibrate),
		logger: slog.Default().With("component", "navigation"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tracker = pdr.New(cfg.PDR, pdr.WithLogger(e.logger))
	return e
}

// lock acquires the engine and returns the function that releases it and
// delivers queued events.
func (e *Engine) lock() func() {
	e.mu.Lock()
	return func() {
		events := e.pending
		e.pending = nil
		sink := e.sink
		e.mu.Unlock()
		if sink == nil {
			return
		}
		for _, ev := range events {
			sink(ev)
		}
	}
}

func (e *Engine) emit(ev Event) {
	if ev.Generation == 0 {
		ev.Generation = e.generation
	}
	ev.At = e.now()
	e.pending = append(e.pending, ev)
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	prev := e.state
	e.state = s
	e.logger.Info("state changed", "from", prev, "to", s, "generation", e.generation)
	e.emit(Event{Kind: EventStateChanged, State: s, Previous: prev})
}

// HandleMarker calibrates the frame at a scanned marker and resets the
// dead-reckoning estimate to it. While navigating, the route is re-planned
// from the scanned node.
func (e *Engine) HandleMarker(m MarkerObserved) error {
	unlock := e.lock()
	defer unlock()

	nodeID, pos, err := e.resolveMarker(m)
	if err != nil {
		e.logger.Warn("unknown marker", "marker", m.MarkerID, "error", err)
		return err
	}

	rot := e.rotationFor(m, pos)
	cal, changed := e.frame.Calibrate(m.MarkerID, pos, m.WorldPose.Position, rot)
	e.tracker.Anchor(pos)

	e.logger.Info("marker scanned", "marker", m.MarkerID, "node", nodeID, "recalibrated", changed)
	if changed {
		e.emit(Event{Kind: EventCalibrationChanged, Calibration: &cal})
	}
	if e.state == StateUninitialized {
		e.setState(StateCalibrated)
	}
	e.emit(Event{Kind: EventPositionUpdated, Position: e.position()})

	if e.state == StateNavigating {
		if nodeID == "" {
			if n, ok := e.graph.Nearest(pos); ok {
				nodeID = n.ID
			}
		}
		if _, err := e.plan(nodeID, e.destination); err != nil {
			e.logger.Warn("re-plan after marker scan failed", "error", err)
		}
	}
	return nil
}

// rotationFor picks the rotation offset for a scan: the pose's own, one
// derived from the compass and the plan's north reference, or the default.
func (e *Engine) rotationFor(m MarkerObserved, pos geom.Point) float64 {
	switch {
	case m.WorldPose.Rotation != nil:
		return *m.WorldPose.Rotation
	case m.CompassHeadingDegrees != nil && e.cfg.North != nil && geom.Distance(pos, *e.cfg.North) > 0:
		return frame.NorthOffset(pos, *e.cfg.North, *m.CompassHeadingDegrees)
	default:
		return e.cfg.RotationOffsetDegrees
	}
}

// resolveMarker finds the map position of a marker: its bound node, a node
// with the same id, or the position carried by the event.
func (e *Engine) resolveMarker(m MarkerObserved) (string, geom.Point, error) {
	if id, ok := e.cfg.Markers[m.MarkerID]; ok {
		n, ok := e.graph.Node(id)
		if !ok {
			return "", geom.Point{}, fmt.Errorf("%w: marker %q bound to %q", graph.ErrNodeNotFound, m.MarkerID, id)
		}
		return n.ID, n.Pos, nil
	}
	if n, ok := e.graph.Node(m.MarkerID); ok {
		return n.ID, n.Pos, nil
	}
	if m.MapPosition != nil && geom.Finite(*m.MapPosition) {
		return "", *m.MapPosition, nil
	}
	return "", geom.Point{}, fmt.Errorf("%w: marker %q", graph.ErrNodeNotFound, m.MarkerID)
}

// HandleMotion feeds an accelerometer sample to the tracker. Samples before
// the first scan or while sensors are unavailable are dropped silently.
func (e *Engine) HandleMotion(s pdr.MotionSample) error {
	unlock := e.lock()
	defer unlock()

	stepped, err := e.tracker.OnMotion(s)
	if err != nil {
		if errors.Is(err, pdr.ErrNotAnchored) || errors.Is(err, pdr.ErrSensorUnavailable) {
			e.logger.Debug("motion sample ignored", "reason", err)
			return nil
		}
		return err
	}
	if !stepped {
		return nil
	}

	e.emit(Event{Kind: EventPositionUpdated, Position: e.position()})
	if e.state == StateNavigating {
		e.checkArrival()
	}
	return nil
}

// HandleOrientation records a compass heading.
func (e *Engine) HandleOrientation(s pdr.OrientationSample) error {
	unlock := e.lock()
	defer unlock()

	if err := e.tracker.OnOrientation(s); err != nil && !errors.Is(err, pdr.ErrSensorUnavailable) {
		return err
	}
	return nil
}

// HandleSensorStatus records whether motion sensors are usable. Navigation
// continues on marker scans alone while they are not.
func (e *Engine) HandleSensorStatus(available bool, reason string) {
	unlock := e.lock()
	defer unlock()

	e.tracker.SetSensorAvailable(available, reason)
	e.emit(Event{Kind: EventSensorStatus, SensorAvailable: available, SensorReason: reason})
}

// RequestNavigation plans a route from the node nearest the current
// estimate to dest and publishes it, superseding any previous route.
func (e *Engine) RequestNavigation(dest string) (*Route, error) {
	unlock := e.lock()
	defer unlock()

	if !e.state.CanNavigate() {
		return nil, ErrNotCalibrated
	}
	pos, _ := e.tracker.Position()
	start, ok := e.graph.Nearest(pos)
	if !ok {
		err := fmt.Errorf("%w: empty graph", graph.ErrNodeNotFound)
		e.fail(dest, err)
		return nil, err
	}
	return e.plan(start.ID, dest)
}

// plan computes and publishes a route. On failure the previous route is
// withdrawn and the engine falls back to Calibrated.
func (e *Engine) plan(start, dest string) (*Route, error) {
	path, err := graph.Dijkstra(e.graph, start, dest)
	if err != nil {
		e.fail(dest, err)
		return nil, err
	}
	wps, err := sampler.Resample(path, e.graph, e.cfg.SpacingMeters, e.cfg.MapUnitsToMeters)
	if err != nil {
		e.fail(dest, err)
		return nil, err
	}
	wps, err = sampler.Project(wps, e.frame.ToWorld)
	if err != nil {
		e.fail(dest, err)
		return nil, err
	}

	e.generation++
	r := &Route{
		Generation:     e.generation,
		Destination:    dest,
		Path:           path,
		DistanceMeters: sampler.Length(path, e.cfg.MapUnitsToMeters),
		Waypoints:      wps,
		CreatedAt:      e.now(),
	}
	e.route.Store(r)
	e.destination = dest
	e.next = 0

	e.logger.Info("route computed",
		"generation", r.Generation,
		"from", start,
		"to", dest,
		"distance_m", r.DistanceMeters,
		"waypoints", len(wps))

	e.emit(Event{Kind: EventPathComputed, Route: r})
	e.emit(Event{Kind: EventWaypoints, Route: r})
	e.setState(StateNavigating)
	e.checkArrival()
	return r, nil
}

func (e *Engine) fail(dest string, err error) {
	e.generation++
	e.route.Store(nil)
	e.destination = ""
	e.next = 0
	e.logger.Warn("no route", "to", dest, "error", err)
	e.emit(Event{Kind: EventPathNotFound, Destination: dest, Err: err})
	e.setState(StateCalibrated)
}

// checkArrival marks reached waypoints and the destination, judged in world
// space against the current estimate.
func (e *Engine) checkArrival() {
	r := e.route.Load()
	if r == nil {
		return
	}
	pos, _ := e.tracker.Position()
	here, err := e.frame.ToWorld(pos)
	if err != nil {
		return
	}

	reached := -1
	for i := e.next; i < len(r.Waypoints); i++ {
		if here.Sub(r.Waypoints[i].WorldPosition).Norm() <= e.cfg.WaypointRadiusMeters {
			reached = i
		}
	}
	for i := e.next; i <= reached; i++ {
		e.emit(Event{Kind: EventWaypointReached, Index: i})
	}
	if reached >= 0 {
		e.next = reached + 1
	}

	dest, ok := e.graph.Node(r.Destination)
	if !ok {
		return
	}
	target, err := e.frame.ToWorld(dest.Pos)
	if err != nil {
		return
	}
	if here.Sub(target).Norm() <= e.cfg.ArrivalRadiusMeters {
		e.next = len(r.Waypoints)
		e.logger.Info("destination reached", "destination", r.Destination, "generation", r.Generation)
		e.emit(Event{Kind: EventDestinationReached, Destination: r.Destination})
		e.setState(StateArrived)
	}
}

// Cancel withdraws the active route.
func (e *Engine) Cancel() error {
	unlock := e.lock()
	defer unlock()

	if !e.state.CanCancel() {
		return fmt.Errorf("%w: cannot cancel while %s", ErrInvalidState, e.state)
	}
	e.generation++
	e.route.Store(nil)
	e.destination = ""
	e.next = 0
	e.setState(StateCalibrated)
	return nil
}

// ToWorld maps a floor-plan point into the calibrated world frame.
func (e *Engine) ToWorld(p geom.Point) (geom.Vector3, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateUninitialized {
		return geom.Vector3{}, ErrNotCalibrated
	}
	return e.frame.ToWorld(p)
}

func (e *Engine) position() *Position {
	st := e.tracker.State()
	p := &Position{
		Map:            st.EstimatedMapPosition,
		HeadingDegrees: st.HeadingDegrees,
		StepCount:      st.StepCount,
	}
	if w, err := e.frame.ToWorld(st.EstimatedMapPosition); err == nil {
		p.World = &w
	}
	return p
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Route returns the active route, or nil. It does not take the engine lock.
func (e *Engine) Route() *Route {
	return e.route.Load()
}

// Generation returns the current route generation.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Calibration returns the current calibration.
func (e *Engine) Calibration() frame.Calibration {
	return e.frame.Snapshot()
}

// Position returns the current position estimate.
func (e *Engine) Position() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.position()
}

// Graph returns the graph the engine navigates.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Snapshot returns a consistent view of the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:       e.state,
		Generation:  e.generation,
		Destination: e.destination,
		NextIndex:   e.next,
		Route:       e.route.Load(),
		Calibration: e.frame.Snapshot(),
		Tracker:     e.tracker.State(),
	}
}

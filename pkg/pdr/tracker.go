// Package pdr estimates a walker's floor-plan position between marker
// scans by pedestrian dead reckoning: each detected footstep moves the
// estimate one stride along the current compass heading.
package pdr

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/teslashibe/go-arnav/pkg/geom"
)

// Sentinel errors. Neither is fatal: callers keep feeding samples.
var (
	// ErrNotAnchored is returned for samples that arrive before the first Anchor.
	ErrNotAnchored = errors.New("pdr: not anchored")

	// ErrSensorUnavailable is returned while motion sensors are reported missing.
	ErrSensorUnavailable = errors.New("pdr: sensor unavailable")
)

// MotionSample is one accelerometer reading.
type MotionSample struct {
	AccelerationMagnitude float64 `json:"acceleration_magnitude"`
	TimestampMs           int64   `json:"timestamp_ms"`
}

// OrientationSample is one compass reading, degrees clockwise from north.
type OrientationSample struct {
	HeadingDegrees float64 `json:"heading_degrees"`
}

// State is a snapshot of the tracker.
type State struct {
	EstimatedMapPosition geom.Point `json:"estimated_map_position"`
	HeadingDegrees       float64    `json:"heading_degrees"`
	StepCount            int        `json:"step_count"`
	LastStepTimestampMs  int64      `json:"last_step_timestamp_ms"`
	Anchored             bool       `json:"anchored"`
	SensorAvailable      bool       `json:"sensor_available"`
	SensorReason         string     `json:"sensor_reason,omitempty"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// Tracker is a step detector plus dead-reckoning integrator.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	logger *slog.Logger

	// peak detection
	prev    MotionSample
	hasPrev bool
	rising  bool
	hasStep bool
}

// New creates an unanchored tracker. Non-positive config values fall back
// to DefaultConfig.
func New(cfg Config, opts ...Option) *Tracker {
	def := DefaultConfig()
	if !(cfg.StepLengthMeters > 0) {
		cfg.StepLengthMeters = def.StepLengthMeters
	}
	if !(cfg.MapUnitsToMeters > 0) {
		cfg.MapUnitsToMeters = def.MapUnitsToMeters
	}
	if cfg.MinStepInterval < 0 {
		cfg.MinStepInterval = def.MinStepInterval
	}

	t := &Tracker{
		cfg:    cfg,
		state:  State{SensorAvailable: true},
		logger: slog.Default().With("component", "pdr"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Anchor resets the estimate to p, typically a scanned marker's node. Step
// count, last-step time and peak history are cleared.
func (t *Tracker) Anchor(p geom.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.EstimatedMapPosition = p
	t.state.StepCount = 0
	t.state.LastStepTimestampMs = 0
	t.state.Anchored = true
	t.resetPeaks()
	t.logger.Debug("anchored", "x", p[0], "y", p[1])
}

// SetNorthOffset changes the offset added to compass readings. The current
// heading is not rewritten.
func (t *Tracker) SetNorthOffset(deg float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.NorthOffsetDegrees = deg
}

// SetSensorAvailable records whether motion sensors can be read. While
// unavailable the tracker idles and the estimate only moves on Anchor.
func (t *Tracker) SetSensorAvailable(ok bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.SensorAvailable == ok {
		return
	}
	t.state.SensorAvailable = ok
	t.state.SensorReason = ""
	if !ok {
		t.state.SensorReason = reason
		t.logger.Warn("motion sensors unavailable, dead reckoning idle", "reason", reason)
	}
	t.resetPeaks()
}

// OnOrientation records the latest compass heading, adjusted by the north
// offset. Readings are kept even before the first Anchor.
func (t *Tracker) OnOrientation(s OrientationSample) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.SensorAvailable {
		return ErrSensorUnavailable
	}
	if math.IsNaN(s.HeadingDegrees) || math.IsInf(s.HeadingDegrees, 0) {
		return nil
	}
	t.state.HeadingDegrees = geom.NormalizeDegrees(s.HeadingDegrees + t.cfg.NorthOffsetDegrees)
	return nil
}

// OnMotion feeds one acceleration sample and reports whether it completed a
// step. A step is a local maximum above Threshold at least MinStepInterval
// after the previous step; it is confirmed by the first lower sample and
// timestamped at the peak.
func (t *Tracker) OnMotion(s MotionSample) (stepped bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.SensorAvailable {
		return false, ErrSensorUnavailable
	}
	if !t.state.Anchored {
		return false, ErrNotAnchored
	}
	if math.IsNaN(s.AccelerationMagnitude) || math.IsInf(s.AccelerationMagnitude, 0) {
		return false, nil
	}

	if !t.hasPrev {
		t.prev, t.hasPrev = s, true
		return false, nil
	}

	peak := t.prev
	switch {
	case s.AccelerationMagnitude > peak.AccelerationMagnitude:
		t.rising = true
	case s.AccelerationMagnitude < peak.AccelerationMagnitude:
		if t.rising && peak.AccelerationMagnitude > t.cfg.Threshold && t.debounced(peak.TimestampMs) {
			t.step(peak.TimestampMs)
			stepped = true
		}
		t.rising = false
	}
	t.prev = s
	return stepped, nil
}

func (t *Tracker) debounced(ts int64) bool {
	if !t.hasStep {
		return true
	}
	return ts-t.state.LastStepTimestampMs >= t.cfg.MinStepInterval.Milliseconds()
}

func (t *Tracker) step(ts int64) {
	sin, cos := math.Sincos(geom.Radians(t.state.HeadingDegrees))
	d := t.cfg.StepLengthMeters / t.cfg.MapUnitsToMeters

	p := t.state.EstimatedMapPosition
	t.state.EstimatedMapPosition = geom.Point{p[0] + d*sin, p[1] + d*cos}
	t.state.StepCount++
	t.state.LastStepTimestampMs = ts
	t.hasStep = true

	t.logger.Debug("step",
		"count", t.state.StepCount,
		"heading", t.state.HeadingDegrees,
		"x", t.state.EstimatedMapPosition[0],
		"y", t.state.EstimatedMapPosition[1])
}

func (t *Tracker) resetPeaks() {
	t.prev = MotionSample{}
	t.hasPrev = false
	t.rising = false
	t.hasStep = false
}

// State returns a snapshot of the tracker.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Position returns the estimated map position and whether it is anchored.
func (t *Tracker) Position() (geom.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.EstimatedMapPosition, t.state.Anchored
}

// Package config loads the navigation server configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/pdr"
)

// Environment variables that override the file.
const (
	EnvAddr        = "NAV_ADDR"
	EnvFloorPlan   = "NAV_FLOORPLAN"
	EnvLogLevel    = "NAV_LOG_LEVEL"
	EnvMapScale    = "NAV_MAP_SCALE"
	EnvRecalibrate = "NAV_RECALIBRATE"
)

// Defaults.
const (
	DefaultAddr      = ":8080"
	DefaultLogLevel  = "info"
	DefaultFloorPlan = "floorplan.svg"
)

// Config is the navserver configuration.
type Config struct {
	Addr                string `json:"addr"`
	LogLevel            string `json:"log_level"`
	StaticDir           string `json:"static_dir,omitempty"`
	ReadyTimeoutSeconds int    `json:"ready_timeout_seconds"` // How long a device waits for the floor plan

	FloorPlan  FloorPlan  `json:"floorplan"`
	Navigation Navigation `json:"navigation"`
	Tracking   Tracking   `json:"tracking"`
}

// FloorPlan selects and parses the floor-plan file.
type FloorPlan struct {
	Path          string   `json:"path"`
	FlipY         bool     `json:"flip_y"`
	SnapTolerance float64  `json:"snap_tolerance"`
	MarkerPresets []string `json:"marker_presets,omitempty"`
}

// Navigation holds route and calibration parameters.
type Navigation struct {
	SpacingMeters         float64           `json:"spacing_meters"`
	MapUnitsToMeters      float64           `json:"map_units_to_meters"`
	WaypointRadiusMeters  float64           `json:"waypoint_radius_meters"`
	ArrivalRadiusMeters   float64           `json:"arrival_radius_meters"`
	RotationOffsetDegrees float64           `json:"rotation_offset_degrees"`
	Recalibrate           string            `json:"recalibrate"` // "reanchor" or "first_scan_wins"
	Markers               map[string]string `json:"markers,omitempty"`
}

// Tracking holds dead-reckoning parameters.
type Tracking struct {
	Preset             string  `json:"preset"` // "default" or "slow"
	Threshold          float64 `json:"threshold,omitempty"`
	MinStepIntervalMs  int     `json:"min_step_interval_ms,omitempty"`
	StepLengthMeters   float64 `json:"step_length_meters,omitempty"`
	NorthOffsetDegrees float64 `json:"north_offset_degrees"`
}

// Default returns the built-in configuration.
func Default() Config {
	nav := navigation.DefaultConfig()
	return Config{
		Addr:                DefaultAddr,
		LogLevel:            DefaultLogLevel,
		ReadyTimeoutSeconds: 10,
		FloorPlan: FloorPlan{
			Path:          DefaultFloorPlan,
			SnapTolerance: floorplan.DefaultSnapTolerance,
		},
		Navigation: Navigation{
			SpacingMeters:         nav.SpacingMeters,
			MapUnitsToMeters:      nav.MapUnitsToMeters,
			WaypointRadiusMeters:  nav.WaypointRadiusMeters,
			ArrivalRadiusMeters:   nav.ArrivalRadiusMeters,
			RotationOffsetDegrees: nav.RotationOffsetDegrees,
			Recalibrate:           nav.Recalibrate.String(),
		},
		Tracking: Tracking{
			Preset: "default",
		},
	}
}

// Load reads a JSON file over the defaults. A missing file yields the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from NAV_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvFloorPlan); v != "" {
		c.FloorPlan.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRecalibrate); v != "" {
		c.Navigation.Recalibrate = v
	}
	if v := os.Getenv(EnvMapScale); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvMapScale, v, err)
		}
		c.Navigation.MapUnitsToMeters = f
	}
	return nil
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("config: %s must be positive, got %v", name, v)
	}
	return nil
}

// Validate reports every problem in the configuration.
func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("config: addr is required"))
	}
	if c.FloorPlan.Path == "" {
		err = multierr.Append(err, errors.New("config: floorplan.path is required"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("config: unknown log_level %q", c.LogLevel))
	}
	if c.ReadyTimeoutSeconds <= 0 {
		err = multierr.Append(err, fmt.Errorf("config: ready_timeout_seconds must be positive, got %d", c.ReadyTimeoutSeconds))
	}
	if c.FloorPlan.SnapTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("config: floorplan.snap_tolerance must not be negative, got %v", c.FloorPlan.SnapTolerance))
	}

	n := c.Navigation
	err = multierr.Append(err, positive("navigation.spacing_meters", n.SpacingMeters))
	err = multierr.Append(err, positive("navigation.map_units_to_meters", n.MapUnitsToMeters))
	err = multierr.Append(err, positive("navigation.waypoint_radius_meters", n.WaypointRadiusMeters))
	err = multierr.Append(err, positive("navigation.arrival_radius_meters", n.ArrivalRadiusMeters))
	if _, perr := frame.ParsePolicy(n.Recalibrate); perr != nil {
		err = multierr.Append(err, fmt.Errorf("config: navigation.recalibrate: %w", perr))
	}

	t := c.Tracking
	switch t.Preset {
	case "", "default", "slow":
	default:
		err = multierr.Append(err, fmt.Errorf("config: unknown tracking.preset %q", t.Preset))
	}
	if t.Threshold < 0 || t.StepLengthMeters < 0 || t.MinStepIntervalMs < 0 {
		err = multierr.Append(err, errors.New("config: tracking overrides must not be negative"))
	}
	return err
}

// PDRConfig returns the dead-reckoning parameters.
func (c Config) PDRConfig() pdr.Config {
	cfg := pdr.DefaultConfig()
	if c.Tracking.Preset == "slow" {
		cfg = pdr.SlowConfig()
	}
	if c.Tracking.Threshold > 0 {
		cfg.Threshold = c.Tracking.Threshold
	}
	if c.Tracking.MinStepIntervalMs > 0 {
		cfg.MinStepInterval = time.Duration(c.Tracking.MinStepIntervalMs) * time.Millisecond
	}
	if c.Tracking.StepLengthMeters > 0 {
		cfg.StepLengthMeters = c.Tracking.StepLengthMeters
	}
	cfg.NorthOffsetDegrees = c.Tracking.NorthOffsetDegrees
	cfg.MapUnitsToMeters = c.Navigation.MapUnitsToMeters
	return cfg
}

// NavigationConfig returns the engine configuration. Call Validate first;
// an unparsable policy falls back to re-anchoring.
func (c Config) NavigationConfig() navigation.Config {
	policy, err := frame.ParsePolicy(c.Navigation.Recalibrate)
	if err != nil {
		policy = frame.PolicyReanchor
	}
	markers := make(map[string]string, len(c.Navigation.Markers))
	for k, v := range c.Navigation.Markers {
		markers[k] = v
	}
	return navigation.Config{
		SpacingMeters:         c.Navigation.SpacingMeters,
		MapUnitsToMeters:      c.Navigation.MapUnitsToMeters,
		WaypointRadiusMeters:  c.Navigation.WaypointRadiusMeters,
		ArrivalRadiusMeters:   c.Navigation.ArrivalRadiusMeters,
		RotationOffsetDegrees: c.Navigation.RotationOffsetDegrees,
		Recalibrate:           policy,
		PDR:                   c.PDRConfig(),
		Markers:               markers,
	}
}

// FloorPlanSource returns the source for the configured floor-plan file.
func (c Config) FloorPlanSource(logger *slog.Logger) floorplan.Source {
	return floorplan.FileSource{
		Path: c.FloorPlan.Path,
		SVG: floorplan.SVGOptions{
			SnapTolerance: c.FloorPlan.SnapTolerance,
			FlipY:         c.FloorPlan.FlipY,
			MarkerPresets: c.FloorPlan.MarkerPresets,
			Logger:        logger,
		},
	}
}

// ReadyTimeout returns how long a device waits for the floor plan.
func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

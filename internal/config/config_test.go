package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/pdr"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ReadyTimeout())

	nav := cfg.NavigationConfig()
	assert.Equal(t, 1.0, nav.SpacingMeters)
	assert.Equal(t, frame.DefaultMapUnitsToMeters, nav.MapUnitsToMeters)
	assert.Equal(t, frame.PolicyReanchor, nav.Recalibrate)
	assert.Equal(t, pdr.DefaultConfig(), nav.PDR)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "navserver.json")
	data := `{
		"addr": ":9090",
		"floorplan": {"path": "office.json", "flip_y": true},
		"navigation": {"spacing_meters": 2, "recalibrate": "first_scan_wins", "markers": {"hiro": "lobby"}},
		"tracking": {"preset": "slow", "step_length_meters": 0.6}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel, "unset fields keep their defaults")
	assert.True(t, cfg.FloorPlan.FlipY)
	assert.Equal(t, floorplan.DefaultSnapTolerance, cfg.FloorPlan.SnapTolerance)

	nav := cfg.NavigationConfig()
	assert.Equal(t, 2.0, nav.SpacingMeters)
	assert.Equal(t, frame.PolicyFirstScanWins, nav.Recalibrate)
	assert.Equal(t, "lobby", nav.Markers["hiro"])
	assert.Equal(t, 0.6, nav.PDR.StepLengthMeters)
	assert.Equal(t, pdr.SlowConfig().MinStepInterval, nav.PDR.MinStepInterval)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr":`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvFloorPlan, "/plans/hq.svg")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvMapScale, "0.05")
	t.Setenv(EnvRecalibrate, "first_scan_wins")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "/plans/hq.svg", cfg.FloorPlan.Path)
	assert.Equal(t, "debug", cfg.LogLevel)

	nav := cfg.NavigationConfig()
	assert.Equal(t, 0.05, nav.MapUnitsToMeters)
	assert.Equal(t, 0.05, nav.PDR.MapUnitsToMeters, "tracker scale follows the route scale")
	assert.Equal(t, frame.PolicyFirstScanWins, nav.Recalibrate)
}

func TestApplyEnvBadScale(t *testing.T) {
	t.Setenv(EnvMapScale, "one cm")
	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errs   int
	}{
		{"defaults", func(*Config) {}, 0},
		{"empty addr", func(c *Config) { c.Addr = "" }, 1},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, 1},
		{"zero spacing", func(c *Config) { c.Navigation.SpacingMeters = 0 }, 1},
		{"negative scale", func(c *Config) { c.Navigation.MapUnitsToMeters = -1 }, 1},
		{"bad policy", func(c *Config) { c.Navigation.Recalibrate = "sometimes" }, 1},
		{"bad preset", func(c *Config) { c.Tracking.Preset = "sprint" }, 1},
		{"several", func(c *Config) {
			c.Addr = ""
			c.FloorPlan.Path = ""
			c.Navigation.ArrivalRadiusMeters = 0
			c.ReadyTimeoutSeconds = 0
		}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Len(t, multierr.Errors(err), tt.errs, "%v", err)
		})
	}
}

func TestFloorPlanSource(t *testing.T) {
	cfg := Default()
	cfg.FloorPlan.Path = "hq.svg"
	cfg.FloorPlan.FlipY = true

	src, ok := cfg.FloorPlanSource(nil).(floorplan.FileSource)
	require.True(t, ok)
	assert.Equal(t, "hq.svg", src.Path)
	assert.True(t, src.SVG.FlipY)
	assert.Equal(t, floorplan.DefaultSnapTolerance, src.SVG.SnapTolerance)
}

package pdr

import "time"

// Config holds the step detector and dead-reckoning parameters.
type Config struct {
	// Step detection
	Threshold       float64       // Peak acceleration magnitude that counts as a step (m/s²)
	MinStepInterval time.Duration // Peaks closer than this to the last step are ignored

	// Displacement
	StepLengthMeters   float64 // Distance covered per step
	MapUnitsToMeters   float64 // Floor-plan scale
	NorthOffsetDegrees float64 // Added to every compass reading
}

// DefaultConfig returns the parameters tuned for a handheld phone.
func DefaultConfig() Config {
	return Config{
		Threshold:       1.5,                    // Above walking noise, below a stomp
		MinStepInterval: 300 * time.Millisecond, // ~3 steps/s cadence ceiling

		StepLengthMeters:   0.7,  // Average adult stride
		MapUnitsToMeters:   0.01, // 1 SVG unit = 1 cm
		NorthOffsetDegrees: 0,
	}
}

// SlowConfig returns parameters for slow walkers and assisted mobility:
// shorter strides and a longer debounce.
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.MinStepInterval = 500 * time.Millisecond
	cfg.StepLengthMeters = 0.5
	cfg.Threshold = 1.2
	return cfg
}

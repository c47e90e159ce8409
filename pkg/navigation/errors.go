package navigation

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-arnav/pkg/frame"
)

var (
	// ErrNotCalibrated is returned for world transforms and navigation
	// requests before the first marker scan. It matches frame.ErrUncalibrated.
	ErrNotCalibrated = fmt.Errorf("navigation: scan a marker first: %w", frame.ErrUncalibrated)

	// ErrInvalidState is returned for operations the current state does not allow.
	ErrInvalidState = errors.New("navigation: invalid state")
)

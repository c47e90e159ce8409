package frame

import (
	"fmt"
	"strings"
)

// Policy decides what a marker scan does to an already calibrated frame.
type Policy int

const (
	// PolicyReanchor recalibrates on every scan.
	PolicyReanchor Policy = iota
	// PolicyFirstScanWins keeps the first calibration until Reset.
	PolicyFirstScanWins
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyReanchor:
		return "reanchor"
	case PolicyFirstScanWins:
		return "first_scan_wins"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name. The empty string is PolicyReanchor.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reanchor", "re-anchor":
		return PolicyReanchor, nil
	case "first_scan_wins", "first-scan-wins", "first":
		return PolicyFirstScanWins, nil
	default:
		return PolicyReanchor, fmt.Errorf("frame: unknown recalibration policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

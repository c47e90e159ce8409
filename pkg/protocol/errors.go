package protocol

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/graph"
	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/pdr"
	"github.com/teslashibe/go-arnav/pkg/sampler"
)

// Code is a stable failure code clients branch on.
type Code string

const (
	CodeNodeNotFound        Code = "NODE_NOT_FOUND"
	CodeNoPathFound         Code = "NO_PATH_FOUND"
	CodeUncalibratedFrame   Code = "UNCALIBRATED_FRAME"
	CodeInvalidEdgeGeometry Code = "INVALID_EDGE_GEOMETRY"
	CodeSensorUnavailable   Code = "SENSOR_UNAVAILABLE"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeInternal            Code = "INTERNAL"
)

// ErrBadRequest marks malformed or unknown client messages.
var ErrBadRequest = errors.New("protocol: bad request")

// FailureCode maps an engine error to its wire code.
func FailureCode(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, graph.ErrNodeNotFound):
		return CodeNodeNotFound
	case errors.Is(err, graph.ErrNoPathFound):
		return CodeNoPathFound
	case errors.Is(err, frame.ErrUncalibrated):
		return CodeUncalibratedFrame
	case errors.Is(err, graph.ErrInvalidEdgeGeometry):
		return CodeInvalidEdgeGeometry
	case errors.Is(err, pdr.ErrSensorUnavailable):
		return CodeSensorUnavailable
	case errors.Is(err, navigation.ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrBadRequest), errors.Is(err, sampler.ErrInvalidSpacing):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}

// Failure is an error carrying its wire code.
type Failure struct {
	Code    Code
	Request MessageType
	Err     error
}

// NewFailure wraps err with its failure code.
func NewFailure(req MessageType, err error) *Failure {
	return &Failure{Code: FailureCode(err), Request: req, Err: err}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Request != "" {
		return fmt.Sprintf("protocol [%s]: %s: %v", f.Request, f.Code, f.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", f.Code, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Message converts the failure to an error message.
func (f *Failure) Message() (*Message, error) {
	return NewMessage(TypeError, ErrorData{Code: f.Code, Message: f.Err.Error(), Request: f.Request})
}

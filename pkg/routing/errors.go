package routing

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindDecode   ErrorKind = "decode"
	KindNoResult ErrorKind = "noResult"
	KindConfig   ErrorKind = "config"
)

var (
	ErrPolylineTooShort = errors.New("polyline needs at least 2 points")
	ErrNoRoutes         = errors.New("no routes available")
	ErrIndexOutOfRange  = errors.New("route index out of range")
)

// RoutingError is returned for failed route requests
//
//nolint:revive // the name is intended
type RoutingError struct {
	Kind ErrorKind
	Err  error
}

func (e *RoutingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("routing failed (%s)", e.Kind)
	}
	return fmt.Sprintf("routing failed (%s): %v", e.Kind, e.Err)
}

func (e *RoutingError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *RoutingError {
	return &RoutingError{Kind: kind, Err: err}
}

// IsKind reports whether err is a RoutingError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *RoutingError
	return errors.As(err, &re) && re.Kind == kind
}

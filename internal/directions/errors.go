package directions

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNoRoute            = errors.New("directions: no route found")
	ErrTooFewPoints       = errors.New("directions: at least two coordinates required")
	ErrInvalidCoordinates = errors.New("directions: coordinate out of range")
)

// UpstreamError reports a failed call to the routing provider: a non-2xx
// status, a transport failure or a timeout. Callers treat it as recoverable.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Package transport defines the error kinds shared by the local and cloud
// transports. Transports never retry on their own; recovery decisions belong
// to the failover controller.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrInvalidCredentials reports a login or command rejected by the cloud relay
// (HTTP 403/422). One automatic re-auth is attempted; after that it surfaces
// to the user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Error wraps a network failure or non-2xx response from either transport.
type Error struct {
	Op         string // e.g. "local poll", "cloud command"
	StatusCode int    // 0 when the request never completed
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a connect/read timeout kind of failure,
// the only kind eligible for cloud→local command fallback.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

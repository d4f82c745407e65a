package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrForeignSession is returned when FetchDate receives a session this client did not create.
var ErrForeignSession = errors.New("session was not established by this upstream client")

// HandshakeError is a non-200 answer from the entry URL.
type HandshakeError struct {
	StatusCode int
	URL        string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("session handshake with %s returned HTTP %d", e.URL, e.StatusCode)
}

func (e *HandshakeError) HTTPStatus() int { return e.StatusCode }

// StatusError is a non-200 answer to a CSV request.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned HTTP %d", e.URL, e.StatusCode)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// SessionExpired reports whether the upstream rejected the session cookies.
func (e *StatusError) SessionExpired() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

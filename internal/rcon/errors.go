package rcon

import "errors"

// Session errors. Each is scoped to the failing call; none is retried
// automatically, and only an authentication rejection forces the
// session closed.
var (
	// ErrAlreadyAuthenticated is returned when Authenticate is called on
	// a session that already completed the handshake.
	ErrAlreadyAuthenticated = errors.New("session is already authenticated")

	// ErrAuthenticationFailed means the server rejected the credentials.
	// The session is forcibly disconnected as a side effect.
	ErrAuthenticationFailed = errors.New("authentication rejected by server")

	// ErrNotConnected is returned when an operation requires an open
	// connection and there is none.
	ErrNotConnected = errors.New("session is not connected")

	// ErrNotAuthorized is returned when Execute is called before a
	// successful handshake.
	ErrNotAuthorized = errors.New("session is not authenticated")

	// ErrSendUnavailable means the transport cannot currently accept a
	// write.
	ErrSendUnavailable = errors.New("transport cannot accept writes")

	// ErrPacketTooLarge means the encoded request exceeds the configured
	// maximum. Nothing was sent.
	ErrPacketTooLarge = errors.New("encoded packet exceeds configured maximum size")

	// ErrRequestPending rejects a request issued while another is still
	// awaiting its reply. The session is strictly one-in-flight.
	ErrRequestPending = errors.New("another request is awaiting its reply")

	// ErrTimeout means no matching reply arrived within the configured
	// response timeout.
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrConnectionClosed aborts a pending request when the connection
	// goes away before its reply arrives.
	ErrConnectionClosed = errors.New("connection closed before reply arrived")
)

// TransportError wraps a lower-layer failure so callers can distinguish
// protocol-state errors from socket trouble.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

package entities

import "errors"

// Sentinel errors for the session and audio pipelines. Transport and
// protocol failures are delivered through the session's error callback;
// these are returned synchronously from precondition checks.
var (
	// ErrNotConnected is returned by send operations when the transport
	// is not open.
	ErrNotConnected = errors.New("session: not connected")

	// ErrNotInitiated is returned by sendTextMessage when the handshake
	// has not completed. Audio sends drop silently instead.
	ErrNotInitiated = errors.New("session: conversation not initiated")

	// ErrConnectionLost is returned when the transport closes between a
	// precondition check and the send.
	ErrConnectionLost = errors.New("session: connection lost")

	// ErrModeConflict is returned when a send would switch the sticky
	// conversation mode mid-connection.
	ErrModeConflict = errors.New("session: conversation mode already set, reconnect to switch")

	// ErrMicrophoneUnavailable is returned when the capture device cannot
	// be acquired. The caller must retry manually.
	ErrMicrophoneUnavailable = errors.New("capture: microphone unavailable")

	// ErrKeepaliveTimeout is surfaced through the error callback when no
	// keepalive signal has been seen within the staleness window.
	ErrKeepaliveTimeout = errors.New("session: keepalive timeout")
)

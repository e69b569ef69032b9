// Package transport owns the message-oriented duplex connection to the
// remote conversational service. It exposes opaque text frames and a close
// notification; protocol interpretation happens one layer up.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	handshakeTimeout = 10 * time.Second
)

// ErrLinkClosed is returned by Send after the link has been closed.
var ErrLinkClosed = errors.New("transport: link closed")

// Link is one open websocket connection. A link is single-owner: exactly
// one session controller reads and writes it at a time.
type Link struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex
	closed  bool
}

// Dial opens a websocket connection to the given URL. The context bounds
// the handshake only, not the life of the connection.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Link, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	logger.Info("Transport connected")

	return &Link{conn: conn, logger: logger}, nil
}

// Send writes one text frame. Safe for concurrent use; the websocket
// permits only one writer at a time.
func (l *Link) Send(payload []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.closed {
		return ErrLinkClosed
	}

	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := l.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Run reads frames until the connection closes, invoking onFrame for each
// text frame and onClose exactly once at the end with the close code (or
// CloseAbnormalClosure when none was received). Run blocks; callers start
// it in its own goroutine.
func (l *Link) Run(onFrame func(frame []byte), onClose func(code int, reason string)) {
	defer l.Close()

	for {
		messageType, message, err := l.conn.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			reason := ""
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code = closeErr.Code
				reason = closeErr.Text
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Warn("Transport closed unexpectedly",
					zap.Int("code", code),
					zap.Error(err))
			}
			onClose(code, reason)
			return
		}

		if messageType != websocket.TextMessage {
			l.logger.Warn("Ignoring non-text frame", zap.Int("type", messageType))
			continue
		}
		onFrame(message)
	}
}

// Close sends a normal-closure frame and tears the connection down.
// Idempotent and safe at any time, including mid-dial from another
// goroutine's perspective.
func (l *Link) Close() error {
	l.writeMu.Lock()
	if l.closed {
		l.writeMu.Unlock()
		return nil
	}
	l.closed = true

	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	l.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	l.writeMu.Unlock()

	return l.conn.Close()
}

// IsNormalClose reports whether the close code indicates an orderly
// shutdown (normal closure or going away).
func IsNormalClose(code int) bool {
	return code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway
}

// DescribeClose maps a websocket close code to a human-readable message for
// the error callback.
func DescribeClose(code int, reason string) string {
	switch code {
	case websocket.CloseProtocolError:
		return "protocol error - invalid websocket frame"
	case websocket.CloseUnsupportedData:
		return "data type error - unsupported data received"
	case websocket.CloseAbnormalClosure:
		return "connection lost abnormally - possible network issue"
	case websocket.CloseInvalidFramePayloadData:
		return "invalid data format - check message encoding"
	case websocket.ClosePolicyViolation:
		return "policy violation - message violated server policy"
	case websocket.CloseMessageTooBig:
		return "message too large - reduce audio chunk size"
	case websocket.CloseInternalServerErr:
		return "server error - internal server problem"
	case websocket.CloseServiceRestart:
		return "service restart - server is restarting"
	case websocket.CloseTryAgainLater:
		return "try again later - server temporarily unavailable"
	case websocket.CloseTLSHandshake:
		return "TLS handshake failure - security issue"
	default:
		msg := fmt.Sprintf("connection closed unexpectedly (code: %d)", code)
		if reason != "" {
			msg += ": " + reason
		}
		return msg
	}
}

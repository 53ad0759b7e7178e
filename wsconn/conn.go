// Package wsconn exposes the public WebSocket connection handle passed to
// user WebSocketHandlers: a thin, documented façade over internal/wsproto's
// state machine.
package wsconn

import (
	"context"

	"github.com/google/uuid"

	"github.com/gowsd/server/internal/wsproto"
)

// MessageType identifies whether a received Message is text, binary, or a
// Close.
type MessageType = wsproto.MessageType

const (
	TextMessage   = wsproto.TextMessage
	BinaryMessage = wsproto.BinaryMessage
	CloseMessage  = wsproto.CloseMessage
)

// CloseCode is a WebSocket close status code (RFC 6455 Section 7.4).
type CloseCode = wsproto.CloseCode

const (
	CloseNormalClosure           = wsproto.CloseNormalClosure
	CloseGoingAway               = wsproto.CloseGoingAway
	CloseProtocolError           = wsproto.CloseProtocolError
	CloseUnsupportedData         = wsproto.CloseUnsupportedData
	CloseNoStatusReceived        = wsproto.CloseNoStatusReceived
	CloseAbnormalClosure         = wsproto.CloseAbnormalClosure
	CloseInvalidFramePayloadData = wsproto.CloseInvalidFramePayloadData
	ClosePolicyViolation         = wsproto.ClosePolicyViolation
	CloseMessageTooBig           = wsproto.CloseMessageTooBig
	CloseMandatoryExtension      = wsproto.CloseMandatoryExtension
	CloseInternalServerErr       = wsproto.CloseInternalServerErr
)

// Message is one delivered application-level message.
type Message = wsproto.Message

// Errors ReceiveMessage can return, re-exported so callers can check them
// with errors.Is without importing internal/wsproto directly.
var (
	ErrClosed                 = wsproto.ErrClosed
	ErrProtocolViolation      = wsproto.ErrProtocolError
	ErrUnexpectedContinuation = wsproto.ErrUnexpectedContinuation
	ErrControlTooLarge        = wsproto.ErrControlTooLarge
	ErrFrameTooLarge          = wsproto.ErrFrameTooLarge
	ErrUnmaskedFrame          = wsproto.ErrUnmaskedFrame
)

// Conn is the handle a WebSocketHandler receives after a successful
// upgrade. It is single-reader (ReceiveMessage must not be called
// concurrently from more than one goroutine) and multi-writer (SendText /
// SendBinary / SendPing / Close may be called concurrently; a send mutex
// inside the wrapped wsproto.Conn serializes the bytes on the wire).
type Conn struct {
	id    uuid.UUID
	inner *wsproto.Conn
}

// New wraps an established wsproto.Conn with a stable connection ID.
func New(inner *wsproto.Conn) *Conn {
	return &Conn{id: uuid.New(), inner: inner}
}

// ID returns a stable identifier for this connection, suitable for log
// fields and Hub registry keys.
func (c *Conn) ID() string { return c.id.String() }

// ReceiveMessage blocks until the next application message arrives, a Close
// frame is received, or ctx is done.
func (c *Conn) ReceiveMessage(ctx context.Context) (Message, error) {
	return c.inner.ReceiveMessage(ctx)
}

// SendText sends a single unfragmented text message.
func (c *Conn) SendText(ctx context.Context, s string) error {
	return c.inner.SendText(ctx, s)
}

// SendBinary sends a single unfragmented binary message.
func (c *Conn) SendBinary(ctx context.Context, data []byte) error {
	return c.inner.SendBinary(ctx, data)
}

// SendPing sends a ping frame carrying at most 125 bytes of data.
func (c *Conn) SendPing(ctx context.Context, data []byte) error {
	return c.inner.SendPing(ctx, data)
}

// Close sends a normal-closure Close frame. Idempotent.
func (c *Conn) Close(ctx context.Context) error {
	return c.inner.Close(ctx, CloseNormalClosure, "")
}

// CloseWithCode sends a Close frame carrying a specific status and reason.
// Idempotent: subsequent calls after the first are a no-op.
func (c *Conn) CloseWithCode(ctx context.Context, code CloseCode, reason string) error {
	return c.inner.Close(ctx, code, reason)
}

// IsOpen reports whether neither side has sent/received a Close frame yet.
func (c *Conn) IsOpen() bool { return c.inner.IsOpen() }

// OnPing registers a callback fired whenever a Ping frame is received
// (after the automatic Pong reply has already been sent).
func (c *Conn) OnPing(fn func(payload []byte)) { c.inner.OnPing(fn) }

// OnPong registers a callback fired whenever a Pong frame is received.
func (c *Conn) OnPong(fn func(payload []byte)) { c.inner.OnPong(fn) }

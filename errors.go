package gowsd

import (
	"errors"

	"github.com/gowsd/server/wsconn"
)

// Error kinds surfaced across the public API. Most are the exact sentinel
// values internal/wsproto and internal/httpreq return, re-exported here so
// callers can use errors.Is without reaching into internal packages.
var (
	// ErrOversizeBody indicates a Content-Length above MaxRequestBodyBytes;
	// the worker answers with 413.
	ErrOversizeBody = errors.New("gowsd: request body exceeds configured limit")

	// ErrOversizeFrame indicates a WebSocket frame above
	// MaxFramePayloadBytes; ReceiveMessage closes the connection with status
	// 1009 (Message Too Big) and returns this error.
	ErrOversizeFrame = wsconn.ErrFrameTooLarge

	// ErrServerClosed identifies a Server that has been stopped. None of
	// Server's methods return it.
	ErrServerClosed = errors.New("gowsd: server closed")

	// These four cover some of the RFC 6455 Section 7.4.1 framing
	// violations ReceiveMessage detects: an oversize control frame, a frame
	// out of sequence with the current fragmentation state, a 64-bit
	// length with its high bit set, or, when Config.StrictClientMasking is
	// set, an unmasked client frame. ReceiveMessage closes the connection
	// with status 1002 (Protocol Error) before returning one of these. It
	// also closes with 1002 on reserved bits set, an invalid opcode, or a
	// fragmented control frame, but returns internal errors for those that
	// are not re-exported here.
	ErrProtocolViolation      = wsconn.ErrProtocolViolation
	ErrUnexpectedContinuation = wsconn.ErrUnexpectedContinuation
	ErrControlTooLarge        = wsconn.ErrControlTooLarge
	ErrUnmaskedFrame          = wsconn.ErrUnmaskedFrame

	// ErrConnClosed is returned by Conn methods once the connection has
	// completed its close handshake.
	ErrConnClosed = wsconn.ErrClosed
)

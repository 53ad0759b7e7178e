package wsproto

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Stream is the minimal interface a Conn needs from the underlying
// transport: byte reads/writes plus optional deadlines, so cancellation can
// be expressed as a deadline push without the frame codec itself needing to
// know about context.Context.
type Stream interface {
	io.Reader
	io.Writer
}

// deadliner is implemented by net.Conn and satisfied by the connections the
// worker hands to Conn; streams that don't support deadlines (e.g. an
// in-memory pipe in tests) simply skip the deadline push.
type deadliner interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// Metrics receives frame-level counters from a Conn. A nil Metrics is a
// no-op; wsmetrics.Registry implements this interface so wsproto never
// needs to import it directly.
type Metrics interface {
	FrameRead(opcode byte)
	FrameWritten(opcode byte)
	ProtocolError()
}

// Conn is the WebSocket connection state machine: it
// owns the stream, serializes sends behind a single mutex, and tracks the
// half-close state (isOpen / closeSent).
type Conn struct {
	stream Stream
	reader *bufio.Reader
	writer *bufio.Writer

	maxFramePayload int
	metrics         Metrics
	strictMasking   bool

	sendMu sync.Mutex

	stateMu   sync.Mutex
	isOpen    bool
	closeSent bool

	onPing func([]byte)
	onPong func([]byte)
}

// SetMetrics installs a counter sink; passing nil disables counting.
func (c *Conn) SetMetrics(m Metrics) { c.metrics = m }

// SetStrictMasking controls whether an unmasked data or control frame from
// the client is treated as a protocol error (RFC 6455 Section 5.1 requires
// servers to reject them) versus accepted leniently, which is the default.
func (c *Conn) SetStrictMasking(strict bool) { c.strictMasking = strict }

// NewConn constructs a Conn over stream using buffered reader/writer sized
// per readBufSize/writeBufSize (0 selects a 4096-byte default), ready to
// run immediately after the 101 response has been sent.
func NewConn(stream Stream, readBufSize, writeBufSize, maxFramePayload int) *Conn {
	if readBufSize <= 0 {
		readBufSize = 4096
	}
	if writeBufSize <= 0 {
		writeBufSize = 4096
	}
	return &Conn{
		stream:          stream,
		reader:          bufio.NewReaderSize(stream, readBufSize),
		writer:          bufio.NewWriterSize(stream, writeBufSize),
		maxFramePayload: maxFramePayload,
		isOpen:          true,
	}
}

// OnPing registers a callback invoked (synchronously, from whichever
// goroutine calls ReceiveMessage) whenever a Ping frame arrives, after the
// automatic Pong has already been sent.
func (c *Conn) OnPing(fn func(payload []byte)) { c.onPing = fn }

// OnPong registers a callback invoked when a Pong frame arrives.
func (c *Conn) OnPong(fn func(payload []byte)) { c.onPong = fn }

// IsOpen reports whether no Close frame has been received and none has
// been sent.
func (c *Conn) IsOpen() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.isOpen
}

func (c *Conn) closeSentLocked() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closeSent
}

func (c *Conn) pushDeadline(ctx context.Context, write bool) {
	dl, ok := ctx.Deadline()
	if !ok {
		return
	}
	if d, ok := c.stream.(deadliner); ok {
		if write {
			_ = d.SetWriteDeadline(dl)
		} else {
			_ = d.SetReadDeadline(dl)
		}
	}
}

// ReceiveMessage reads frames until a complete Text/Binary message is
// assembled or a Close frame arrives. Ping frames are
// auto-ponged and reported via OnPing; Pong frames are reported via OnPong.
// A Close frame sets isOpen false and returns immediately without waiting
// for further frames.
//
//nolint:gocyclo,cyclop // fragmentation + control-frame handling per RFC 6455
func (c *Conn) ReceiveMessage(ctx context.Context) (Message, error) {
	if !c.IsOpen() {
		return Message{}, ErrClosed
	}

	var (
		fragType byte
		inFrag   bool
		acc      bytes.Buffer
	)

	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		c.pushDeadline(ctx, false)

		f, err := ReadFrame(c.reader, c.maxFramePayload)
		if err != nil {
			if code, ok := protocolCloseCode(err); ok {
				if c.metrics != nil {
					c.metrics.ProtocolError()
				}
				_ = c.Close(ctx, code, err.Error())
			}
			return Message{}, err
		}
		if c.metrics != nil {
			c.metrics.FrameRead(f.Opcode)
		}
		if c.strictMasking && !f.Masked {
			if c.metrics != nil {
				c.metrics.ProtocolError()
			}
			_ = c.Close(ctx, CloseProtocolError, "unmasked frame")
			return Message{}, ErrUnmaskedFrame
		}

		switch f.Opcode {
		case OpcodeClose:
			status, reason := decodeClosePayload(f.Payload)
			c.stateMu.Lock()
			c.isOpen = false
			c.stateMu.Unlock()
			return Message{Kind: CloseMessage, CloseStatus: status, CloseReason: reason}, nil

		case OpcodePing:
			if err := c.sendControl(ctx, OpcodePong, f.Payload); err != nil {
				return Message{}, err
			}
			if c.onPing != nil {
				c.onPing(f.Payload)
			}
			continue

		case OpcodePong:
			if c.onPong != nil {
				c.onPong(f.Payload)
			}
			continue

		case OpcodeContinuation:
			if !inFrag {
				_ = c.Close(ctx, CloseProtocolError, "unexpected continuation")
				return Message{}, ErrUnexpectedContinuation
			}
			acc.Write(f.Payload)
			if f.Fin {
				return Message{Kind: messageTypeFor(fragType), Data: cloneBuf(&acc)}, nil
			}

		case OpcodeText, OpcodeBinary:
			if f.Fin {
				return Message{Kind: messageTypeFor(f.Opcode), Data: f.Payload}, nil
			}
			if inFrag {
				_ = c.Close(ctx, CloseProtocolError, "expected continuation frame")
				return Message{}, ErrProtocolError
			}
			inFrag = true
			fragType = f.Opcode
			acc.Reset()
			acc.Write(f.Payload)

		default:
			err := fmt.Errorf("%w: opcode 0x%X", ErrProtocolError, f.Opcode)
			_ = c.Close(ctx, CloseProtocolError, "unsupported opcode")
			return Message{}, err
		}
	}
}

func cloneBuf(b *bytes.Buffer) []byte {
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out
}

func messageTypeFor(opcode byte) MessageType {
	if opcode == OpcodeBinary {
		return BinaryMessage
	}
	return TextMessage
}

// protocolCloseCode maps an error ReadFrame (or ReceiveMessage itself) can
// return to the WebSocket close status RFC 6455 Section 7.4.1 assigns it.
// ok is false for errors that are not framing violations (plain I/O
// failures, context cancellation) and so should not trigger a Close frame
// write on a stream that is already broken.
func protocolCloseCode(err error) (code CloseCode, ok bool) {
	switch {
	case errors.Is(err, ErrFrameTooLarge):
		return CloseMessageTooBig, true
	case errors.Is(err, ErrProtocolError),
		errors.Is(err, ErrReservedBits),
		errors.Is(err, ErrInvalidOpcode),
		errors.Is(err, ErrControlFragmented),
		errors.Is(err, ErrControlTooLarge),
		errors.Is(err, ErrUnexpectedContinuation),
		errors.Is(err, ErrUnmaskedFrame):
		return CloseProtocolError, true
	default:
		return 0, false
	}
}

func decodeClosePayload(payload []byte) (CloseCode, string) {
	if len(payload) < 2 {
		return CloseNoStatusReceived, ""
	}
	status := CloseCode(binary.BigEndian.Uint16(payload[:2]))
	return status, string(payload[2:])
}

// SendText sends a single unfragmented text frame.
func (c *Conn) SendText(ctx context.Context, s string) error {
	return c.sendData(ctx, OpcodeText, []byte(s))
}

// SendBinary sends a single unfragmented binary frame.
func (c *Conn) SendBinary(ctx context.Context, data []byte) error {
	return c.sendData(ctx, OpcodeBinary, data)
}

// SendPing sends a ping frame; data must be 125 bytes or fewer.
func (c *Conn) SendPing(ctx context.Context, data []byte) error {
	return c.sendControl(ctx, OpcodePing, data)
}

func (c *Conn) sendData(ctx context.Context, opcode byte, data []byte) error {
	if c.closeSentLocked() {
		return nil
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.pushDeadline(ctx, true)
	err := WriteFrame(c.writer, &Frame{Fin: true, Opcode: opcode, Payload: data})
	if err == nil && c.metrics != nil {
		c.metrics.FrameWritten(opcode)
	}
	return err
}

// sendControl sends a control frame. It is used both for the public
// SendPing and internally (from ReceiveMessage) for the automatic Pong,
// which is why it takes the mutex itself rather than relying on a caller
// that already holds it: the Pong must interleave safely with concurrent
// user sends of the same connection.
func (c *Conn) sendControl(ctx context.Context, opcode byte, data []byte) error {
	if c.closeSentLocked() {
		return nil
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.pushDeadline(ctx, true)
	err := WriteFrame(c.writer, &Frame{Fin: true, Opcode: opcode, Payload: data})
	if err == nil && c.metrics != nil {
		c.metrics.FrameWritten(opcode)
	}
	return err
}

// Close sends a Close frame with status and reason. Idempotent: once a
// Close has been sent, later calls are a no-op and write zero additional
// bytes to the wire.
func (c *Conn) Close(ctx context.Context, status CloseCode, reason string) error {
	c.stateMu.Lock()
	if c.closeSent {
		c.stateMu.Unlock()
		return nil
	}
	c.closeSent = true
	c.isOpen = false
	c.stateMu.Unlock()

	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(status))
	copy(payload[2:], reason)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.pushDeadline(ctx, true)
	err := WriteFrame(c.writer, &Frame{Fin: true, Opcode: OpcodeClose, Payload: payload})
	if err == nil && c.metrics != nil {
		c.metrics.FrameWritten(OpcodeClose)
	}
	return err
}

// CloseUnderlying shuts down the raw stream if it implements io.Closer. The
// worker does not call it; worker.Handle closes its net.Conn directly.
func (c *Conn) CloseUnderlying() error {
	if closer, ok := c.stream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SetLinger applies the configured socket linger to the underlying
// connection, if it is a *net.TCPConn, so pending data flushes before close.
func SetLinger(stream Stream, seconds int) {
	if tcp, ok := stream.(*net.TCPConn); ok {
		_ = tcp.SetLinger(seconds)
	}
}

package wsproto

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// pipeEnds returns a server-side Conn wired to a raw net.Conn the test can
// read/write directly, standing in for the client side of the wire.
func pipeEnds(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { _ = server.Close(); _ = client.Close() })
	return NewConn(server, 0, 0, 0), client
}

func clientSendsFrame(t *testing.T, client net.Conn, f *Frame) {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteFrame(bufio.NewWriter(&buf), f); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := client.Write(buf.Bytes()); err != nil {
		t.Fatalf("client write failed: %v", err)
	}
}

func clientReadsFrame(t *testing.T, client net.Conn) *Frame {
	t.Helper()
	f, err := ReadFrame(bufio.NewReader(client), 0)
	if err != nil {
		t.Fatalf("client ReadFrame failed: %v", err)
	}
	return f
}

func TestReceiveMessage_UnfragmentedText(t *testing.T) {
	conn, client := pipeEnds(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("Hello")})
	}()

	msg, err := conn.ReceiveMessage(context.Background())
	<-done
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if msg.Kind != TextMessage || string(msg.Data) != "Hello" {
		t.Fatalf("got %v %q", msg.Kind, msg.Data)
	}
}

func TestReceiveMessage_FragmentedAssembly(t *testing.T) {
	conn, client := pipeEnds(t)

	go func() {
		clientSendsFrame(t, client, &Frame{Fin: false, Opcode: OpcodeText, Payload: []byte("Hel")})
		clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeContinuation, Payload: []byte("lo")})
	}()

	msg, err := conn.ReceiveMessage(context.Background())
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if msg.Kind != TextMessage || string(msg.Data) != "Hello" {
		t.Fatalf("got %v %q", msg.Kind, msg.Data)
	}
}

func TestReceiveMessage_ContinuationWithoutStart(t *testing.T) {
	conn, client := pipeEnds(t)

	go clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeContinuation, Payload: []byte("x")})
	closeFrame := make(chan *Frame, 1)
	go func() { closeFrame <- clientReadsFrame(t, client) }()

	_, err := conn.ReceiveMessage(context.Background())
	if err != ErrUnexpectedContinuation {
		t.Fatalf("expected ErrUnexpectedContinuation, got %v", err)
	}

	// The connection closes itself with a protocol error status rather than
	// leaving it to the caller.
	if f := <-closeFrame; f.Opcode != OpcodeClose {
		t.Fatalf("expected a self-initiated Close frame, got opcode 0x%X", f.Opcode)
	}
}

func TestReceiveMessage_StrictMaskingRejectsUnmaskedFrame(t *testing.T) {
	conn, client := pipeEnds(t)
	conn.SetStrictMasking(true)

	go clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("x")})
	closeFrame := make(chan *Frame, 1)
	go func() { closeFrame <- clientReadsFrame(t, client) }()

	_, err := conn.ReceiveMessage(context.Background())
	if err != ErrUnmaskedFrame {
		t.Fatalf("expected ErrUnmaskedFrame, got %v", err)
	}

	if f := <-closeFrame; f.Opcode != OpcodeClose {
		t.Fatalf("expected a self-initiated Close frame, got opcode 0x%X", f.Opcode)
	}
}

func TestReceiveMessage_LenientByDefaultAcceptsUnmaskedFrame(t *testing.T) {
	conn, client := pipeEnds(t)

	go clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("x")})

	msg, err := conn.ReceiveMessage(context.Background())
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if string(msg.Data) != "x" {
		t.Fatalf("got %q", msg.Data)
	}
}

func TestReceiveMessage_PingAutoPong(t *testing.T) {
	conn, client := pipeEnds(t)

	var pinged []byte
	conn.OnPing(func(p []byte) { pinged = p })

	go func() {
		clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodePing, Payload: []byte("ping")})
		clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("after")})
	}()

	// The Pong is written from inside ReceiveMessage, so it must be running
	// while the client side reads the Pong off the pipe.
	type result struct {
		msg Message
		err error
	}
	results := make(chan result, 1)
	go func() {
		msg, err := conn.ReceiveMessage(context.Background())
		results <- result{msg, err}
	}()

	pong := clientReadsFrame(t, client)
	if pong.Opcode != OpcodePong || string(pong.Payload) != "ping" {
		t.Fatalf("expected auto-pong echoing payload, got opcode 0x%X payload %q", pong.Opcode, pong.Payload)
	}

	res := <-results
	msg, err := res.msg, res.err
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if string(msg.Data) != "after" {
		t.Fatalf("got %q", msg.Data)
	}
	if string(pinged) != "ping" {
		t.Fatalf("OnPing callback payload = %q", pinged)
	}
}

func TestReceiveMessage_Close(t *testing.T) {
	conn, client := pipeEnds(t)

	payload := []byte{0x03, 0xE8} // status 1000
	go clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeClose, Payload: payload})

	msg, err := conn.ReceiveMessage(context.Background())
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if msg.Kind != CloseMessage || msg.CloseStatus != CloseNormalClosure || msg.CloseReason != "" {
		t.Fatalf("got kind=%v status=%v reason=%q", msg.Kind, msg.CloseStatus, msg.CloseReason)
	}
	if conn.IsOpen() {
		t.Fatal("expected IsOpen() false after receiving Close")
	}
}

func TestReceiveMessage_CloseEmptyPayload(t *testing.T) {
	conn, client := pipeEnds(t)

	go clientSendsFrame(t, client, &Frame{Fin: true, Opcode: OpcodeClose})

	msg, err := conn.ReceiveMessage(context.Background())
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if msg.CloseStatus != CloseNoStatusReceived || msg.CloseReason != "" {
		t.Fatalf("got status=%v reason=%q", msg.CloseStatus, msg.CloseReason)
	}
}

func TestClose_Idempotent(t *testing.T) {
	conn, client := pipeEnds(t)

	read := make(chan *Frame, 2)
	go func() {
		read <- clientReadsFrame(t, client)
	}()

	if err := conn.Close(context.Background(), CloseNormalClosure, ""); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	<-read

	// Second call must write zero additional bytes: nobody reads the pipe
	// any more, so a second frame write would block and the call would
	// never return.
	if err := conn.Close(context.Background(), CloseNormalClosure, "ignored"); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestSendText_RejectedAfterCloseSent(t *testing.T) {
	conn, client := pipeEnds(t)
	go func() { _, _ = bufio.NewReader(client).ReadByte() }()

	_ = conn.Close(context.Background(), CloseNormalClosure, "")
	if err := conn.SendText(context.Background(), "too late"); err != nil {
		t.Fatalf("SendText after close should be a silent no-op, got error: %v", err)
	}
}

func TestSendText_ConcurrentSerialization(t *testing.T) {
	conn, client := pipeEnds(t)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = conn.SendText(context.Background(), "msg")
		}(i)
	}

	go func() {
		wg.Wait()
	}()

	r := bufio.NewReader(client)
	for i := 0; i < n; i++ {
		f, err := ReadFrame(r, 0)
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if f.Opcode != OpcodeText || string(f.Payload) != "msg" || !f.Fin {
			t.Fatalf("frame %d malformed: opcode=0x%X fin=%v payload=%q", i, f.Opcode, f.Fin, f.Payload)
		}
	}
}

func TestSendPing_RejectsOversizePayload(t *testing.T) {
	conn, _ := pipeEnds(t)
	big := bytes.Repeat([]byte{0}, 200)
	err := conn.SendPing(context.Background(), big)
	if err != ErrControlTooLarge {
		t.Fatalf("expected ErrControlTooLarge, got %v", err)
	}
}

func TestPushDeadline_RespectsContextDeadline(t *testing.T) {
	conn, _ := pipeEnds(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.ReceiveMessage(ctx)
	if err == nil {
		t.Fatal("expected a read-deadline error on an idle pipe")
	}
}

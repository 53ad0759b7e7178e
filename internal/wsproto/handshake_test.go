package wsproto

import (
	"context"
	"strings"
	"testing"

	"github.com/gowsd/server/internal/httpreq"
	"github.com/gowsd/server/internal/linereader"
)

func mustParse(t *testing.T, raw string) *httpreq.Request {
	t.Helper()
	req, err := httpreq.ParseRequest(context.Background(), linereader.New(strings.NewReader(raw)), 0)
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	return req
}

func TestComputeAcceptKey_RFCVector(t *testing.T) {
	got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("ComputeAcceptKey() = %q, want %q", got, want)
	}
}

func TestIsUpgrade_ValidRequest(t *testing.T) {
	req := mustParse(t, "GET /ws HTTP/1.1\r\n"+
		"Host:x\r\n"+
		"Upgrade:websocket\r\n"+
		"Connection:Upgrade\r\n"+
		"Sec-WebSocket-Key:dGhlIHNhbXBsZSBub25jZQ==\r\n"+
		"Sec-WebSocket-Version:13\r\n\r\n")

	if !IsUpgrade(req) {
		t.Fatal("expected IsUpgrade() true")
	}
}

func TestIsUpgrade_NonGetRejected(t *testing.T) {
	req := mustParse(t, "POST /ws HTTP/1.1\r\n"+
		"Upgrade:websocket\r\nConnection:Upgrade\r\n"+
		"Sec-WebSocket-Key:x\r\nSec-WebSocket-Version:13\r\n\r\n")
	if IsUpgrade(req) {
		t.Fatal("expected IsUpgrade() false for POST")
	}
}

func TestIsUpgrade_WrongVersionRejected(t *testing.T) {
	req := mustParse(t, "GET /ws HTTP/1.1\r\n"+
		"Upgrade:websocket\r\nConnection:Upgrade\r\n"+
		"Sec-WebSocket-Key:x\r\nSec-WebSocket-Version:8\r\n\r\n")
	if IsUpgrade(req) {
		t.Fatal("expected IsUpgrade() false for version != 13")
	}
}

func TestIsUpgrade_MissingKeyRejected(t *testing.T) {
	req := mustParse(t, "GET /ws HTTP/1.1\r\n"+
		"Upgrade:websocket\r\nConnection:Upgrade\r\nSec-WebSocket-Version:13\r\n\r\n")
	if IsUpgrade(req) {
		t.Fatal("expected IsUpgrade() false for missing key")
	}
}

func TestIsUpgrade_ConnectionTokenAmongMultiple(t *testing.T) {
	req := mustParse(t, "GET /ws HTTP/1.1\r\n"+
		"Upgrade:websocket\r\nConnection: keep-alive, Upgrade\r\n"+
		"Sec-WebSocket-Key:x\r\nSec-WebSocket-Version:13\r\n\r\n")
	if !IsUpgrade(req) {
		t.Fatal("expected IsUpgrade() true with Upgrade among multiple Connection tokens")
	}
}

func TestIsUpgrade_NonUpgradeRequestFallsThrough(t *testing.T) {
	req := mustParse(t, "GET /hello HTTP/1.1\r\nHost:x\r\n\r\n")
	if IsUpgrade(req) {
		t.Fatal("expected IsUpgrade() false for ordinary GET")
	}
}

func TestNegotiateSubprotocol_FirstMatch(t *testing.T) {
	req := mustParse(t, "GET /ws HTTP/1.1\r\nSec-WebSocket-Protocol: chat, superchat\r\n\r\n")
	got := NegotiateSubprotocol(req, []string{"superchat", "chat"})
	if got != "chat" {
		t.Errorf("got %q, want chat (first client-listed match found in server list)", got)
	}
}

func TestNegotiateSubprotocol_NoServerProtos(t *testing.T) {
	req := mustParse(t, "GET /ws HTTP/1.1\r\nSec-WebSocket-Protocol: chat\r\n\r\n")
	if got := NegotiateSubprotocol(req, nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

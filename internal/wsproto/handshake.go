package wsproto

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6455 §1.3, not used for security
	"encoding/base64"
	"strings"

	"github.com/gowsd/server/internal/httpreq"
)

// websocketGUID is the fixed magic value from RFC 6455 Section 1.3 used to
// derive Sec-WebSocket-Accept from the client's key.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// IsUpgrade reports whether req qualifies as a WebSocket upgrade request
// GET, HTTP/1.1+, Connection containing "upgrade",
// Upgrade equal to "websocket", a non-empty Sec-WebSocket-Key, and
// Sec-WebSocket-Version exactly "13".
func IsUpgrade(req *httpreq.Request) bool {
	if req.Method != "GET" {
		return false
	}
	if !isHTTP11OrHigher(req.HTTPVersion) {
		return false
	}
	if !req.Header.ContainsToken("Connection", "upgrade") {
		return false
	}
	if strings.ToLower(strings.TrimSpace(req.Header.Get("Upgrade"))) != "websocket" {
		return false
	}
	if req.Header.Get("Sec-WebSocket-Key") == "" {
		return false
	}
	if req.Header.Get("Sec-WebSocket-Version") != "13" {
		return false
	}
	return true
}

func isHTTP11OrHigher(version string) bool {
	switch version {
	case "HTTP/1.1", "HTTP/2", "HTTP/2.0", "HTTP/3", "HTTP/3.0":
		return true
	default:
		return false
	}
}

// ComputeAcceptKey derives Sec-WebSocket-Accept from the client's
// Sec-WebSocket-Key per RFC 6455 Section 1.3:
// base64(SHA-1(trim(key) + GUID)).
func ComputeAcceptKey(key string) string {
	//nolint:gosec // SHA-1 required by RFC 6455, not a cryptographic use
	h := sha1.New()
	h.Write([]byte(strings.TrimSpace(key)))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NegotiateSubprotocol selects the first of the client's requested
// subprotocols that also appears in serverProtos, returning "" if none
// match or serverProtos is empty. This is passthrough negotiation only —
// full extension negotiation remains out of scope.
func NegotiateSubprotocol(req *httpreq.Request, serverProtos []string) string {
	if len(serverProtos) == 0 {
		return ""
	}

	for _, want := range strings.Split(req.Header.Get("Sec-WebSocket-Protocol"), ",") {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, have := range serverProtos {
			if want == have {
				return want
			}
		}
	}

	return ""
}

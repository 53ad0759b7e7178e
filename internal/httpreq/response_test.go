package httpreq

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteResponse_StatusLineAndHeaders(t *testing.T) {
	var buf bytes.Buffer
	err := WriteResponse(&buf, &Response{
		StatusCode:   200,
		StatusReason: "OK",
		ContentType:  "text/plain",
		Body:         []byte("hi"),
	}, false)
	if err != nil {
		t.Fatalf("WriteResponse failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.0 200 OK\r\n") {
		t.Errorf("unexpected status line in %q", out)
	}
	if !strings.Contains(out, "Connection: close\r\n") {
		t.Errorf("missing Connection: close in %q", out)
	}
	if !strings.Contains(out, "Content-Length: 2\r\n") {
		t.Errorf("missing Content-Length in %q", out)
	}
	if !strings.HasSuffix(out, "hi") {
		t.Errorf("missing body in %q", out)
	}
}

func TestWriteResponse_HeadSuppressesBody(t *testing.T) {
	var buf bytes.Buffer
	err := WriteResponse(&buf, &Response{
		StatusCode:   200,
		StatusReason: "OK",
		Body:         []byte("hidden"),
	}, true)
	if err != nil {
		t.Fatalf("WriteResponse failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("HEAD response must not include body bytes: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 6\r\n") {
		t.Errorf("HEAD response must keep Content-Length: %q", out)
	}
}

func TestWriteUpgradeResponse(t *testing.T) {
	var buf bytes.Buffer
	err := WriteUpgradeResponse(&buf, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", nil)
	if err != nil {
		t.Fatalf("WriteUpgradeResponse failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Errorf("unexpected status line in %q", out)
	}
	if !strings.Contains(out, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n") {
		t.Errorf("missing accept key in %q", out)
	}
	if strings.Contains(out, "Connection: close") {
		t.Errorf("upgrade response must not declare Connection: close: %q", out)
	}
}

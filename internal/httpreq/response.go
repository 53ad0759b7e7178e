package httpreq

import (
	"fmt"
	"io"
	"time"
)

// ServerBanner is the value sent in the Server header of every response.
const ServerBanner = "gowsd"

// HeaderField is one (name, value) pair written in insertion order, used
// for a Response's ExtraHeaders.
type HeaderField struct {
	Name  string
	Value string
}

// Response is produced once by a handler and written once by the worker
type Response struct {
	StatusCode   int
	StatusReason string
	ContentType  string
	ExtraHeaders []HeaderField
	Body         []byte
}

// WriteResponse serializes resp as an HTTP/1.0 response with Connection:
// close. When head is true the body bytes are suppressed
// but Content-Length still reflects the full body length.
func WriteResponse(w io.Writer, resp *Response, head bool) error {
	return writeCommon(w, "HTTP/1.0", resp.StatusCode, resp.StatusReason, resp, head, true)
}

// WriteUpgradeResponse serializes the 101 Switching Protocols response for
// a successful WebSocket handshake.
func WriteUpgradeResponse(w io.Writer, acceptKey string, extra []HeaderField) error {
	resp := &Response{
		StatusCode:   101,
		StatusReason: "Switching Protocols",
		ExtraHeaders: append([]HeaderField{
			{Name: "Upgrade", Value: "websocket"},
			{Name: "Connection", Value: "Upgrade"},
			{Name: "Sec-WebSocket-Accept", Value: acceptKey},
		}, extra...),
	}
	return writeCommon(w, "HTTP/1.1", resp.StatusCode, resp.StatusReason, resp, false, false)
}

// WriteBadRequest writes a 400 response with a short plain-text body
// for a request that failed to parse.
func WriteBadRequest(w io.Writer, reason string) error {
	return WriteResponse(w, &Response{
		StatusCode:   400,
		StatusReason: "Bad Request",
		ContentType:  "text/plain",
		Body:         []byte(reason),
	}, false)
}

// WriteInternalError writes a 500 response carrying the handler's error
// text.
func WriteInternalError(w io.Writer, reason string) error {
	return WriteResponse(w, &Response{
		StatusCode:   500,
		StatusReason: "Internal Server Error",
		ContentType:  "text/plain",
		Body:         []byte(reason),
	}, false)
}

// WriteRequestEntityTooLarge writes a 413 response for an oversize
// request body.
func WriteRequestEntityTooLarge(w io.Writer) error {
	return WriteResponse(w, &Response{
		StatusCode:   413,
		StatusReason: "Request Entity Too Large",
		ContentType:  "text/plain",
		Body:         []byte("request body too large"),
	}, false)
}

func writeCommon(w io.Writer, httpVersion string, code int, reason string, resp *Response, head, connClose bool) error {
	if code == 0 {
		code = 200
	}
	if reason == "" {
		reason = "OK"
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	var headBuf []byte
	headBuf = append(headBuf, fmt.Sprintf("%s %d %s\r\n", httpVersion, code, reason)...)
	headBuf = append(headBuf, fmt.Sprintf("Server: %s\r\n", ServerBanner)...)
	headBuf = append(headBuf, fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n", contentType)...)
	headBuf = append(headBuf, fmt.Sprintf("Content-Length: %d\r\n", len(resp.Body))...)
	headBuf = append(headBuf, fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))...)
	if connClose {
		headBuf = append(headBuf, "Connection: close\r\n"...)
	}
	for _, h := range resp.ExtraHeaders {
		headBuf = append(headBuf, fmt.Sprintf("%s: %s\r\n", h.Name, h.Value)...)
	}
	headBuf = append(headBuf, "\r\n"...)

	if _, err := w.Write(headBuf); err != nil {
		return err
	}

	if head || len(resp.Body) == 0 {
		return nil
	}

	_, err := w.Write(resp.Body)
	return err
}

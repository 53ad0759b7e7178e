// Package worker runs the per-connection state machine: parse one HTTP/1.x
// request, decide whether it is a WebSocket upgrade, and either hand the
// connection to a WebSocketHandler or answer it as a plain HTTP request.
package worker

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/gowsd/server/internal/httpreq"
	"github.com/gowsd/server/internal/linereader"
	"github.com/gowsd/server/internal/wsmetrics"
	"github.com/gowsd/server/internal/wsproto"
	"github.com/gowsd/server/wsconn"
)

// HTTPHandler answers an ordinary (non-upgrade) HTTP request.
type HTTPHandler func(req *httpreq.Request) *httpreq.Response

// WebSocketHandler owns an upgraded connection until it returns. The
// worker closes the underlying stream once the handler returns, whether or
// not the handler itself called Conn.Close.
type WebSocketHandler func(ctx context.Context, req *httpreq.Request, conn *wsconn.Conn)

// WSSelector picks the WebSocketHandler for an upgrade request's path. A
// false second return means "no handler for this path"; the worker falls
// back to the ordinary HTTP path for that request, which almost always
// ends up answering 404 via HTTPHandler.
type WSSelector func(path string) (WebSocketHandler, bool)

// Options bundles the tunables and callbacks a worker needs per connection.
// It is built once by the server and reused across every accepted socket.
type Options struct {
	HTTPReadTimeout      time.Duration
	MaxRequestBodyBytes  int
	MaxFramePayloadBytes int
	SocketLingerSeconds  int
	CheckOrigin          func(origin, host string) bool
	Subprotocols         []string
	StrictClientMasking  bool
	HTTPHandler          HTTPHandler
	WSSelector           WSSelector
	Metrics              *wsmetrics.Registry
	Log                  zerolog.Logger
}

// Handle runs the full lifecycle of one accepted connection: read a single
// HTTP request off the wire, route it, then return once the connection
// (HTTP or WebSocket) is done. Handle always closes conn before returning.
func Handle(ctx context.Context, conn net.Conn, opts Options) {
	defer conn.Close()

	log := opts.Log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	if opts.HTTPReadTimeout > 0 {
		deadline := time.Now().Add(opts.HTTPReadTimeout)
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	lr := linereader.New(conn)
	req, err := httpreq.ParseRequest(ctx, lr, opts.MaxRequestBodyBytes)
	if err != nil {
		handleParseError(conn, err, log)
		return
	}

	if wsproto.IsUpgrade(req) && originAllowed(opts.CheckOrigin, req) {
		if handle, ok := selectHandler(opts.WSSelector, req.Path); ok {
			handleUpgrade(ctx, conn, req, handle, opts, log)
			return
		}
	}

	handleHTTP(conn, req, opts, log)
}

func selectHandler(sel WSSelector, path string) (WebSocketHandler, bool) {
	if sel == nil {
		return nil, false
	}
	return sel(path)
}

func originAllowed(check func(origin, host string) bool, req *httpreq.Request) bool {
	if check == nil {
		return true
	}
	return check(req.Header.Get("Origin"), req.Header.Get("Host"))
}

func handleParseError(conn net.Conn, err error, log zerolog.Logger) {
	log.Debug().Err(err).Msg("request parse failed")
	if errors.Is(err, httpreq.ErrBodyTooLarge) {
		_ = httpreq.WriteRequestEntityTooLarge(conn)
		return
	}
	_ = httpreq.WriteBadRequest(conn, "malformed request")
}

func handleHTTP(conn net.Conn, req *httpreq.Request, opts Options, log zerolog.Logger) {
	if opts.HTTPHandler == nil {
		_ = httpreq.WriteBadRequest(conn, "no handler configured")
		return
	}

	resp := invokeHTTPHandler(opts.HTTPHandler, req, log)
	if opts.Metrics != nil {
		opts.Metrics.ObserveHTTPStatus(resp.StatusCode)
	}
	if err := httpreq.WriteResponse(conn, resp, req.IsHead()); err != nil {
		log.Debug().Err(err).Msg("failed writing http response")
	}
}

func invokeHTTPHandler(h HTTPHandler, req *httpreq.Request, log zerolog.Logger) (resp *httpreq.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("http handler panicked")
			resp = &httpreq.Response{StatusCode: 500, StatusReason: "Internal Server Error", Body: []byte("internal error")}
		}
	}()
	resp = h(req)
	if resp == nil {
		resp = &httpreq.Response{StatusCode: 500, StatusReason: "Internal Server Error", Body: []byte("handler returned no response")}
	}
	return resp
}

func handleUpgrade(ctx context.Context, conn net.Conn, req *httpreq.Request, handle WebSocketHandler, opts Options, log zerolog.Logger) {
	key := req.Header.Get("Sec-WebSocket-Key")
	acceptKey := wsproto.ComputeAcceptKey(key)
	proto := wsproto.NegotiateSubprotocol(req, opts.Subprotocols)

	var extra []httpreq.HeaderField
	if proto != "" {
		extra = append(extra, httpreq.HeaderField{Name: "Sec-WebSocket-Protocol", Value: proto})
	}

	if err := httpreq.WriteUpgradeResponse(conn, acceptKey, extra); err != nil {
		log.Debug().Err(err).Msg("failed writing upgrade response")
		return
	}

	// The HTTP phase's deadlines no longer apply; wsproto.Conn pushes its
	// own per-operation deadlines derived from each call's context.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	if opts.SocketLingerSeconds > 0 {
		wsproto.SetLinger(conn, opts.SocketLingerSeconds)
	}

	wsc := wsproto.NewConn(conn, 0, 0, opts.MaxFramePayloadBytes)
	if opts.Metrics != nil {
		opts.Metrics.ConnectionsAccepted.Inc()
		wsc.SetMetrics(opts.Metrics)
	}
	wsc.SetStrictMasking(opts.StrictClientMasking)
	handle(ctx, req, wsconn.New(wsc))

	// Best-effort graceful half-close: the handler may have returned
	// without explicitly closing, e.g. after its own I/O error.
	_ = wsc.Close(ctx, wsconn.CloseNormalClosure, "")
}

// Package gowsd is an embeddable HTTP/1.x server whose core is a
// hand-rolled RFC 6455 WebSocket transport engine: a raw request parser and
// frame codec running directly over a TCP connection, with no net/http in
// the hot path.
package gowsd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gowsd/server/internal/httpreq"
	"github.com/gowsd/server/internal/worker"
	"github.com/gowsd/server/internal/wsmetrics"
	"github.com/gowsd/server/wsconn"
)

// HTTPHandler answers an ordinary (non-upgrade) HTTP request.
type HTTPHandler = worker.HTTPHandler

// WebSocketHandler owns an upgraded connection until it returns.
type WebSocketHandler = worker.WebSocketHandler

// WSHandlerSelector picks the WebSocketHandler for an upgrade request's
// path, or reports false to fall through to HTTPHandler.
type WSHandlerSelector = worker.WSSelector

// Request and Response are re-exported so embedders never need to import
// internal/httpreq directly.
type Request = httpreq.Request
type Response = httpreq.Response
type HeaderField = httpreq.HeaderField

// Conn is the public WebSocket connection handle passed to
// WebSocketHandlers.
type Conn = wsconn.Conn

// MessageType and Message are re-exported from wsconn for the same reason.
type MessageType = wsconn.MessageType
type Message = wsconn.Message

const (
	TextMessage   = wsconn.TextMessage
	BinaryMessage = wsconn.BinaryMessage
	CloseMessage  = wsconn.CloseMessage
)

// CloseCode is a WebSocket close status code (RFC 6455 Section 7.4).
type CloseCode = wsconn.CloseCode

const (
	CloseNormalClosure           = wsconn.CloseNormalClosure
	CloseGoingAway               = wsconn.CloseGoingAway
	CloseProtocolError           = wsconn.CloseProtocolError
	CloseUnsupportedData         = wsconn.CloseUnsupportedData
	CloseNoStatusReceived        = wsconn.CloseNoStatusReceived
	CloseAbnormalClosure         = wsconn.CloseAbnormalClosure
	CloseInvalidFramePayloadData = wsconn.CloseInvalidFramePayloadData
	ClosePolicyViolation         = wsconn.ClosePolicyViolation
	CloseMessageTooBig           = wsconn.CloseMessageTooBig
	CloseMandatoryExtension      = wsconn.CloseMandatoryExtension
	CloseInternalServerErr       = wsconn.CloseInternalServerErr
)

// Server listens for TCP connections and dispatches each one to a
// per-connection worker. Zero value is not usable; construct via Start.
type Server struct {
	listener net.Listener
	log      zerolog.Logger
	metrics  *wsmetrics.Registry

	opts worker.Options

	wg       sync.WaitGroup
	closing  chan struct{}
	closeOne sync.Once
}

// Start binds a listener per cfg and begins accepting connections in a
// background goroutine. httpHandler answers plain HTTP requests; wsSelector
// routes upgrade requests by path to a WebSocketHandler. Either may be nil
// (a nil httpHandler answers 400 to all HTTP traffic; a nil wsSelector
// refuses every upgrade, falling through to httpHandler instead).
func Start(cfg Config, httpHandler HTTPHandler, wsSelector WSHandlerSelector) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("gowsd: listen %s: %w", addr, err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	metrics := wsmetrics.NewRegistry()

	s := &Server{
		listener: ln,
		log:      log,
		metrics:  metrics,
		closing:  make(chan struct{}),
		opts: worker.Options{
			HTTPReadTimeout:      cfg.HTTPReadTimeout,
			MaxRequestBodyBytes:  cfg.MaxRequestBodyBytes,
			MaxFramePayloadBytes: cfg.MaxFramePayloadBytes,
			SocketLingerSeconds:  cfg.SocketLingerSeconds,
			CheckOrigin:          cfg.CheckOrigin,
			Subprotocols:         cfg.Subprotocols,
			StrictClientMasking:  cfg.StrictClientMasking,
			HTTPHandler:          httpHandler,
			WSSelector:           wsSelector,
			Metrics:              metrics,
			Log:                  log,
		},
	}

	s.wg.Add(1)
	go s.acceptLoop()

	log.Info().Str("addr", ln.Addr().String()).Msg("gowsd server listening")
	return s, nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}
			s.log.Error().Err(err).Msg("accept failed")
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			worker.Handle(context.Background(), conn, s.opts)
		}()
	}
}

// Stop closes the listener and waits (up to ctx's deadline) for in-flight
// connections to finish. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.closeOne.Do(func() {
		close(s.closing)
		_ = s.listener.Close()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Port returns the bound TCP port, useful when Config.Port was 0.
func (s *Server) Port() int {
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}

// Metrics returns the Prometheus handler serving this server's counters,
// suitable for mounting at /metrics on a separate admin listener.
func (s *Server) Metrics() http.Handler {
	return s.metrics.Handler()
}

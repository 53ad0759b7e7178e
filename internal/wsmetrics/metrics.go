// Package wsmetrics exposes the server's Prometheus counters. A Registry is
// created once per Server and passed down to each worker.Options so every
// accepted connection reports into the same collectors.
package wsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// opcodeLabel mirrors the wsproto opcode constants without importing that
// package, keeping wsmetrics dependency-free from the transport engine.
func opcodeLabel(opcode byte) string {
	switch opcode {
	case 0x0:
		return "continuation"
	case 0x1:
		return "text"
	case 0x2:
		return "binary"
	case 0x8:
		return "close"
	case 0x9:
		return "ping"
	case 0xA:
		return "pong"
	default:
		return "unknown"
	}
}

// Registry holds every counter/gauge the server reports. It satisfies
// wsproto.Metrics (FrameRead/FrameWritten/ProtocolError) so a *Registry can
// be handed straight to wsproto.Conn.SetMetrics.
type Registry struct {
	reg *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	FramesRead          *prometheus.CounterVec
	FramesWritten       *prometheus.CounterVec
	ProtocolErrors      prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
}

// NewRegistry builds and registers a fresh set of collectors. Each Server
// owns its own Registry rather than using the global default, so multiple
// servers in one process never collide on metric names.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gowsd_connections_accepted_total",
			Help: "WebSocket connections that completed the upgrade handshake.",
		}),
		FramesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gowsd_frames_read_total",
			Help: "WebSocket frames read from clients, by opcode.",
		}, []string{"opcode"}),
		FramesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gowsd_frames_written_total",
			Help: "WebSocket frames written to clients, by opcode.",
		}, []string{"opcode"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gowsd_protocol_errors_total",
			Help: "Frames rejected by the WebSocket codec.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gowsd_http_requests_total",
			Help: "Non-upgrade HTTP requests served, by status class.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.ConnectionsAccepted,
		r.FramesRead,
		r.FramesWritten,
		r.ProtocolErrors,
		r.HTTPRequestsTotal,
	)
	return r
}

// FrameRead implements wsproto.Metrics.
func (r *Registry) FrameRead(opcode byte) {
	r.FramesRead.WithLabelValues(opcodeLabel(opcode)).Inc()
}

// FrameWritten implements wsproto.Metrics.
func (r *Registry) FrameWritten(opcode byte) {
	r.FramesWritten.WithLabelValues(opcodeLabel(opcode)).Inc()
}

// ProtocolError implements wsproto.Metrics.
func (r *Registry) ProtocolError() {
	r.ProtocolErrors.Inc()
}

// ObserveHTTPStatus records a completed non-upgrade HTTP response.
func (r *Registry) ObserveHTTPStatus(status int) {
	r.HTTPRequestsTotal.WithLabelValues(statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format, suitable for mounting at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

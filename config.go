package gowsd

import "time"

// Config enumerates the tunables a Server accepts at startup.
type Config struct {
	// BindAddress is the interface to listen on. Empty means all
	// interfaces.
	BindAddress string

	// Port to listen on. 0 selects an ephemeral port, reported via
	// Server.Port() after Start.
	Port int

	// HTTPReadTimeout bounds the HTTP phase's read/write deadlines. Cleared
	// once a connection upgrades to WebSocket.
	HTTPReadTimeout time.Duration

	// MaxFramePayloadBytes bounds a single WebSocket frame's payload.
	MaxFramePayloadBytes int

	// MaxRequestBodyBytes bounds an HTTP request's Content-Length.
	MaxRequestBodyBytes int

	// SocketLingerSeconds configures SO_LINGER on each accepted TCP
	// connection so pending writes flush before close.
	SocketLingerSeconds int

	// CheckOrigin, if set, vets the Origin header during the WebSocket
	// handshake. nil allows all origins.
	CheckOrigin func(origin, host string) bool

	// Subprotocols lists the subprotocols this server advertises during
	// passthrough negotiation (first client-offered match wins).
	Subprotocols []string

	// StrictClientMasking rejects unmasked client frames with a protocol
	// error instead of the RFC-violating-but-interoperable default of
	// accepting them.
	StrictClientMasking bool
}

// DefaultConfig returns the baseline configuration a Server starts with
// absent any Option overrides.
func DefaultConfig() Config {
	return Config{
		BindAddress:          "",
		Port:                 0,
		HTTPReadTimeout:      2 * time.Second,
		MaxFramePayloadBytes: 16 * 1024 * 1024,
		MaxRequestBodyBytes:  8 * 1024 * 1024,
		SocketLingerSeconds:  5,
	}
}

// Option mutates a Config. Start takes no options itself; apply them to a
// Config (opt(&cfg)) before passing it to Start.
type Option func(*Config)

// WithBindAddress overrides the listen interface.
func WithBindAddress(addr string) Option {
	return func(c *Config) { c.BindAddress = addr }
}

// WithPort overrides the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

// WithHTTPReadTimeout overrides the HTTP-phase read/write deadline.
func WithHTTPReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.HTTPReadTimeout = d }
}

// WithMaxFramePayloadBytes overrides the per-frame payload cap.
func WithMaxFramePayloadBytes(n int) Option {
	return func(c *Config) { c.MaxFramePayloadBytes = n }
}

// WithMaxRequestBodyBytes overrides the request body cap.
func WithMaxRequestBodyBytes(n int) Option {
	return func(c *Config) { c.MaxRequestBodyBytes = n }
}

// WithSocketLinger overrides the SO_LINGER duration applied to accepted
// connections.
func WithSocketLinger(seconds int) Option {
	return func(c *Config) { c.SocketLingerSeconds = seconds }
}

// WithCheckOrigin installs an Origin-header validator for the WebSocket
// handshake.
func WithCheckOrigin(fn func(origin, host string) bool) Option {
	return func(c *Config) { c.CheckOrigin = fn }
}

// WithSubprotocols installs the list of subprotocols this server
// advertises during passthrough negotiation.
func WithSubprotocols(protos ...string) Option {
	return func(c *Config) { c.Subprotocols = protos }
}

// WithStrictClientMasking enables rejection of unmasked client frames.
func WithStrictClientMasking(strict bool) Option {
	return func(c *Config) { c.StrictClientMasking = strict }
}

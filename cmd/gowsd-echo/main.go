// Command gowsd-echo runs a minimal gowsd server: a plain-text "ok" HTTP
// root and a WebSocket echo handler at /ws. It exists to exercise the
// library end-to-end, not as a feature of the library itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/gowsd/server"
	"github.com/gowsd/server/examples/echo"
)

func main() {
	var (
		bind            = pflag.String("bind", "", "interface to listen on")
		port            = pflag.Int("port", 8080, "TCP port to listen on")
		httpTimeoutMS   = pflag.Int64("http-read-timeout-ms", 2000, "HTTP phase read/write deadline in milliseconds")
		maxFrameBytes   = pflag.Int("max-frame-payload-bytes", 16*1024*1024, "maximum WebSocket frame payload size")
		maxBodyBytes    = pflag.Int("max-request-body-bytes", 8*1024*1024, "maximum HTTP request body size")
		socketLinger    = pflag.Int("socket-linger-seconds", 5, "SO_LINGER seconds applied to accepted sockets")
		allowAllOrigins = pflag.Bool("allow-all-origins", true, "skip the Origin header check during handshake")
	)
	pflag.Parse()

	cfg := gowsd.DefaultConfig()
	cfg.BindAddress = *bind
	cfg.Port = *port
	cfg.HTTPReadTimeout = time.Duration(*httpTimeoutMS) * time.Millisecond
	cfg.MaxFramePayloadBytes = *maxFrameBytes
	cfg.MaxRequestBodyBytes = *maxBodyBytes
	cfg.SocketLingerSeconds = *socketLinger
	if !*allowAllOrigins {
		cfg.CheckOrigin = func(origin, host string) bool { return origin == "" || origin == "http://"+host }
	}

	httpHandler := func(req *gowsd.Request) *gowsd.Response {
		if req.Path != "/" {
			return &gowsd.Response{StatusCode: 404, StatusReason: "Not Found", Body: []byte("not found")}
		}
		return &gowsd.Response{StatusCode: 200, StatusReason: "OK", ContentType: "text/plain", Body: []byte("ok")}
	}

	selector := func(path string) (gowsd.WebSocketHandler, bool) {
		if path == "/ws" {
			return echo.Handler, true
		}
		return nil, false
	}

	srv, err := gowsd.Start(cfg, httpHandler, selector)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gowsd-echo:", err)
		os.Exit(1)
	}
	fmt.Printf("gowsd-echo listening on port %d\n", srv.Port())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gowsd-echo: shutdown:", err)
		os.Exit(1)
	}
}

package main

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oszuidwest/zwfm-soundlevel/internal/metrics"
	"github.com/oszuidwest/zwfm-soundlevel/internal/server"
)

const (
	readHeaderTimeout = 10 * time.Second
	// wsWriteTimeout bounds a single WebSocket write to a slow client.
	wsWriteTimeout = 10 * time.Second
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Sound Level Exporter</title></head>
<body>
<h1>Sound Level Exporter</h1>
<p>Device: {{.Device}}</p>
<p><a href="/metrics">Metrics</a></p>
<p>Version {{.Version}}</p>
</body>
</html>
`))

type indexData struct {
	Device  string
	Version string
}

// Server is the HTTP server exposing metrics and the live levels feed.
type Server struct {
	port    int
	device  string
	metrics *metrics.Metrics
	hub     *server.Hub
	devices DeviceLister
}

// NewServer returns a Server for the given registry and levels hub.
func NewServer(port int, device string, m *metrics.Metrics, hub *server.Hub) *Server {
	return &Server{
		port:    port,
		device:  device,
		metrics: m,
		hub:     hub,
	}
}

// WithDevices enables /api/devices backed by l.
func (s *Server) WithDevices(l DeviceLister) *Server {
	s.devices = l
	return s
}

// SetupRoutes configures and returns the HTTP handler with all routes.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/levels", s.handleAPILevels)
	mux.HandleFunc("/api/devices", s.handleAPIDevices)
	mux.HandleFunc("/", s.handleIndex)
	return securityHeaders(mux)
}

// securityHeaders wraps an http.Handler with security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, indexData{Device: s.device, Version: Version}); err != nil {
		slog.Error("failed to render index page", "error", err)
	}
}

// handleWebSocket streams every closed sampling window to the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	levels, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go s.runWebSocketReader(conn, done)

	s.runWebSocketWriter(conn, levels, done)
}

// runWebSocketReader drains client messages so close frames are processed.
func (s *Server) runWebSocketReader(conn server.WebSocketConn, done chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// runWebSocketWriter is the sole writer to the connection.
func (s *Server) runWebSocketWriter(conn *websocket.Conn, levels <-chan server.LevelsMessage, done <-chan struct{}) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-levels:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// Start binds the listen port and serves in the background.
// Bind failures are returned instead of being logged from the serving goroutine.
func (s *Server) Start() (*http.Server, error) {
	addr := fmt.Sprintf(":%d", s.port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv, nil
}

// Package web serves a read-only status surface for a running pipeline:
// health, stats, effective configuration and a JPEG preview, over HTTP
// and websockets. Nothing here can change the pipeline.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-holocam/pkg/hub"
	"github.com/teslashibe/go-holocam/pkg/pipeline"
)

// Source is what the server reports on. *pipeline.Driver implements it.
type Source interface {
	Stats() pipeline.Stats
	Config() pipeline.Config
	State() pipeline.State
}

var _ pipeline.Observer = (*Server)(nil)

// Server is the status server. It implements pipeline.Observer.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	mu     sync.RWMutex
	source Source

	preview atomic.Pointer[[]byte]

	statsHub   *hub.Hub
	previewHub *hub.Hub
}

// NewServer creates a status server listening on addr (host:port).
func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:       addr,
		logger:     logger.With("component", "web"),
		statsHub:   hub.New("stats", logger),
		previewHub: hub.New("preview", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "holocam",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	api.Get("/preview.jpg", s.handlePreview)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/stats", websocket.New(func(c *websocket.Conn) { hub.Serve(s.statsHub, c) }))
	app.Get("/ws/preview", websocket.New(func(c *websocket.Conn) { hub.Serve(s.previewHub, c) }))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetSource attaches the pipeline to report on.
func (s *Server) SetSource(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *Server) getSource() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// OnStats broadcasts a stats snapshot to /ws/stats clients.
func (s *Server) OnStats(st pipeline.Stats) {
	if err := s.statsHub.BroadcastJSON(st); err != nil {
		s.logger.Debug("stats broadcast failed", "error", err)
	}
}

// OnPreview keeps jpeg for /api/preview.jpg and sends it to /ws/preview
// clients.
func (s *Server) OnPreview(jpeg []byte) {
	s.preview.Store(&jpeg)
	s.previewHub.BroadcastBinary(jpeg)
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statsHub.Run(ctx)
	go s.previewHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listener(ln)
	}()
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(2 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Package relayhttp exposes the relay hub over HTTP: two JSON status
// endpoints and the websocket the clients play through.
package relayhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/relay"
	"go.uber.org/zap"
)

type Info struct {
	Version   string
	StartedAt time.Time
}

type server struct {
	hub  *relay.Hub
	info Info
	now  func() time.Time
}

func SetupRoutes(h *relay.Hub, info Info) http.Handler {
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	s := &server{hub: h, info: info, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/", s.status)
	r.Get("/health", s.health)
	r.Get("/ws", s.serveWS)
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

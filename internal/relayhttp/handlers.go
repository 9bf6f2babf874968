package relayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/relayproto"
	"go.uber.org/zap"
)

const statsTimeout = 2 * time.Second

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()
	st, err := s.hub.Stats(ctx)
	if err != nil {
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}
	now := s.now()
	writeJSON(w, relayproto.Status{
		Status:           relayproto.StatusRunning,
		ActiveGames:      st.ActiveGames,
		ConnectedPlayers: st.ConnectedPlayers,
		Uptime:           now.Sub(s.info.StartedAt).Seconds(),
		Timestamp:        now.UTC().Format(time.RFC3339),
		Version:          s.info.Version,
	})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()
	st, err := s.hub.Stats(ctx)
	if err != nil {
		http.Error(w, "relay unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, relayproto.Health{
		Status:           relayproto.StatusHealthy,
		ActiveGames:      st.ActiveGames,
		ConnectedPlayers: st.ConnectedPlayers,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("http_encode_error", zap.Error(err))
	}
}

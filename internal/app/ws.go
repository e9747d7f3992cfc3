package app

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// handleWS upgrades GET /ws?token=... to a WebSocket connection that
// receives the viewer's realtime events. Browsers cannot set an
// Authorization header on WebSocket requests, so the access token is
// passed as a query parameter.
func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	hub := s.service.Hub()
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Realtime events are not available", nil)
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if s.corsOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == s.corsOrigin
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	s.service.NewRealtimeClient(conn, session.UserID)
}

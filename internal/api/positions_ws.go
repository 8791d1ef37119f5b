package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dispatchd/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// PositionsWSHandler handles /v1/positions/ws: the driver app keeps one
// socket open and streams position reports as JSON messages. Each accepted
// report is acked so the app can throttle on backpressure.
func (s *Server) PositionsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		var p model.Position
		if err := conn.ReadJSON(&p); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if err := s.ingestPosition(r, p); err != nil {
			_ = conn.WriteJSON(map[string]any{"ok": false, "error": err.Error()})
			continue
		}
		_ = conn.WriteJSON(map[string]any{"ok": true, "ts": p.TS})
	}
}

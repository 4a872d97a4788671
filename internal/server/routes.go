package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/beamdrop/beamdrop/internal/rendezvous"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The signaling contract names no origin policy; any browser or CLI
	// peer that knows the room code is accepted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request to a websocket and wires it into hub.
func ServeWs(hub *rendezvous.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "err", err)
			return
		}

		client := rendezvous.NewClient(hub, conn)
		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

// HealthCheck reports liveness for deployment probes; it is not part of
// the signaling wire contract.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

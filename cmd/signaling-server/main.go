// Command signaling-server runs the rendezvous service (C1): a bare
// WebSocket relay that pairs two clients by room code and forwards their
// SDP/ICE messages. It never sees file contents.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/beamdrop/beamdrop/internal/logging"
	"github.com/beamdrop/beamdrop/internal/rendezvous"
	"github.com/beamdrop/beamdrop/internal/server"
)

func main() {
	logging.Init()

	hub := rendezvous.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthCheck)
	mux.HandleFunc("/ws", server.ServeWs(hub))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	slog.Info("signaling server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("signaling server exited", "err", err)
		os.Exit(1)
	}
}

package app

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// ServeHTTP implements http.Handler interface.
//
// Websocket upgrades start a session, requests for the NIP-11 document get
// it, and everything else goes to the instance's mux, which serves /metrics.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-rl.Ctx.Done():
		log.W.Ln("shutting down")
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}
	switch {
	case strings.EqualFold(r.Header.Get("Upgrade"), "websocket"):
		rl.HandleWebsocket(w, r)
	case r.Header.Get("Accept") == "application/nostr+json":
		cors.AllowAll().Handler(http.HandlerFunc(rl.HandleNIP11)).
			ServeHTTP(w, r)
	default:
		rl.serveMux.ServeHTTP(w, r)
	}
}

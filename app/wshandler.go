package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/fasthttp/websocket"
)

// HandleWebsocket upgrades the request and starts the reader, writer and
// watcher goroutines of a new session. Whichever of them ends first tears the
// session down through kill.
func (rl *Relay) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	var err error
	var conn *websocket.Conn
	if conn, err = rl.upgrader.Upgrade(w, r, nil); chk.E(err) {
		log.E.F("failed to upgrade websocket: %v", err)
		return
	}
	s := NewSession(rl.Ctx, conn, r)
	rl.clients.Store(s.ID(), s)
	rl.Metrics.Sessions.Inc()
	ticker := time.NewTicker(rl.PingPeriod)
	log.D.Ln("inbound connection from", s.RealRemote(), "session", s.ID())
	var once sync.Once
	kill := func() {
		once.Do(func() {
			s.closed.Store(true)
			ticker.Stop()
			s.cancel()
			rl.clients.Delete(s.ID())
			n := rl.Registry.RemoveConnection(s.ID())
			chk.T(conn.Close())
			log.D.F("disconnected %s session %s, dropped %d subscriptions",
				s.RealRemote(), s.ID(), n)
		})
	}
	if rl.AuthOnConnect {
		s.Send(&envelopes.AuthChallenge{Challenge: s.Challenge()})
	}
	go rl.websocketWriter(s, kill)
	go rl.websocketReadMessages(readParams{s, kill})
	go rl.websocketWatcher(watcherParams{s, kill, ticker})
}

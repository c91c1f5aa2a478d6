package app

import (
	"strings"
	"time"

	"github.com/fasthttp/websocket"
)

type watcherParams struct {
	s    *Session
	kill func()
	t    *time.Ticker
}

// websocketWatcher pings the client every PingPeriod and ends the session
// when the relay or the session is done or a ping cannot be written.
func (rl *Relay) websocketWatcher(p watcherParams) {
	var err error
	defer p.kill()
	for {
		select {
		case <-rl.Ctx.Done():
			return
		case <-p.s.Ctx.Done():
			return
		case <-p.t.C:
			if err = p.s.Conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(rl.WriteWait)); err != nil {
				if !strings.HasSuffix(err.Error(),
					"use of closed network connection") {
					log.T.F("error writing ping: %v; closing websocket", err)
				}
				return
			}
		}
	}
}

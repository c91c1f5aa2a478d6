package app

import (
	"time"

	"github.com/fasthttp/websocket"
)

type readParams struct {
	s    *Session
	kill func()
}

func (rl *Relay) websocketReadMessages(p readParams) {
	defer p.kill()
	defer recoverSession(p.s, p.kill)
	conn := p.s.Conn
	conn.SetReadLimit(rl.MaxMessageSize)
	chk.E(conn.SetReadDeadline(time.Now().Add(rl.PongWait)))
	conn.SetPongHandler(func(string) (err error) {
		err = conn.SetReadDeadline(time.Now().Add(rl.PongWait))
		chk.E(err)
		return
	})
	for {
		var err error
		var typ int
		var message []byte
		typ, message, err = conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,    // 1000
				websocket.CloseGoingAway,        // 1001
				websocket.CloseNoStatusReceived, // 1005
				websocket.CloseAbnormalClosure,  // 1006
			) && !p.s.Closed() {
				log.E.F("unexpected close error from %s: %v",
					p.s.RealRemote(), err)
			}
			return
		}
		if typ == websocket.BinaryMessage {
			log.D.F("ignoring binary message of %d bytes from %s",
				len(message), p.s.RealRemote())
			continue
		}
		log.T.F("receiving message from %s: %s", p.s.RealRemote(), message)
		rl.HandleMessage(p.s, message)
	}
}

package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/cors"
	"golang.org/x/net/netutil"
)

// Listen binds the instance's port. Port 0 picks a free one; Addr holds the
// bound address afterwards.
func (rl *Relay) Listen(host string, port int) (ln net.Listener, err error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if ln, err = net.Listen("tcp", addr); chk.D(err) {
		return
	}
	if rl.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, rl.MaxConnections)
	}
	rl.Addr = ln.Addr().String()
	return
}

// Serve runs the http server on a listener from Listen until Shutdown.
func (rl *Relay) Serve(ln net.Listener) (err error) {
	rl.httpServer = &http.Server{
		Handler:           cors.Default().Handler(rl),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	close(rl.started)
	if err = rl.httpServer.Serve(ln); errors.Is(err, http.ErrServerClosed) {
		return nil
	} else if chk.E(err) {
		return
	}
	return
}

// Start creates an http server and starts listening on given host and port.
func (rl *Relay) Start(host string, port int) (err error) {
	var ln net.Listener
	if ln, err = rl.Listen(host, port); err != nil {
		return
	}
	return rl.Serve(ln)
}

// Shutdown stops accepting connections and sends a websocket close control
// message to all connected clients.
func (rl *Relay) Shutdown(c context.Context) {
	rl.Cancel()
	select {
	case <-rl.started:
		chk.E(rl.httpServer.Shutdown(c))
	default:
	}
	rl.clients.Range(func(id string, s *Session) bool {
		chk.T(s.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(time.Second)))
		chk.T(s.Conn.Close())
		rl.clients.Delete(id)
		return true
	})
}

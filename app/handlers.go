package app

import (
	"fmt"
	"runtime/debug"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/normalize"
)

// HandleMessage decodes one inbound frame and acts on it. A frame that does
// not decode gets a NOTICE and the connection carries on.
func (rl *Relay) HandleMessage(conn Conn, msg []byte) {
	env, err := envelopes.Decode(msg)
	if err != nil {
		log.D.F("%s: bad message: %v", conn.ID(), err)
		rl.Metrics.Notices.Inc()
		conn.Send(&envelopes.Notice{Message: "invalid: " + err.Error()})
		return
	}
	rl.Metrics.Messages.WithLabelValues(env.Label()).Inc()
	rl.HandleEnvelope(conn, env)
}

// HandleEnvelope runs one decoded client message against the store and
// registry, queueing every response on conn.
func (rl *Relay) HandleEnvelope(conn Conn, env envelopes.I) {
	switch env := env.(type) {
	case *envelopes.Req:
		rl.handleReq(conn, env)
	case *envelopes.Event:
		rl.handleEvent(conn, env.Event)
	case *envelopes.Close:
		rl.handleClose(conn, env)
	case *envelopes.AuthResponse:
		rl.handleAuth(conn, env)
	default:
		// relay-to-client messages decode only on the client side
		conn.Send(&envelopes.Notice{
			Message: fmt.Sprintf("invalid: unexpected %s message", env.Label()),
		})
	}
}

func (rl *Relay) handleReq(conn Conn, env *envelopes.Req) {
	l := NewListener(env.SubscriptionID, env.Filters, conn)
	rl.Registry.Set(conn.ID(), l)
	if conn.Closed() {
		// torn down while this message was in flight
		rl.Registry.RemoveConnection(conn.ID())
		return
	}
	evs, through := rl.Store.QueryWithSerial(l.Filters)
	log.D.F("%s: REQ %s %s -> %d events", conn.ID(), env.SubscriptionID,
		env.Filters, len(evs))
	for _, ev := range evs {
		conn.Send(&envelopes.Event{SubscriptionID: env.SubscriptionID,
			Event: ev})
	}
	conn.Send(&envelopes.EOSE{SubscriptionID: env.SubscriptionID})
	if n := l.Live(through); n > 0 {
		log.T.F("%s: %d events arrived during replay of %s", conn.ID(), n,
			env.SubscriptionID)
	}
}

func (rl *Relay) handleEvent(conn Conn, ev *event.T) {
	id := ""
	if ev != nil {
		id = ev.ID
	}
	if ok, reason := rl.ValidateEvent(ev); !ok {
		log.D.F("%s: rejected event %s: %s", conn.ID(), id, reason)
		rl.Metrics.Events.WithLabelValues("rejected").Inc()
		conn.Send(&envelopes.OK{EventID: id, OK: false, Reason: reason})
		return
	}
	serial := rl.Store.AddEvent(ev)
	stored := ev
	if s, ok := rl.Store.GetByID(ev.ID); ok {
		stored = s
	}
	n := rl.Registry.Broadcast(stored, serial)
	rl.Metrics.Events.WithLabelValues("accepted").Inc()
	rl.Metrics.Deliveries.Add(float64(n))
	log.D.F("%s: stored %s event %s from %s, delivered to %d",
		conn.ID(), ev.Kind, id, normalize.Npub(ev.PubKey), n)
	conn.Send(&envelopes.OK{EventID: id, OK: true})
}

func (rl *Relay) handleClose(conn Conn, env *envelopes.Close) {
	if rl.Registry.Remove(conn.ID(), env.SubscriptionID) {
		log.D.F("%s: closed %s", conn.ID(), env.SubscriptionID)
	}
}

// handleAuth acknowledges any AUTH event without checking it.
func (rl *Relay) handleAuth(conn Conn, env *envelopes.AuthResponse) {
	if s, ok := conn.(*Session); ok {
		s.SetAuthPubKey(normalize.PubKey(env.Event.PubKey))
	}
	conn.Send(&envelopes.OK{EventID: env.Event.ID, OK: true})
}

// recoverSession turns a panic in a session goroutine into a log line and a
// closed connection, leaving every other session running.
func recoverSession(conn Conn, kill func()) {
	if r := recover(); r != nil {
		log.E.F("%s: recovered from panic: %v\n%s", conn.ID(), r, debug.Stack())
		kill()
	}
}

package app

import (
	"sync"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/puzpuzpuz/xsync/v2"
)

// Conn is the side of a client connection the protocol handler and the
// registry need: somewhere to queue outbound messages in order.
type Conn interface {
	ID() string
	// Send queues a message for the client without blocking.
	Send(env envelopes.I)
	// Closed reports whether the connection has been torn down.
	Closed() bool
}

type pending struct {
	ev     *event.T
	serial eventstore.Serial
}

// Listener is one subscription of one connection.
//
// A new Listener starts out replaying: broadcasts that reach it while its
// REQ is still sending stored events are held back, and Live releases the
// ones the stored events did not already cover. This keeps every live event
// after EOSE and never sends the same event twice.
type Listener struct {
	ID      string
	Filters filters.T
	conn    Conn

	mx        sync.Mutex
	replaying bool
	through   eventstore.Serial
	backlog   []pending
	closed    bool
}

func NewListener(id string, f filters.T, conn Conn) *Listener {
	return &Listener{
		ID:        id,
		Filters:   f.Normalized(),
		conn:      conn,
		replaying: true,
	}
}

// Deliver sends the event to the client if it is newer than what the stored
// replay included, or holds it back while the replay is running.
func (l *Listener) Deliver(ev *event.T, serial eventstore.Serial) (sent bool) {
	l.mx.Lock()
	defer l.mx.Unlock()
	switch {
	case l.closed:
	case l.replaying:
		l.backlog = append(l.backlog, pending{ev, serial})
	case serial <= l.through:
	default:
		l.conn.Send(&envelopes.Event{SubscriptionID: l.ID, Event: ev})
		sent = true
	}
	return
}

// Live ends the replay. through is the serial the replay's query observed;
// held back events at or below it were part of the replay.
func (l *Listener) Live(through eventstore.Serial) (flushed int) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.replaying = false
	l.through = through
	if l.closed {
		l.backlog = nil
		return
	}
	for _, p := range l.backlog {
		if p.serial > through {
			l.conn.Send(&envelopes.Event{SubscriptionID: l.ID, Event: p.ev})
			flushed++
		}
	}
	l.backlog = nil
	return
}

// Close stops all further delivery.
func (l *Listener) Close() {
	l.mx.Lock()
	l.closed = true
	l.backlog = nil
	l.mx.Unlock()
}

func (l *Listener) IsClosed() bool {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.closed
}

type ListenerMap = *xsync.MapOf[string, *Listener]

// Registry holds the live subscriptions of one relay instance, keyed by
// connection and then by subscription id.
type Registry struct {
	listeners *xsync.MapOf[string, ListenerMap]
}

func NewRegistry() *Registry {
	return &Registry{listeners: xsync.NewMapOf[ListenerMap]()}
}

// Set adds a subscription, replacing and closing one with the same id on the
// same connection.
func (r *Registry) Set(connID string, l *Listener) {
	subs, _ := r.listeners.LoadOrCompute(connID, func() ListenerMap {
		return xsync.NewMapOf[*Listener]()
	})
	if prev, loaded := subs.LoadAndStore(l.ID, l); loaded && prev != l {
		prev.Close()
	}
}

// Get returns a connection's subscription by id.
func (r *Registry) Get(connID, subID string) (l *Listener, ok bool) {
	var subs ListenerMap
	if subs, ok = r.listeners.Load(connID); !ok {
		return
	}
	return subs.Load(subID)
}

// Remove removes a specific subscription id from listeners for a given
// connection. Removing one that does not exist is not an error.
func (r *Registry) Remove(connID, subID string) (removed bool) {
	if subs, ok := r.listeners.Load(connID); ok {
		var l *Listener
		if l, removed = subs.LoadAndDelete(subID); removed {
			l.Close()
		}
	}
	return
}

// RemoveConnection drops every subscription of a connection in one step and
// returns how many there were.
func (r *Registry) RemoveConnection(connID string) (n int) {
	subs, ok := r.listeners.LoadAndDelete(connID)
	if !ok {
		return
	}
	subs.Range(func(_ string, l *Listener) bool {
		l.Close()
		n++
		return true
	})
	return
}

// Broadcast offers the event to every subscription whose filters match it
// and returns how many took it.
func (r *Registry) Broadcast(ev *event.T, serial eventstore.Serial) (n int) {
	r.listeners.Range(func(_ string, subs ListenerMap) bool {
		subs.Range(func(_ string, l *Listener) bool {
			if l.Filters.Match(ev) && l.Deliver(ev, serial) {
				n++
			}
			return true
		})
		return true
	})
	return
}

// Size is the number of subscriptions across all connections.
func (r *Registry) Size() (n int) {
	r.listeners.Range(func(_ string, subs ListenerMap) bool {
		n += subs.Size()
		return true
	})
	return
}

// Connections is the number of connections with at least one entry.
func (r *Registry) Connections() int { return r.listeners.Size() }

// Filters returns the filters of all of a connection's subscriptions.
func (r *Registry) Filters(connID string) (res filters.T) {
	if subs, ok := r.listeners.Load(connID); ok {
		subs.Range(func(_ string, l *Listener) bool {
			res = append(res, l.Filters...)
			return true
		})
	}
	return
}

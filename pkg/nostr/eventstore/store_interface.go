// Package eventstore defines the event storage used by a relay instance.
package eventstore

import (
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
)

// Serial is the position of a write in a store's history. Every AddEvent
// gets a larger one than the write before it.
type Serial uint64

// I is the set of operations a relay performs on its events.
type I interface {
	// AddEvent stores an event under its id, normalizing the author, and
	// returns the serial of the write. An event already stored under the same
	// id is replaced.
	AddEvent(ev *event.T) Serial
	// Query returns every stored event matching any of the filters, newest
	// first, truncated to the limit of the first filter.
	Query(f filters.T) event.Ts
	// QueryWithSerial is Query that also returns the serial of the last write
	// the result reflects.
	QueryWithSerial(f filters.T) (evs event.Ts, last Serial)
	GetByID(id string) (ev *event.T, ok bool)
	// All returns every stored event in Query order.
	All() event.Ts
	Count() int
	// Clear drops every event. The serial keeps counting.
	Clear()
}

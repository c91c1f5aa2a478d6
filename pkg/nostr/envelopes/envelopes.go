// Package envelopes is the closed set of nostr wire messages the relay speaks,
// each a JSON array whose first element is its label.
package envelopes

import (
	"encoding/json"
	"os"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

const (
	LabelEvent  = "EVENT"
	LabelReq    = "REQ"
	LabelClose  = "CLOSE"
	LabelAuth   = "AUTH"
	LabelEOSE   = "EOSE"
	LabelOK     = "OK"
	LabelNotice = "NOTICE"
)

// I is a wire message. The unexported method closes the set to the types in
// this package so a type switch over them is exhaustive.
type I interface {
	Label() string
	json.Marshaler
	envelope()
}

var (
	_ I = (*Req)(nil)
	_ I = (*Event)(nil)
	_ I = (*Close)(nil)
	_ I = (*AuthResponse)(nil)
	_ I = (*AuthChallenge)(nil)
	_ I = (*EOSE)(nil)
	_ I = (*OK)(nil)
	_ I = (*Notice)(nil)
)

// Req asks for stored events matching Filters followed by live ones.
type Req struct {
	SubscriptionID string
	Filters        filters.T
}

// Event carries an event. SubscriptionID is empty when a client submits it
// and set when a relay delivers it for a subscription.
type Event struct {
	SubscriptionID string
	Event          *event.T
}

// Close ends a subscription.
type Close struct{ SubscriptionID string }

// AuthResponse is a client's signed reply to an AUTH challenge.
type AuthResponse struct{ Event *event.T }

// AuthChallenge is sent by a relay to ask a client to authenticate.
type AuthChallenge struct{ Challenge string }

// EOSE marks the end of stored events for a subscription.
type EOSE struct{ SubscriptionID string }

// OK reports the acceptance or rejection of a submitted event. Reason begins
// with a machine readable prefix such as "invalid:" when OK is false.
type OK struct {
	EventID string
	OK      bool
	Reason  string
}

// Notice is a human readable message from the relay.
type Notice struct{ Message string }

func (*Req) envelope()           {}
func (*Event) envelope()         {}
func (*Close) envelope()         {}
func (*AuthResponse) envelope()  {}
func (*AuthChallenge) envelope() {}
func (*EOSE) envelope()          {}
func (*OK) envelope()            {}
func (*Notice) envelope()        {}

func (*Req) Label() string           { return LabelReq }
func (*Event) Label() string         { return LabelEvent }
func (*Close) Label() string         { return LabelClose }
func (*AuthResponse) Label() string  { return LabelAuth }
func (*AuthChallenge) Label() string { return LabelAuth }
func (*EOSE) Label() string          { return LabelEOSE }
func (*OK) Label() string            { return LabelOK }
func (*Notice) Label() string        { return LabelNotice }

func (env *Req) MarshalJSON() ([]byte, error) {
	a := make([]any, 0, len(env.Filters)+2)
	a = append(a, LabelReq, env.SubscriptionID)
	for _, f := range env.Filters {
		a = append(a, f)
	}
	return json.Marshal(a)
}

func (env *Event) MarshalJSON() ([]byte, error) {
	if env.SubscriptionID == "" {
		return json.Marshal([]any{LabelEvent, env.Event})
	}
	return json.Marshal([]any{LabelEvent, env.SubscriptionID, env.Event})
}

func (env *Close) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{LabelClose, env.SubscriptionID})
}

func (env *AuthResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{LabelAuth, env.Event})
}

func (env *AuthChallenge) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{LabelAuth, env.Challenge})
}

func (env *EOSE) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{LabelEOSE, env.SubscriptionID})
}

func (env *OK) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{LabelOK, env.EventID, env.OK, env.Reason})
}

func (env *Notice) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{LabelNotice, env.Message})
}

// Bytes marshals an envelope, logging rather than returning the error since
// every type here marshals from plain values.
func Bytes(env I) (b []byte) {
	var err error
	if b, err = json.Marshal(env); chk.E(err) {
		return nil
	}
	return
}

package app

import (
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
)

// ValidateEvent checks a submitted event. It is valid when id, pubkey and sig
// are present, created_at is not more than MaxFutureSkew ahead of the relay
// clock and the signature verifies. reason is an OK message for the first
// check that failed.
func (rl *Relay) ValidateEvent(ev *event.T) (ok bool, reason string) {
	switch {
	case ev == nil:
		return false, "invalid: missing event"
	case ev.ID == "":
		return false, "invalid: missing id"
	case ev.PubKey == "":
		return false, "invalid: missing pubkey"
	case ev.Sig == "":
		return false, "invalid: missing signature"
	}
	if ev.CreatedAt > timestamp.FromTime(rl.Now().Add(MaxFutureSkew)) {
		return false, "invalid: created_at is too far in the future"
	}
	if ok, reason = rl.Verify(ev); !ok {
		if reason == "" {
			reason = "invalid: signature verification failed"
		}
		return
	}
	return true, ""
}

package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/tag"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/tags"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
	"github.com/minio/sha256-simd"
	"github.com/nbd-wtf/go-nostr"
)

var log, chk = slog.New(os.Stderr)

func Hash(in []byte) (out []byte) {
	h := sha256.Sum256(in)
	return h[:]
}

// T is the primary datatype of nostr. This is the form of the structure
// that defines its JSON string based format.
type T struct {

	// ID is the SHA256 hash of the canonical encoding of the event
	ID string `json:"id" yaml:"id"`

	// PubKey is the public key of the event creator. Clients may send it as
	// hex or npub; the relay stores it in the form produced by
	// normalize.PubKey.
	PubKey string `json:"pubkey" yaml:"pubkey"`

	// CreatedAt is the UNIX timestamp of the event according to the event
	// creator (never trust a timestamp!)
	CreatedAt timestamp.T `json:"created_at" yaml:"created_at"`

	// Kind is the nostr protocol code for the type of event. See kind.T
	Kind kind.T `json:"kind" yaml:"kind"`

	// Tags are a list of tags, which are a list of strings usually structured
	// as a 3 layer scheme indicating specific features of an event.
	Tags tags.T `json:"tags" yaml:"tags"`

	// Content is an arbitrary string that can contain anything, but usually
	// conforming to a specification relating to the Kind and the Tags.
	Content string `json:"content" yaml:"content"`

	// Sig is the signature on the ID hash that validates as coming from the
	// Pubkey.
	Sig string `json:"sig" yaml:"sig"`
}

// Ts is an ordered list of events as returned by a query.
type Ts []*T

// IDs returns the ids of the events in order.
func (evs Ts) IDs() (ids []string) {
	ids = make([]string, len(evs))
	for i := range evs {
		ids[i] = evs[i].ID
	}
	return
}

// Clone returns a deep copy, so the copy can be handed to another component
// without sharing the tag slices.
func (ev *T) Clone() (c *T) {
	if ev == nil {
		return
	}
	cp := *ev
	cp.Tags = ev.Tags.Clone()
	return &cp
}

// PTags returns the second element of every "p" tag, the identities the event
// refers to.
func (ev *T) PTags() []string { return ev.Tags.Values("p") }

func (ev *T) String() string {
	b, err := json.Marshal(ev)
	if chk.D(err) {
		return fmt.Sprintf("%#v", *ev)
	}
	return string(b)
}

// ToNostr converts the event into the go-nostr representation with its pubkey
// in hex, which is the form the canonical serialization is defined over.
func (ev *T) ToNostr() (n *nostr.Event) {
	n = &nostr.Event{
		ID:        ev.ID,
		PubKey:    normalize.PubKey(ev.PubKey),
		CreatedAt: nostr.Timestamp(ev.CreatedAt),
		Kind:      ev.Kind.ToInt(),
		Tags:      make(nostr.Tags, len(ev.Tags)),
		Content:   ev.Content,
		Sig:       ev.Sig,
	}
	for i := range ev.Tags {
		n.Tags[i] = nostr.Tag(ev.Tags[i].Clone())
	}
	return
}

// FromNostr converts a go-nostr event into an event.T.
func FromNostr(n *nostr.Event) (ev *T) {
	ev = &T{
		ID:        n.ID,
		PubKey:    n.PubKey,
		CreatedAt: timestamp.T(n.CreatedAt),
		Kind:      kind.T(n.Kind),
		Tags:      make(tags.T, len(n.Tags)),
		Content:   n.Content,
		Sig:       n.Sig,
	}
	for i := range n.Tags {
		ev.Tags[i] = tag.T(n.Tags[i]).Clone()
	}
	return
}

// ToCanonical returns the canonical byte form that the ID hash is computed
// over: [0,pubkey,created_at,kind,tags,content].
func (ev *T) ToCanonical() []byte { return ev.ToNostr().Serialize() }

// GetIDBytes returns the raw SHA256 hash of the canonical form of an T.
func (ev *T) GetIDBytes() []byte { return Hash(ev.ToCanonical()) }

// GetID serializes and returns the event ID as a hexadecimal string.
func (ev *T) GetID() string { return hex.EncodeToString(ev.GetIDBytes()) }

// CheckID reports whether the ID field is exactly the lowercase hex hash of
// the canonical form. Any other spelling of the same hash is not the id.
func (ev *T) CheckID() bool { return ev.ID == ev.GetID() }

// CheckSignature checks if the signature is valid for the id (which is a hash
// of the serialized event content). returns an error if the signature itself is
// invalid.
func (ev *T) CheckSignature() (valid bool, err error) {
	if valid, err = ev.ToNostr().CheckSignature(); chk.D(err) {
		err = fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return
}

// Verify checks that the ID is computed correctly and that the signature
// verifies under the claimed author. The reason is suitable for an OK
// message when ok is false.
func (ev *T) Verify() (ok bool, reason string) {
	if !ev.CheckID() {
		return false, "invalid: id is computed incorrectly"
	}
	var err error
	if ok, err = ev.CheckSignature(); err != nil {
		return false, "error: failed to verify signature: " + err.Error()
	} else if !ok {
		return false, "invalid: signature is invalid"
	}
	return true, ""
}

// Sign signs an event with a given secret key encoded in hexadecimal, setting
// the pubkey, id and signature.
func (ev *T) Sign(skStr string) (err error) {
	n := ev.ToNostr()
	if err = n.Sign(skStr); chk.D(err) {
		return fmt.Errorf("signing event: %w", err)
	}
	ev.PubKey, ev.ID, ev.Sig = n.PubKey, n.ID, n.Sig
	return
}

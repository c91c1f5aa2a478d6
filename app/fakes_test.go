package app

import (
	"context"
	"sync"
	"testing"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/tag"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/tags"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/stretchr/testify/require"
)

const (
	testSecHex = "1797f6f1d10593548b566ba32e81577aa4bc990eb0f16556bf884f1af4b17c25"
	testPubHex = "4fdb07df4a683e3ee9b2a9d117e01bfe2548d7e8c0d4cb56d77e9c23091c3fc3"
	otherPub   = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
)

// recorder is a Conn that keeps everything sent to it.
type recorder struct {
	id     string
	mx     sync.Mutex
	sent   []envelopes.I
	closed bool
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(env envelopes.I) {
	r.mx.Lock()
	r.sent = append(r.sent, env)
	r.mx.Unlock()
}

func (r *recorder) Closed() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.closed
}

func (r *recorder) Sent() []envelopes.I {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]envelopes.I(nil), r.sent...)
}

func (r *recorder) Reset() {
	r.mx.Lock()
	r.sent = nil
	r.mx.Unlock()
}

// eventsFor lists the ids of EVENT messages sent for a subscription.
func (r *recorder) eventsFor(subID string) (ids []string) {
	for _, env := range r.Sent() {
		if e, ok := env.(*envelopes.Event); ok && e.SubscriptionID == subID {
			ids = append(ids, e.Event.ID)
		}
	}
	return
}

func testRelay(t *testing.T) *Relay {
	c, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRelay(c, cancel, nil, nil)
}

func signedEvent(t *testing.T, k kind.T, at timestamp.T, content string,
	p ...string) *event.T {

	ev := &event.T{CreatedAt: at, Kind: k, Content: content, Tags: tags.T{}}
	for _, ref := range p {
		ev.Tags = append(ev.Tags, tag.T{"p", ref})
	}
	require.NoError(t, ev.Sign(testSecHex))
	return ev
}

package app

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filter"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kinds"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReqSendsStoredNewestFirstThenEOSE(t *testing.T) {
	rl := testRelay(t)
	for _, at := range []timestamp.T{100, 300, 200} {
		rl.Store.AddEvent(&event.T{ID: fmt.Sprint(at), PubKey: "a", CreatedAt: at,
			Kind: kind.TextNote, Sig: "s"})
	}
	c := newRecorder("c1")
	rl.HandleMessage(c, []byte(`["REQ","sub",{}]`))
	sent := c.Sent()
	require.Len(t, sent, 4)
	var order []timestamp.T
	for _, env := range sent[:3] {
		order = append(order, env.(*envelopes.Event).Event.CreatedAt)
	}
	assert.Equal(t, []timestamp.T{300, 200, 100}, order)
	assert.Equal(t, &envelopes.EOSE{SubscriptionID: "sub"}, sent[3])
}

func TestBroadcastGoesOnlyToMatchingSubscriptions(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	rl.HandleEnvelope(c, &envelopes.Req{SubscriptionID: "A",
		Filters: filters.T{{Kinds: kinds.T{kind.EncryptedDirectMessage}}}})
	rl.HandleEnvelope(c, &envelopes.Req{SubscriptionID: "B",
		Filters: filters.T{{Kinds: kinds.T{kind.ProfileMetadata}}}})
	c.Reset()
	ev := signedEvent(t, kind.EncryptedDirectMessage, timestamp.Now(),
		"ciphertext?iv=abc", otherPub)
	rl.HandleEnvelope(c, &envelopes.Event{Event: ev})
	sent := c.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, &envelopes.Event{SubscriptionID: "A", Event: ev}, sent[0])
	assert.Equal(t, &envelopes.OK{EventID: ev.ID, OK: true}, sent[1])
	assert.Empty(t, c.eventsFor("B"))
}

func TestRejectedEventIsNotStored(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	ev := signedEvent(t, kind.TextNote, timestamp.Now(), "hello")
	ev.Sig = ""
	rl.HandleEnvelope(c, &envelopes.Event{Event: ev})
	sent := c.Sent()
	require.Len(t, sent, 1)
	ok := sent[0].(*envelopes.OK)
	assert.Equal(t, ev.ID, ok.EventID)
	assert.False(t, ok.OK)
	assert.NotEmpty(t, ok.Reason)
	assert.Empty(t, rl.Store.Query(filters.T{{IDs: []string{ev.ID}}}))
}

func TestValidateEventReasons(t *testing.T) {
	rl := testRelay(t)
	now := time.Unix(1700000000, 0)
	rl.Now = func() time.Time { return now }
	good := signedEvent(t, kind.TextNote, timestamp.FromUnix(now.Unix()), "x")
	ok, reason := rl.ValidateEvent(good)
	assert.True(t, ok, reason)

	for name, tc := range map[string]struct {
		mod    func(ev *event.T)
		reason string
	}{
		"no id":     {func(ev *event.T) { ev.ID = "" }, "invalid: missing id"},
		"no pubkey": {func(ev *event.T) { ev.PubKey = "" }, "invalid: missing pubkey"},
		"no sig":    {func(ev *event.T) { ev.Sig = "" }, "invalid: missing signature"},
		"future": {func(ev *event.T) {
			ev.CreatedAt = timestamp.FromUnix(now.Add(MaxFutureSkew + time.Minute).Unix())
		}, "invalid: created_at is too far in the future"},
		"tampered": {func(ev *event.T) { ev.Content = "y" },
			"invalid: id is computed incorrectly"},
		"uppercase id": {func(ev *event.T) { ev.ID = strings.ToUpper(ev.ID) },
			"invalid: id is computed incorrectly"},
	} {
		t.Run(name, func(t *testing.T) {
			ev := good.Clone()
			tc.mod(ev)
			ok, reason := rl.ValidateEvent(ev)
			assert.False(t, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}
	ok, reason = rl.ValidateEvent(nil)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestUppercaseIDDoesNotDuplicate(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	ev := signedEvent(t, kind.TextNote, timestamp.Now(), "once")
	rl.HandleEnvelope(c, &envelopes.Event{Event: ev})
	up := ev.Clone()
	up.ID = strings.ToUpper(ev.ID)
	rl.HandleEnvelope(c, &envelopes.Event{Event: up})
	sent := c.Sent()
	require.Len(t, sent, 2)
	assert.True(t, sent[0].(*envelopes.OK).OK)
	assert.False(t, sent[1].(*envelopes.OK).OK)
	got := rl.Store.Query(filters.T{{}})
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
}

func TestVerifyCanBeReplaced(t *testing.T) {
	rl := testRelay(t)
	rl.Verify = func(*event.T) (bool, string) { return true, "" }
	c := newRecorder("c1")
	ev := &event.T{ID: "fixture", PubKey: "alice", Sig: "x",
		CreatedAt: timestamp.Now()}
	rl.HandleEnvelope(c, &envelopes.Event{Event: ev})
	assert.Equal(t, []envelopes.I{&envelopes.OK{EventID: "fixture", OK: true}},
		c.Sent())
	_, ok := rl.Store.GetByID("fixture")
	assert.True(t, ok)
}

func TestCloseLeavesOtherSubscriptionsOfTheConnection(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	rl.HandleMessage(c, []byte(`["REQ","X",{"kinds":[1]}]`))
	rl.HandleMessage(c, []byte(`["REQ","Y",{"kinds":[1]}]`))
	rl.HandleMessage(c, []byte(`["CLOSE","X"]`))
	c.Reset()
	ev := signedEvent(t, kind.TextNote, timestamp.Now(), "after close")
	rl.HandleEnvelope(c, &envelopes.Event{Event: ev})
	assert.Empty(t, c.eventsFor("X"))
	assert.Equal(t, []string{ev.ID}, c.eventsFor("Y"))
	// closing twice, or something never opened, is silent
	c.Reset()
	rl.HandleMessage(c, []byte(`["CLOSE","X"]`))
	rl.HandleMessage(c, []byte(`["CLOSE","nope"]`))
	assert.Empty(t, c.Sent())
}

func TestReqWithSameIDReplacesSubscription(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	rl.HandleMessage(c, []byte(`["REQ","s",{"kinds":[0]}]`))
	rl.HandleMessage(c, []byte(`["REQ","s",{"kinds":[1]}]`))
	assert.Equal(t, 1, rl.Registry.Size())
	c.Reset()
	rl.HandleEnvelope(c, &envelopes.Event{
		Event: signedEvent(t, kind.ProfileMetadata, timestamp.Now(), "{}")})
	assert.Empty(t, c.eventsFor("s"))
	rl.HandleEnvelope(c, &envelopes.Event{
		Event: signedEvent(t, kind.TextNote, timestamp.Now(), "note")})
	assert.Len(t, c.eventsFor("s"), 1)
}

func TestUndecodableFramesGetNotice(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	for _, msg := range []string{
		`not json`,
		`{}`,
		`[]`,
		`[1,2]`,
		`["PING"]`,
		`["REQ","s"]`,
		`["REQ","s",{"limit":-1}]`,
		`["EVENT"]`,
		`["CLOSE",5]`,
	} {
		c.Reset()
		rl.HandleMessage(c, []byte(msg))
		sent := c.Sent()
		require.Len(t, sent, 1, msg)
		n, ok := sent[0].(*envelopes.Notice)
		require.True(t, ok, msg)
		assert.Contains(t, n.Message, "invalid", msg)
	}
	assert.Zero(t, rl.Registry.Size())
}

func TestAuthIsAcknowledged(t *testing.T) {
	rl := testRelay(t)
	c := newRecorder("c1")
	ev := &event.T{ID: "auth-id", PubKey: testPubHex,
		Kind: kind.ClientAuthentication, Sig: "garbage"}
	rl.HandleEnvelope(c, &envelopes.AuthResponse{Event: ev})
	assert.Equal(t, []envelopes.I{&envelopes.OK{EventID: "auth-id", OK: true}},
		c.Sent())
}

func TestLimitAndDirectMessageRouting(t *testing.T) {
	rl := testRelay(t)
	for i := 0; i < 5; i++ {
		rl.Store.AddEvent(signedEvent(t, kind.EncryptedDirectMessage,
			timestamp.T(1000+i), "dm", otherPub))
	}
	rl.Store.AddEvent(signedEvent(t, kind.EncryptedDirectMessage, 2000, "dm"))
	c := newRecorder("c1")
	two := 2
	rl.HandleEnvelope(c, &envelopes.Req{SubscriptionID: "dms",
		Filters: filters.T{&filter.T{Kinds: kinds.T{kind.EncryptedDirectMessage},
			P: []string{otherPub}, Limit: &two}}})
	assert.Len(t, c.eventsFor("dms"), 2)
}

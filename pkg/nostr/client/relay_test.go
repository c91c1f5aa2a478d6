package client_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Hubmakerlabs/mockrelay/app"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/client"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kinds"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/tags"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecHex = "1797f6f1d10593548b566ba32e81577aa4bc990eb0f16556bf884f1af4b17c25"

func startRelay(t *testing.T) (m *app.Manager, url string) {
	m = app.NewManager(context.Background(), &app.Config{Host: "127.0.0.1"})
	t.Cleanup(m.StopAll)
	require.Equal(t, 1, m.StartRelays(1, 0))
	return m, m.URLs()[0]
}

func connect(t *testing.T, url string, opts ...client.Option) *client.T {
	r, err := client.Connect(context.Background(), url, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func note(t *testing.T, content string) *event.T {
	ev := &event.T{CreatedAt: timestamp.Now(), Kind: kind.TextNote,
		Tags: tags.T{}, Content: content}
	require.NoError(t, ev.Sign(testSecHex))
	return ev
}

func collect(t *testing.T, s *client.Subscription) (evs event.Ts) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events:
			if !ok {
				return
			}
			evs = append(evs, ev)
		case <-timeout:
			t.Fatal("subscription did not end")
		}
	}
}

func TestPublishAndQuery(t *testing.T) {
	m, url := startRelay(t)
	r := connect(t, url)
	c := context.Background()
	first, second := note(t, "first"), note(t, "second")
	second.CreatedAt++
	require.NoError(t, second.Sign(testSecHex))
	require.NoError(t, r.Publish(c, first))
	require.NoError(t, r.Publish(c, second))
	assert.Equal(t, 2, m.Store(0).Count())

	s, err := r.Subscribe(c, "", filters.T{{Kinds: kinds.T{kind.TextNote}}},
		false)
	require.NoError(t, err)
	got := collect(t, s)
	assert.Equal(t, []string{second.ID, first.ID}, got.IDs())
	select {
	case <-s.EOSE:
	default:
		t.Fatal("EOSE not signalled")
	}
}

func TestPublishRejected(t *testing.T) {
	_, url := startRelay(t)
	r := connect(t, url)
	ev := note(t, "tampered")
	ev.Content = "changed"
	err := r.Publish(context.Background(), ev)
	var rej *client.Rejected
	require.True(t, errors.As(err, &rej), "%v", err)
	assert.Equal(t, ev.ID, rej.ID)
	assert.Contains(t, rej.Reason, "invalid")
}

func TestStreamingSubscription(t *testing.T) {
	_, url := startRelay(t)
	sub := connect(t, url)
	pub := connect(t, url)
	c := context.Background()
	s, err := sub.Subscribe(c, "live", filters.T{{}}, true)
	require.NoError(t, err)
	select {
	case <-s.EOSE:
	case <-time.After(5 * time.Second):
		t.Fatal("no EOSE")
	}
	ev := note(t, "live one")
	require.NoError(t, pub.Publish(c, ev))
	select {
	case got := <-s.Events:
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("live event not delivered")
	}
	s.Close()
	_, open := <-s.Events
	assert.False(t, open)
}

func TestNoticeHandler(t *testing.T) {
	_, url := startRelay(t)
	notices := make(chan string, 1)
	r := connect(t, url, client.WithNoticeHandler(func(n string) {
		notices <- n
	}))
	require.NoError(t, r.Write([]byte(`["WHAT"]`)))
	select {
	case n := <-notices:
		assert.Contains(t, n, "invalid")
	case <-time.After(5 * time.Second):
		t.Fatal("no notice")
	}
}

func TestCloseEndsEverything(t *testing.T) {
	_, url := startRelay(t)
	r := connect(t, url)
	s, err := r.Subscribe(context.Background(), "x", filters.T{{}}, true)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	_, open := <-s.Events
	assert.False(t, open)
	assert.False(t, r.IsConnected())
	assert.ErrorIs(t, r.Publish(context.Background(), note(t, "late")),
		client.ErrClosed)
}

func TestConnectFails(t *testing.T) {
	c, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := client.Connect(c, "ws://127.0.0.1:1")
	assert.Error(t, err)
}

func TestChallengeAndErrAcrossReadLoop(t *testing.T) {
	m := app.NewManager(context.Background(),
		&app.Config{Host: "127.0.0.1", AuthOnConnect: true})
	t.Cleanup(m.StopAll)
	require.Equal(t, 1, m.StartRelays(1, 0))
	r := connect(t, m.URLs()[0])
	require.Eventually(t, func() bool { return r.Challenge() != "" },
		5*time.Second, 10*time.Millisecond)
	assert.NoError(t, r.Err())

	require.NoError(t, m.StopRelay(0))
	require.Eventually(t, func() bool { return !r.IsConnected() },
		5*time.Second, 10*time.Millisecond)
	assert.Error(t, r.Err())
}

func TestLargeEventRoundTrip(t *testing.T) {
	_, url := startRelay(t)
	r := connect(t, url)
	c := context.Background()
	ev := note(t, strings.Repeat("fragmented and compressed ", 2000))
	require.NoError(t, r.Publish(c, ev))
	s, err := r.Subscribe(c, "", filters.T{{IDs: []string{ev.ID}}}, false)
	require.NoError(t, err)
	got := collect(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, ev.Content, got[0].Content)
}

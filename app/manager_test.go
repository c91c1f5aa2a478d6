package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/relayinfo"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, n int) *Manager {
	m := NewManager(context.Background(), &Config{
		Host:        "127.0.0.1",
		Name:        "test relay",
		Description: "for tests",
	})
	t.Cleanup(m.StopAll)
	require.Equal(t, n, m.StartRelays(n, 0))
	return m
}

func dial(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelopes.I {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := envelopes.DecodeRelay(b)
	require.NoError(t, err, string(b))
	return env
}

func TestInstancesShareNothing(t *testing.T) {
	m := testManager(t, 2)
	assert.Equal(t, 2, m.Count())
	urls := m.URLs()
	require.Len(t, urls, 2)
	assert.NotEqual(t, urls[0], urls[1])

	c0 := dial(t, urls[0])
	ev := signedEvent(t, kind.TextNote, timestamp.Now(), "only on zero")
	require.NoError(t, c0.WriteMessage(websocket.TextMessage,
		envelopes.Bytes(&envelopes.Event{Event: ev})))
	assert.Equal(t, &envelopes.OK{EventID: ev.ID, OK: true},
		readEnvelope(t, c0))
	assert.Equal(t, 1, m.Store(0).Count())
	assert.Zero(t, m.Store(1).Count())
	assert.Nil(t, m.Store(2))
}

func TestWebsocketSubscriptionEndToEnd(t *testing.T) {
	m := testManager(t, 1)
	url := m.URLs()[0]
	sub := dial(t, url)
	require.NoError(t, sub.WriteMessage(websocket.TextMessage,
		[]byte(`["REQ","dm",{"kinds":[4],"#p":["`+otherPub+`"]}]`)))
	assert.Equal(t, &envelopes.EOSE{SubscriptionID: "dm"}, readEnvelope(t, sub))

	// a bad frame gets a NOTICE and the connection stays usable
	require.NoError(t, sub.WriteMessage(websocket.TextMessage, []byte(`["NOPE"]`)))
	_, ok := readEnvelope(t, sub).(*envelopes.Notice)
	assert.True(t, ok)

	pub := dial(t, url)
	ev := signedEvent(t, kind.EncryptedDirectMessage, timestamp.Now(),
		"ciphertext?iv=abc", otherPub)
	require.NoError(t, pub.WriteMessage(websocket.TextMessage,
		envelopes.Bytes(&envelopes.Event{Event: ev})))
	assert.Equal(t, &envelopes.OK{EventID: ev.ID, OK: true},
		readEnvelope(t, pub))
	got, ok := readEnvelope(t, sub).(*envelopes.Event)
	require.True(t, ok)
	assert.Equal(t, "dm", got.SubscriptionID)
	assert.Equal(t, ev.ID, got.Event.ID)

	// closing the subscriber's socket drops its subscription
	require.NoError(t, sub.Close())
	assert.Eventually(t, func() bool { return m.Relay(0).Registry.Size() == 0 },
		5*time.Second, 10*time.Millisecond)
}

func TestHTTPSurface(t *testing.T) {
	m := testManager(t, 1)
	base := "http://" + dialable(m.Addresses()[0])

	req, err := http.NewRequest(http.MethodGet, base, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/nostr+json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "application/nostr+json", res.Header.Get("Content-Type"))
	info := &relayinfo.T{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(info))
	assert.Equal(t, "test relay", info.Name)
	assert.True(t, info.HasNIP(1))
	assert.True(t, info.HasNIP(11))
	assert.Equal(t, MaxMessageSize, info.Limitation.MaxMessageLength)

	res, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	b, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.Contains(string(b), "mockrelay_stored_events"))

	res, err = http.Get(base + "/nothing-here")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStopRelay(t *testing.T) {
	m := testManager(t, 2)
	addr := m.Addresses()[0]
	require.NoError(t, m.StopRelay(0))
	assert.Error(t, m.StopRelay(0))
	assert.Error(t, m.StopRelay(7))
	assert.Equal(t, 1, m.Count())
	assert.Nil(t, m.Relay(0))
	assert.NotNil(t, m.Relay(1))
	_, _, err := websocket.DefaultDialer.Dial("ws://"+addr, nil)
	assert.Error(t, err)
}

func TestStartRelaysSkipsBusyPort(t *testing.T) {
	m := testManager(t, 1)
	_, port := splitPort(t, m.Addresses()[0])
	assert.Zero(t, m.StartRelays(1, port))
	assert.Equal(t, 1, m.Count())
}

func TestSeedReachesEveryInstance(t *testing.T) {
	m := testManager(t, 3)
	evs := event.Ts{
		{ID: "one", PubKey: "alice", Kind: kind.TextNote, CreatedAt: 1},
		{ID: "", PubKey: "alice", Kind: kind.TextNote, CreatedAt: 2},
		nil,
	}
	relays, n := m.Seed(evs)
	assert.Equal(t, 3, relays)
	assert.Equal(t, 1, n)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, m.Store(i).Count())
	}
}

func TestSeedSkipsStoppedInstances(t *testing.T) {
	m := testManager(t, 3)
	require.NoError(t, m.StopRelay(1))
	evs := event.Ts{
		{ID: "one", PubKey: "alice", Kind: kind.TextNote, CreatedAt: 1},
		{ID: "two", PubKey: "bob", Kind: kind.TextNote, CreatedAt: 2},
	}
	relays, n := m.Seed(evs)
	assert.Equal(t, 2, relays)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Store(0).Count())
	assert.Equal(t, 2, m.Store(2).Count())

	empty := NewManager(context.Background(), nil)
	relays, n = empty.Seed(evs)
	assert.Zero(t, relays)
	assert.Zero(t, n)
}

func TestDialable(t *testing.T) {
	assert.Equal(t, "127.0.0.1:80", dialable("0.0.0.0:80"))
	assert.Equal(t, "[::1]:80", dialable("[::]:80"))
	assert.Equal(t, "example.com:80", dialable("example.com:80"))
	assert.Equal(t, "garbage", dialable("garbage"))
}

func splitPort(t *testing.T, addr string) (host string, port int) {
	host, p, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return
}

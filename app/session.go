package app

import (
	"context"
	"encoding/hex"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/sebest/xff"
	"lukechampine.com/frand"
)

const ChallengeLength = 16

var _ Conn = (*Session)(nil)

// Session is one client websocket. Outbound messages go through an unbounded
// queue drained by a single writer goroutine, so they reach the client in
// the order they were queued and a slow client never blocks a broadcaster.
type Session struct {
	id        string
	Conn      *websocket.Conn
	Request   *http.Request
	remote    string
	challenge string
	authed    atomic.Value

	Ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mx    sync.Mutex
	queue [][]byte
	wake  chan struct{}
}

func NewSession(c context.Context, conn *websocket.Conn,
	r *http.Request) (s *Session) {

	s = &Session{
		id:        uuid.NewString(),
		Conn:      conn,
		Request:   r,
		challenge: GenerateChallenge(),
		wake:      make(chan struct{}, 1),
	}
	s.authed.Store("")
	if r != nil {
		s.remote = xff.GetRemoteAddr(r)
	}
	s.Ctx, s.cancel = context.WithCancel(c)
	return
}

// GenerateChallenge gathers new entropy for an AUTH challenge.
func GenerateChallenge() string {
	return hex.EncodeToString(frand.Bytes(ChallengeLength))
}

func (s *Session) ID() string         { return s.id }
func (s *Session) RealRemote() string { return s.remote }
func (s *Session) Challenge() string  { return s.challenge }
func (s *Session) Closed() bool       { return s.closed.Load() }

// AuthPubKey is the pubkey of the last AUTH event the client sent, which is
// recorded but never checked.
func (s *Session) AuthPubKey() string     { return s.authed.Load().(string) }
func (s *Session) SetAuthPubKey(a string) { s.authed.Store(a) }

// Send queues an envelope for the writer.
func (s *Session) Send(env envelopes.I) {
	b := envelopes.Bytes(env)
	if b == nil || s.closed.Load() {
		return
	}
	s.mx.Lock()
	s.queue = append(s.queue, b)
	s.mx.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) drain() (msgs [][]byte) {
	s.mx.Lock()
	msgs, s.queue = s.queue, nil
	s.mx.Unlock()
	return
}

// writer sends queued messages until the session ends or a write fails.
func (rl *Relay) websocketWriter(s *Session, kill func()) {
	defer kill()
	for {
		select {
		case <-s.Ctx.Done():
			return
		case <-s.wake:
		}
		for _, b := range s.drain() {
			log.T.F("sending message to %s\n%s", s.remote, b)
			chk.T(s.Conn.SetWriteDeadline(time.Now().Add(rl.WriteWait)))
			if err := s.Conn.WriteMessage(websocket.TextMessage,
				b); chk.D(err) {
				return
			}
		}
	}
}

package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
)

var subscriptionIDCounter atomic.Int32

// Subscription is one REQ. Events is closed when the subscription ends,
// which without streaming is right after EOSE.
type Subscription struct {
	ID      string
	Filters filters.T
	Events  chan *event.T
	// EOSE is closed when the relay has sent every stored match.
	EOSE chan struct{}

	relay  *T
	stream bool
	ctx    context.Context
	cancel context.CancelFunc

	mx       sync.Mutex
	ended    bool
	closing  atomic.Bool
	eoseOnce sync.Once
}

// Subscribe sends a REQ. An empty id picks one. With stream false the
// subscription is closed after EOSE, so ranging over Events yields the
// stored matches only; with stream true live events keep arriving until
// Close or until c is done.
func (r *T) Subscribe(c context.Context, id string, f filters.T,
	stream bool) (s *Subscription, err error) {

	if id == "" {
		id = fmt.Sprintf("sub:%d", subscriptionIDCounter.Add(1))
	}
	s = &Subscription{
		ID:      id,
		Filters: f,
		Events:  make(chan *event.T),
		EOSE:    make(chan struct{}),
		relay:   r,
		stream:  stream,
	}
	s.ctx, s.cancel = context.WithCancel(c)
	if prev, loaded := r.subscriptions.LoadAndStore(id, s); loaded {
		prev.abandon()
	}
	if err = r.send(&envelopes.Req{SubscriptionID: id, Filters: f}); err != nil {
		r.subscriptions.Delete(id)
		s.abandon()
		return nil, fmt.Errorf("couldn't subscribe to %v at %s: %w", f, r.url,
			err)
	}
	go func() {
		<-s.ctx.Done()
		s.Close()
	}()
	return
}

func (s *Subscription) dispatchEvent(ev *event.T) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.ended {
		return
	}
	select {
	case s.Events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Subscription) dispatchEOSE() {
	s.eoseOnce.Do(func() { close(s.EOSE) })
	if !s.stream {
		s.Close()
	}
}

// Close sends CLOSE to the relay, if it is still connected, and ends the
// subscription.
func (s *Subscription) Close() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	if cur, ok := s.relay.subscriptions.Load(s.ID); ok && cur == s {
		s.relay.subscriptions.Delete(s.ID)
	}
	if s.relay.IsConnected() {
		chk.D(s.relay.send(&envelopes.Close{SubscriptionID: s.ID}))
	}
	s.end()
}

func (s *Subscription) end() {
	s.cancel()
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	close(s.Events)
}

// abandon ends the subscription without telling the relay.
func (s *Subscription) abandon() {
	s.closing.Store(true)
	s.end()
}

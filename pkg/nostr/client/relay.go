// Package client is a small nostr websocket client for publishing fixtures
// into a relay and reading subscriptions back out of it.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
	"github.com/puzpuzpuz/xsync/v2"
)

var log, chk = slog.New(os.Stderr)

const (
	// DialTimeout applies to Connect when its context has no deadline.
	DialTimeout = 7 * time.Second
	// PublishTimeout applies to Publish when its context has no deadline.
	PublishTimeout = 4 * time.Second
	PingPeriod     = 29 * time.Second
)

var ErrClosed = errors.New("connection closed")

// Rejected is returned by Publish when the relay answers OK false.
type Rejected struct {
	ID     string
	Reason string
}

func (r *Rejected) Error() string {
	return fmt.Sprintf("event %s rejected: %s", r.ID, r.Reason)
}

// Option configures a connection.
type Option func(r *T)

// WithNoticeHandler receives NOTICE messages. Without one they are logged.
func WithNoticeHandler(fn func(notice string)) Option {
	return func(r *T) { r.notices = fn }
}

// WithHeader sets request headers for the websocket handshake, eg Origin.
func WithHeader(h http.Header) Option {
	return func(r *T) { r.RequestHeader = h }
}

// WithAssumeValid skips signature checks on events received from the relay.
func WithAssumeValid() Option {
	return func(r *T) { r.AssumeValid = true }
}

type okResult struct {
	ok     bool
	reason string
}

// T is a connection to one relay.
type T struct {
	url           string
	RequestHeader http.Header
	// AssumeValid skips verifying signatures of events from this relay.
	AssumeValid bool

	Ctx    context.Context
	cancel context.CancelFunc
	conn   *connection

	// stateMx guards err and challenge, which the read loop sets.
	stateMx   sync.RWMutex
	err       error
	challenge string

	writeMx       sync.Mutex
	notices       func(string)
	subscriptions *xsync.MapOf[string, *Subscription]
	okWaiters     *xsync.MapOf[string, chan okResult]
	closeOnce     sync.Once
}

// Connect dials url. Cancelling c after it returns has no effect; call Close
// to disconnect.
func Connect(c context.Context, url string, opts ...Option) (r *T, err error) {
	r = &T{
		url:           normalize.URL(url),
		subscriptions: xsync.NewMapOf[*Subscription](),
		okWaiters:     xsync.NewMapOf[chan okResult](),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.url == "" {
		return nil, fmt.Errorf("invalid relay URL '%s'", url)
	}
	if _, ok := c.Deadline(); !ok {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, DialTimeout)
		defer cancel()
	}
	if r.conn, err = newConnection(c, r.url, r.RequestHeader); err != nil {
		return nil, fmt.Errorf("error opening websocket to '%s': %w", r.url, err)
	}
	r.Ctx, r.cancel = context.WithCancel(context.Background())
	go r.pinger()
	go r.readLoop()
	return
}

func (r *T) URL() string    { return r.url }
func (r *T) String() string { return r.url }

// IsConnected returns true if the connection to this relay seems to be active.
func (r *T) IsConnected() bool { return r.Ctx.Err() == nil }

// Err is the error that ended the connection, if any.
func (r *T) Err() error {
	r.stateMx.RLock()
	defer r.stateMx.RUnlock()
	return r.err
}

// Challenge is the last AUTH challenge the relay sent.
func (r *T) Challenge() string {
	r.stateMx.RLock()
	defer r.stateMx.RUnlock()
	return r.challenge
}

// Close disconnects and ends every subscription.
func (r *T) Close() (err error) {
	r.closeOnce.Do(func() {
		r.cancel()
		err = r.conn.Close()
		r.subscriptions.Range(func(id string, s *Subscription) bool {
			s.abandon()
			r.subscriptions.Delete(id)
			return true
		})
	})
	return
}

// Write sends one message. Writes are serialized.
func (r *T) Write(msg []byte) (err error) {
	if !r.IsConnected() {
		return ErrClosed
	}
	r.writeMx.Lock()
	defer r.writeMx.Unlock()
	return r.conn.WriteMessage(msg)
}

func (r *T) send(env envelopes.I) (err error) {
	b := envelopes.Bytes(env)
	if b == nil {
		return fmt.Errorf("cannot encode %s message", env.Label())
	}
	return r.Write(b)
}

func (r *T) pinger() {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.Ctx.Done():
			return
		case <-ticker.C:
			r.writeMx.Lock()
			err := r.conn.Ping()
			r.writeMx.Unlock()
			if err != nil {
				log.D.F("{%s} error writing ping: %v; closing websocket",
					r.url, err)
				chk.D(r.Close())
				return
			}
		}
	}
}

func (r *T) readLoop() {
	buf := new(bytes.Buffer)
	for {
		buf.Reset()
		if err := r.conn.ReadMessage(r.Ctx, buf); err != nil {
			if r.IsConnected() {
				r.stateMx.Lock()
				r.err = err
				r.stateMx.Unlock()
			}
			chk.D(r.Close())
			return
		}
		env, err := envelopes.DecodeRelay(buf.Bytes())
		if chk.D(err) {
			log.D.F("{%s} undecodable message: %s", r.url, buf.Bytes())
			continue
		}
		r.dispatch(env)
	}
}

func (r *T) dispatch(env envelopes.I) {
	switch env := env.(type) {
	case *envelopes.Notice:
		if r.notices != nil {
			r.notices(env.Message)
		} else {
			log.D.F("NOTICE from %s: '%s'", r.url, env.Message)
		}
	case *envelopes.AuthChallenge:
		r.stateMx.Lock()
		r.challenge = env.Challenge
		r.stateMx.Unlock()
		log.D.Ln("challenge", env.Challenge)
	case *envelopes.Event:
		s, ok := r.subscriptions.Load(env.SubscriptionID)
		if !ok {
			log.D.F("{%s} no subscription with id '%s'", r.url,
				env.SubscriptionID)
			return
		}
		if !r.AssumeValid {
			if ok, reason := env.Event.Verify(); !ok {
				log.D.F("{%s} dropping %s: %s", r.url, env.Event.ID, reason)
				return
			}
		}
		s.dispatchEvent(env.Event)
	case *envelopes.EOSE:
		if s, ok := r.subscriptions.Load(env.SubscriptionID); ok {
			s.dispatchEOSE()
		}
	case *envelopes.OK:
		if ch, ok := r.okWaiters.LoadAndDelete(env.EventID); ok {
			ch <- okResult{env.OK, env.Reason}
		} else {
			log.D.F("{%s} got an unexpected OK message for event %s",
				r.url, env.EventID)
		}
	}
}

// Publish sends an EVENT and waits for the relay's OK. A rejection is
// returned as a *Rejected error.
func (r *T) Publish(c context.Context, ev *event.T) (err error) {
	return r.publish(c, ev.ID, &envelopes.Event{Event: ev})
}

// Auth answers the last challenge with an already signed AUTH event and
// waits for the OK.
func (r *T) Auth(c context.Context, ev *event.T) (err error) {
	return r.publish(c, ev.ID, &envelopes.AuthResponse{Event: ev})
}

func (r *T) publish(c context.Context, id string, env envelopes.I) (err error) {
	if _, ok := c.Deadline(); !ok {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, PublishTimeout)
		defer cancel()
	}
	ch := make(chan okResult, 1)
	r.okWaiters.Store(id, ch)
	defer r.okWaiters.Delete(id)
	if err = r.send(env); err != nil {
		return
	}
	select {
	case res := <-ch:
		if !res.ok {
			return &Rejected{ID: id, Reason: res.reason}
		}
		return nil
	case <-c.Done():
		return c.Err()
	case <-r.Ctx.Done():
		return ErrClosed
	}
}

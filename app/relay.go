package app

import (
	"context"
	"net/http"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore/memory"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/relayinfo"
	"github.com/Hubmakerlabs/mockrelay/pkg/units"
	"github.com/fasthttp/websocket"
	"github.com/puzpuzpuz/xsync/v2"
)

var Version = "v0.1.0"
var Software = "https://github.com/Hubmakerlabs/mockrelay"

const (
	WriteWait           = 10 * time.Second
	PongWait            = 60 * time.Second
	PingPeriod          = 30 * time.Second
	ReadBufferSize      = 4096
	WriteBufferSize     = 4096
	MaxMessageSize  int = 512 * units.Kb
	// MaxFutureSkew is how far ahead of the relay's clock an event's
	// created_at may be.
	MaxFutureSkew = time.Hour
)

// VerifyFunc checks an event's id and signature. reason is given when ok is
// false.
type VerifyFunc func(ev *event.T) (ok bool, reason string)

// Relay is one instance: a store, the subscriptions on it and the listener
// clients reach it through. Instances share nothing.
type Relay struct {
	Ctx      context.Context
	Cancel   context.CancelFunc
	Info     *relayinfo.T
	Store    eventstore.I
	Registry *Registry
	Metrics  *Metrics
	// Verify is the signature check applied to submitted events.
	Verify VerifyFunc
	// Now is the relay clock used for the created_at skew check.
	Now func() time.Time
	// AuthOnConnect sends an AUTH challenge to every new connection. The
	// reply is acknowledged but not checked.
	AuthOnConnect bool
	// for establishing websockets
	upgrader websocket.Upgrader
	// keep a reference to all connected clients for Shutdown
	clients *xsync.MapOf[string, *Session]
	// Addr is the address the listener is bound to once Start has run.
	Addr       string
	serveMux   *http.ServeMux
	httpServer *http.Server
	started    chan struct{}
	// websocket options
	// WriteWait is the time allowed to write a message to the peer.
	WriteWait time.Duration
	// PongWait is the time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// PingPeriod is the tend pings to peer with this period. Must be less than
	// pongWait.
	PingPeriod     time.Duration
	MaxMessageSize int64 // Maximum message size allowed from peer.
	// MaxConnections caps concurrent connections when above zero.
	MaxConnections int
}

func NewRelay(c context.Context, cancel context.CancelFunc,
	inf *relayinfo.T, conf *Config) (r *Relay) {

	inf = relayinfo.NewInfo(inf)
	var maxMessageLength = MaxMessageSize
	if conf != nil && conf.MaxMessageSize > 0 {
		maxMessageLength = conf.MaxMessageSize
	}
	inf.Software = Software
	inf.Version = Version
	inf.Limitation.MaxMessageLength = maxMessageLength
	inf.AddNIPs(
		relayinfo.BasicProtocol.Number,            // events, envelopes and filters
		relayinfo.EncryptedDirectMessage.Number,   // kind 4 routing by p tag
		relayinfo.RelayInformationDocument.Number, // this document
		relayinfo.Bech32EncodedEntities.Number,    // npub authors and references
		relayinfo.Authentication.Number,           // AUTH, acknowledged only
	)
	r = &Relay{
		Ctx:      c,
		Cancel:   cancel,
		Info:     inf,
		Store:    memory.New(),
		Registry: NewRegistry(),
		Metrics:  NewMetrics(),
		Verify:   (*event.T).Verify,
		Now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    ReadBufferSize,
			WriteBufferSize:   WriteBufferSize,
			EnableCompression: true,
			CheckOrigin:       func(r *http.Request) bool { return true },
		},
		clients:        xsync.NewMapOf[*Session](),
		serveMux:       &http.ServeMux{},
		started:        make(chan struct{}),
		WriteWait:      WriteWait,
		PongWait:       PongWait,
		PingPeriod:     PingPeriod,
		MaxMessageSize: int64(maxMessageLength),
	}
	if conf != nil {
		r.AuthOnConnect = conf.AuthOnConnect
		r.MaxConnections = conf.MaxConnections
	}
	r.Metrics.Watch(r)
	r.serveMux.Handle("/metrics", r.Metrics.Handler())
	return
}

// Clients is the number of open websocket connections.
func (rl *Relay) Clients() int { return rl.clients.Size() }

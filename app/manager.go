package app

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/relayinfo"
)

// ShutdownTimeout bounds how long StopRelay waits for an instance's http
// server to drain.
const ShutdownTimeout = 5 * time.Second

type instance struct {
	*Relay
	port int
	done chan error
}

// Manager runs any number of independent relay instances. Instances are
// addressed by the index StartRelay returned; a stopped instance keeps its
// index so the others do not move.
type Manager struct {
	Ctx    context.Context
	cancel context.CancelFunc
	Config *Config

	mx        sync.Mutex
	instances []*instance
}

func NewManager(c context.Context, conf *Config) (m *Manager) {
	if conf == nil {
		conf = &Config{Host: "127.0.0.1"}
	}
	m = &Manager{Config: conf}
	m.Ctx, m.cancel = context.WithCancel(c)
	return
}

// StartRelay starts an instance listening on port, 0 for any free port, and
// returns its index once it accepts connections.
func (m *Manager) StartRelay(port int) (i int, rl *Relay, err error) {
	c, cancel := context.WithCancel(m.Ctx)
	inf := &relayinfo.T{
		Name:        m.Config.Name,
		Description: m.Config.Description,
		Nips:        []int{},
	}
	rl = NewRelay(c, cancel, inf, m.Config)
	var ln net.Listener
	if ln, err = rl.Listen(m.Config.Host, port); err != nil {
		cancel()
		return -1, nil, fmt.Errorf("relay on port %d: %w", port, err)
	}
	inst := &instance{Relay: rl, port: port, done: make(chan error, 1)}
	go func() { inst.done <- rl.Serve(ln) }()
	<-rl.started
	m.mx.Lock()
	i = len(m.instances)
	m.instances = append(m.instances, inst)
	m.mx.Unlock()
	log.I.F("relay %d listening on %s", i, rl.Addr)
	return
}

// StartRelays starts count instances on a contiguous run of ports from
// startPort. A port that fails is logged and skipped. With startPort 0 every
// instance gets a free port.
func (m *Manager) StartRelays(count, startPort int) (started int) {
	for n := 0; n < count; n++ {
		port := 0
		if startPort > 0 {
			port = startPort + n
		}
		if _, _, err := m.StartRelay(port); chk.E(err) {
			continue
		}
		started++
	}
	return
}

func (m *Manager) get(i int) *instance {
	m.mx.Lock()
	defer m.mx.Unlock()
	if i < 0 || i >= len(m.instances) {
		return nil
	}
	return m.instances[i]
}

// Relay returns instance i, or nil when there is none running.
func (m *Manager) Relay(i int) *Relay {
	if inst := m.get(i); inst != nil {
		return inst.Relay
	}
	return nil
}

// Store returns the event store of instance i, or nil.
func (m *Manager) Store(i int) eventstore.I {
	if rl := m.Relay(i); rl != nil {
		return rl.Store
	}
	return nil
}

// StopRelay shuts instance i down and waits for its server to return.
func (m *Manager) StopRelay(i int) (err error) {
	m.mx.Lock()
	if i < 0 || i >= len(m.instances) || m.instances[i] == nil {
		m.mx.Unlock()
		return fmt.Errorf("no relay running at index %d", i)
	}
	inst := m.instances[i]
	m.instances[i] = nil
	m.mx.Unlock()
	c, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	inst.Shutdown(c)
	select {
	case err = <-inst.done:
	case <-c.Done():
		err = c.Err()
	}
	log.I.F("relay %d on %s stopped", i, inst.Addr)
	return
}

// StopAll stops every running instance.
func (m *Manager) StopAll() {
	m.mx.Lock()
	n := len(m.instances)
	m.mx.Unlock()
	for i := 0; i < n; i++ {
		if m.get(i) == nil {
			continue
		}
		chk.E(m.StopRelay(i))
	}
	m.cancel()
}

// Count is the number of running instances.
func (m *Manager) Count() (n int) {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, inst := range m.instances {
		if inst != nil {
			n++
		}
	}
	return
}

// Addresses lists the bound address of every running instance in index
// order.
func (m *Manager) Addresses() (addrs []string) {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, inst := range m.instances {
		if inst != nil {
			addrs = append(addrs, inst.Addr)
		}
	}
	return
}

// URLs lists websocket URLs of the running instances. Wildcard listen
// addresses are given as the loopback address so the URLs can be dialed.
func (m *Manager) URLs() (urls []string) {
	for _, addr := range m.Addresses() {
		urls = append(urls, "ws://"+dialable(addr))
	}
	return
}

func dialable(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		if ip.To4() == nil {
			host = "::1"
		} else {
			host = "127.0.0.1"
		}
	}
	return net.JoinHostPort(host, port)
}

// Seed adds events to the store of every running instance without
// validation. It returns how many instances were seeded and how many events
// were given to each of them, which is the same for every store.
func (m *Manager) Seed(evs event.Ts) (relays, n int) {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, inst := range m.instances {
		if inst == nil {
			continue
		}
		took := SeedStore(inst.Store, evs)
		if relays == 0 {
			n = took
		}
		relays++
	}
	return
}

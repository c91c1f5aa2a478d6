// Package interrupt runs registered shutdown handlers once, on SIGINT, SIGTERM
// or a programmatic Request.
package interrupt

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
)

var log, _ = slog.New(os.Stderr)

type HandlerWithSource struct {
	Source string
	Fn     func()
}

var (
	requested atomic.Bool

	// signals is the list of signals that cause the interrupt
	signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

	startOnce sync.Once
	ch        = make(chan os.Signal, 1)
	// shutdownRequested is closed by the first Request.
	shutdownRequested = make(chan struct{})
	requestOnce       sync.Once

	// HandlersDone is closed after all interrupt handlers have run.
	HandlersDone = make(chan struct{})

	mx       sync.Mutex
	handlers []HandlerWithSource
)

// listener waits for a signal or a shutdown request and runs the handlers in
// reverse order of registration.
func listener() {
	select {
	case sig := <-ch:
		log.D.Ln("received interrupt signal", sig)
	case <-shutdownRequested:
		log.W.Ln("received shutdown request - shutting down...")
	}
	requested.Store(true)
	mx.Lock()
	hs := append([]HandlerWithSource(nil), handlers...)
	mx.Unlock()
	log.D.Ln("running interrupt callbacks", len(hs))
	for i := len(hs) - 1; i >= 0; i-- {
		log.D.Ln("running callback", i, hs[i].Source)
		hs[i].Fn()
	}
	log.D.Ln("interrupt handlers finished")
	close(HandlersDone)
}

func start() {
	startOnce.Do(func() {
		signal.Notify(ch, signals...)
		go listener()
	})
}

// AddHandler adds a handler to call on interrupt.
func AddHandler(handler func()) {
	_, loc, line, _ := runtime.Caller(1)
	msg := fmt.Sprintf("%s:%d", loc, line)
	log.D.Ln("handler added by:", msg)
	mx.Lock()
	handlers = append(handlers, HandlerWithSource{msg, handler})
	mx.Unlock()
	start()
}

// Request programmatically requests a shutdown.
func Request() {
	_, f, l, _ := runtime.Caller(1)
	log.D.Ln("interrupt requested", f, l, requested.Load())
	start()
	requestOnce.Do(func() { close(shutdownRequested) })
}

// Requested returns true if an interrupt has been requested
func Requested() bool {
	return requested.Load()
}

// Wait blocks until every handler has run.
func Wait() { <-HandlersDone }

// Package pipe connects app and host running in the same process.
package pipe

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/wire"
)

// New creates pair of connected windows. Messages posted by one are received by the other.
func New(appOrigin, hostOrigin string) (app, host *Window) {
	app = newWindow(appOrigin)
	host = newWindow(hostOrigin)
	app.peer = host
	host.peer = app
	return app, host
}

// Window is one end of the pipe.
type Window struct {
	origin string
	peer   *Window

	mu     sync.Mutex
	queue  []hostlink.Message
	signal chan struct{}
}

func newWindow(origin string) *Window {
	return &Window{
		origin: origin,
		signal: make(chan struct{}, 1),
	}
}

// Origin returns the origin of the window.
func (w *Window) Origin() string {
	return w.origin
}

// PostMessage delivers data to the peer if its origin matches targetOrigin. Otherwise message is
// silently discarded.
func (w *Window) PostMessage(data []byte, targetOrigin string) error {
	if targetOrigin != wire.AnyOrigin && targetOrigin != w.peer.origin {
		return nil
	}
	w.peer.deliver(hostlink.Message{
		Origin: w.origin,
		Data:   slices.Clone(data),
	})
	return nil
}

// Inject delivers message to this window as if it was posted from origin.
func (w *Window) Inject(origin string, data []byte) {
	w.deliver(hostlink.Message{
		Origin: origin,
		Data:   slices.Clone(data),
	})
}

// Receive returns the next message delivered to this window.
func (w *Window) Receive(ctx context.Context) (hostlink.Message, error) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			msg := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return msg, nil
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return hostlink.Message{}, errors.WithStack(ctx.Err())
		case <-w.signal:
		}
	}
}

func (w *Window) deliver(msg hostlink.Message) {
	w.mu.Lock()
	w.queue = append(w.queue, msg)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

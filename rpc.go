package hostlink

import (
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/hostlink/wire"
)

// send registers pc under a fresh id and transmits the call, or queues it if the handshake has
// not completed yet. pc may be nil for calls nobody waits for.
func (c *Client) send(name string, args []any, pc *pendingCall) (uint64, error) {
	c.s.mu.Lock()
	if c.s.state == StateNotStarted {
		c.s.mu.Unlock()
		return 0, errors.WithStack(ErrNotInitialized)
	}

	id := c.s.allocateID()
	if pc != nil {
		c.s.pending[id] = pc
		c.metrics.pending.Inc()
	}

	msg := outbound{
		ID:        id,
		Func:      name,
		Args:      args,
		Timestamp: time.Now().UnixMilli(),
	}

	if c.s.state != StateReady {
		c.s.queue = append(c.s.queue, msg)
		c.s.mu.Unlock()
		c.metrics.callsQueued.Inc()
		return id, nil
	}

	target := c.s.hostOrigin
	c.s.mu.Unlock()

	c.transmit(msg, target)
	return id, nil
}

// transmit posts the call. Failure completes the pending call, if any, with the error.
func (c *Client) transmit(msg outbound, target string) {
	if err := c.post(msg, target); err != nil {
		c.failPending(msg.ID, err)
	}
}

func (c *Client) post(msg outbound, target string) error {
	args, err := SerializeArgs(msg.Args)
	if err != nil {
		return errors.Wrapf(err, "serializing arguments of %q failed", msg.Func)
	}

	env := wire.NewRequest(msg.ID, msg.Func, args)
	env.Timestamp = msg.Timestamp
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.transport.Post(data, target); err != nil {
		return errors.Wrapf(err, "posting %q failed", msg.Func)
	}
	c.metrics.callsSent.Inc()
	return nil
}

func (c *Client) failPending(id uint64, err error) {
	c.s.mu.Lock()
	pc := c.s.pending[id]
	if pc != nil {
		delete(c.s.pending, id)
		c.metrics.pending.Dec()
	}
	c.s.mu.Unlock()

	if pc != nil {
		pc.fail(err)
	}
}

// Send calls function of the host. Future completes with the arguments of the reply.
func (c *Client) Send(name string, args ...any) (*Future[[]any], error) {
	f := newFuture[[]any]()
	id, err := c.send(name, args, &pendingCall{
		resolve: func(env *wire.Envelope, _ string) {
			f.complete(env.Args, nil)
		},
		fail: func(err error) {
			f.complete(nil, err)
		},
	})
	if err != nil {
		return nil, err
	}
	f.release = func() { c.release(id) }
	return f, nil
}

// SendWithCallback calls function of the host and passes every reply to callback. Partial
// replies keep the call registered until the final one arrives. Transmission failures are not
// reported to callback.
func (c *Client) SendWithCallback(name string, args []any, callback func(args []any, partial bool)) error {
	_, err := c.send(name, args, &pendingCall{
		resolve: func(env *wire.Envelope, _ string) {
			callback(env.Args, env.IsPartialResponse)
		},
		fail:    func(error) {},
		partial: true,
	})
	return err
}

// Call calls function of the host following the convention where the first reply argument is
// the error slot and the second one carries the result.
//
// A recognized host error in the error slot fails the call with that error as is, before
// handler sees anything. Otherwise the result, or nil if absent, is validated and deserialized
// by handler.
func Call[T any](c *Client, name string, args []any, handler ResponseHandler[T]) (*Future[T], error) {
	f := newFuture[T]()
	id, err := c.send(name, args, &pendingCall{
		resolve: func(env *wire.Envelope, _ string) {
			f.complete(handleResponse(env.Args, handler))
		},
		fail: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	})
	if err != nil {
		return nil, err
	}
	f.release = func() { c.release(id) }
	return f, nil
}

func handleResponse[T any](args []any, handler ResponseHandler[T]) (T, error) {
	var zero T
	if len(args) > 0 {
		if sdkErr, ok := wire.AsSdkError(args[0]); ok {
			return zero, sdkErr
		}
	}

	var raw any
	if len(args) > 1 {
		raw = args[1]
	}
	if !handler.Validate(raw) {
		return zero, errors.WithStack(ErrInvalidResponse)
	}
	return handler.Deserialize(raw)
}

// SendAndUnwrap calls function of the host and returns the first argument of the reply.
func SendAndUnwrap[T any](c *Client, name string, args ...any) (*Future[T], error) {
	return chain(c, name, args, func(reply []any) (T, error) {
		var raw any
		if len(reply) > 0 {
			raw = reply[0]
		}
		return Convert[T](raw)
	})
}

// SendAndHandleSdkError calls function of the host replying with [error, result]. Any truthy
// error slot fails the call.
func SendAndHandleSdkError[T any](c *Client, name string, args ...any) (*Future[T], error) {
	return chain(c, name, args, func(reply []any) (T, error) {
		var zero T
		if len(reply) > 0 && truthy(reply[0]) {
			if sdkErr, ok := wire.AsSdkError(reply[0]); ok {
				return zero, sdkErr
			}
			return zero, &HostError{Reason: reply[0]}
		}

		var raw any
		if len(reply) > 1 {
			raw = reply[1]
		}
		return Convert[T](raw)
	})
}

// SendAndHandleStatusAndReason calls function of the host replying with [status, reason].
// False status fails the call with reason, or with defaultReason if host gave none.
func (c *Client) SendAndHandleStatusAndReason(name, defaultReason string, args ...any) (*Future[struct{}], error) {
	return chain(c, name, args, func(reply []any) (struct{}, error) {
		if len(reply) > 0 && truthy(reply[0]) {
			return struct{}{}, nil
		}

		reason := defaultReason
		if len(reply) > 1 {
			if r, ok := reply[1].(string); ok && r != "" {
				reason = r
			}
		}
		return struct{}{}, &HostError{Reason: reason}
	})
}

func chain[T any](c *Client, name string, args []any, convert func(reply []any) (T, error)) (*Future[T], error) {
	f := newFuture[T]()
	id, err := c.send(name, args, &pendingCall{
		resolve: func(env *wire.Envelope, _ string) {
			f.complete(convert(env.Args))
		},
		fail: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	})
	if err != nil {
		return nil, err
	}
	f.release = func() { c.release(id) }
	return f, nil
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	default:
		return true
	}
}

// EnsureInitializeCalled returns ErrNotInitialized if Initialize has never been called.
func (c *Client) EnsureInitializeCalled() error {
	if c.State() == StateNotStarted {
		return errors.WithStack(ErrNotInitialized)
	}
	return nil
}

// EnsureInitialized returns error if the handshake has not completed or, when contexts are
// given, if the current frame context is not one of them.
func (c *Client) EnsureInitialized(contexts ...wire.FrameContext) error {
	c.s.mu.Lock()
	state := c.s.state
	actual := c.s.host.FrameContext
	c.s.mu.Unlock()

	if state != StateReady {
		return errors.WithStack(ErrNotInitialized)
	}
	if len(contexts) > 0 && !slices.Contains(contexts, actual) {
		return errors.WithStack(&WrongContextError{
			Allowed: contexts,
			Actual:  actual,
		})
	}
	return nil
}

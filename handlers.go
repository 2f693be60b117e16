package hostlink

import (
	"context"

	"go.uber.org/zap"

	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/logger"
)

// Handler receives arguments of an event sent by the host.
type Handler func(args []any)

type handlerOptions struct {
	registrationMessage bool
	autoReregister      bool
	contexts            []wire.FrameContext
}

// HandlerOption configures handler registration.
type HandlerOption func(o *handlerOptions)

// WithoutRegistrationMessage skips notifying the host. Used for events the host always sends.
func WithoutRegistrationMessage() HandlerOption {
	return func(o *handlerOptions) {
		o.registrationMessage = false
	}
}

// WithAutoReregister sends the registration message again after every delivery.
func WithAutoReregister() HandlerOption {
	return func(o *handlerOptions) {
		o.autoReregister = true
	}
}

// WithContextGuard allows registration only in the given frame contexts.
func WithContextGuard(contexts ...wire.FrameContext) HandlerOption {
	return func(o *handlerOptions) {
		o.contexts = contexts
	}
}

// RegisterHandler stores handler for event name replacing the previous one.
func (c *Client) RegisterHandler(name string, handler Handler, opts ...HandlerOption) error {
	options := handlerOptions{
		registrationMessage: true,
	}
	for _, o := range opts {
		o(&options)
	}

	if len(options.contexts) > 0 {
		if err := c.EnsureInitialized(options.contexts...); err != nil {
			return err
		}
	}
	if options.registrationMessage {
		if err := c.EnsureInitializeCalled(); err != nil {
			return err
		}
	}

	c.s.mu.Lock()
	c.s.handlers[name] = handlerEntry{
		Handler:        handler,
		AutoReregister: options.autoReregister,
	}
	c.s.mu.Unlock()

	if !options.registrationMessage {
		return nil
	}
	_, err := c.send(wire.FuncRegisterHandler, []any{name}, nil)
	return err
}

// RemoveHandler forgets handler of event name. Host is not notified.
func (c *Client) RemoveHandler(name string) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	delete(c.s.handlers, name)
}

// HandlerExists reports whether handler for event name is registered.
func (c *Client) HandlerExists(name string) bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	_, exists := c.s.handlers[name]
	return exists
}

func (c *Client) deliverEvent(ctx context.Context, env *wire.Envelope) bool {
	c.s.mu.Lock()
	entry, exists := c.s.handlers[env.Func]
	c.s.mu.Unlock()

	if !exists {
		return false
	}

	c.metrics.eventsDispatched.Inc()
	entry.Handler(env.Args)

	if entry.AutoReregister {
		if _, err := c.send(wire.FuncRegisterHandler, []any{env.Func}, nil); err != nil {
			logger.Get(ctx).Error("Re-registering handler failed", zap.String("func", env.Func), zap.Error(err))
		}
	}
	return true
}

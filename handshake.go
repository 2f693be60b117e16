package hostlink

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/wire"
)

// Initialize starts the handshake with the host. validOrigins are added to trusted origins.
//
// The first call sends the handshake. Calls made while it is in flight return the same future,
// calls made after it completed return completed future without contacting the host.
func (c *Client) Initialize(validOrigins ...string) *Future[HostContext] {
	c.s.validator.Add(validOrigins...)

	c.s.mu.Lock()
	switch c.s.state {
	case StateReady:
		host := c.s.host
		c.s.mu.Unlock()
		return completedFuture(host, nil)
	case StateHandshakeSent:
		f := c.s.initFuture
		c.s.mu.Unlock()
		return f
	}

	f := newFuture[HostContext]()
	c.s.state = StateHandshakeSent
	c.s.initFuture = f

	id := c.s.allocateID()
	c.s.pending[id] = &pendingCall{
		resolve: func(env *wire.Envelope, origin string) {
			c.completeHandshake(f, env.Args, origin)
		},
		fail: func(err error) {
			c.failHandshake(f, err)
		},
	}
	c.metrics.pending.Inc()
	c.s.mu.Unlock()

	// Handshake is never queued, it is what makes the queue drainable.
	c.transmit(outbound{
		ID:        id,
		Func:      wire.FuncInitialize,
		Args:      []any{c.config.SDKVersion, capability.LatestAPIVersion},
		Timestamp: time.Now().UnixMilli(),
	}, wire.AnyOrigin)

	return f
}

func (c *Client) completeHandshake(f *Future[HostContext], args []any, origin string) {
	host, err := parseHandshakeReply(args)
	if err != nil {
		c.failHandshake(f, err)
		return
	}

	c.s.mu.Lock()
	if c.s.initFuture != f {
		c.s.mu.Unlock()
		return
	}
	c.s.hostOrigin = origin
	c.s.host = host
	c.s.mu.Unlock()

	c.drainQueue(f)
	f.complete(host, nil)
}

// drainQueue transmits queued calls in order. State stays HandshakeSent until the queue is empty
// so calls issued meanwhile are appended behind the queued ones.
func (c *Client) drainQueue(f *Future[HostContext]) {
	for {
		c.s.mu.Lock()
		if c.s.initFuture != f {
			c.s.mu.Unlock()
			return
		}
		if len(c.s.queue) == 0 {
			c.s.queue = nil
			c.s.state = StateReady
			c.s.mu.Unlock()
			return
		}

		msg := c.s.queue[0]
		c.s.queue = c.s.queue[1:]
		target := c.s.hostOrigin
		c.s.mu.Unlock()

		c.transmit(msg, target)
	}
}

// failHandshake returns client to NotStarted. Queued calls fail with err.
func (c *Client) failHandshake(f *Future[HostContext], err error) {
	c.s.mu.Lock()
	if c.s.initFuture != f {
		c.s.mu.Unlock()
		f.complete(HostContext{}, err)
		return
	}

	queued := make([]*pendingCall, 0, len(c.s.queue))
	for _, msg := range c.s.queue {
		if pc := c.s.pending[msg.ID]; pc != nil {
			queued = append(queued, pc)
			delete(c.s.pending, msg.ID)
			c.metrics.pending.Dec()
		}
	}
	c.s.queue = nil
	c.s.state = StateNotStarted
	c.s.initFuture = nil
	c.s.mu.Unlock()

	for _, pc := range queued {
		pc.fail(err)
	}
	f.complete(HostContext{}, err)
}

// parseHandshakeReply decodes [frameContext, hostClientType, runtimeConfig, clientSupportedSDKVersion].
// Hosts running older protocol versions send fewer arguments or put the SDK version where
// runtime config is expected.
func parseHandshakeReply(args []any) (HostContext, error) {
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	frameContext, _ := arg(0).(string)
	if !wire.FrameContext(frameContext).Valid() {
		return HostContext{}, errors.Errorf("handshake reply carries invalid frame context %v", arg(0))
	}

	host := HostContext{
		FrameContext:     wire.FrameContext(frameContext),
		HostClientType:   wire.HostClientWeb,
		ClientSDKVersion: capability.DefaultClientSDKVersion,
	}
	if clientType, ok := arg(1).(string); ok && clientType != "" {
		host.HostClientType = wire.HostClientType(clientType)
	}
	if version, ok := arg(3).(string); ok {
		if _, valid := capability.CompareVersions(version, version); valid {
			host.ClientSDKVersion = version
		}
	}

	if runtime, ok := parseRuntime(arg(2)); ok {
		host.Runtime = runtime
		return host, nil
	}

	if version, ok := arg(2).(string); ok {
		if _, valid := capability.CompareVersions(version, version); valid {
			host.ClientSDKVersion = version
			if runtime, ok := parseRuntime(arg(3)); ok {
				host.Runtime = runtime
				return host, nil
			}
		}
	}

	host.Runtime = capability.BackCompatRuntime(host.ClientSDKVersion, host.HostClientType)
	return host, nil
}

func parseRuntime(v any) (capability.Runtime, bool) {
	var data []byte
	switch v := v.(type) {
	case string:
		data = []byte(v)
	case map[string]any:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return capability.Runtime{}, false
		}
	default:
		return capability.Runtime{}, false
	}

	runtime, err := capability.Parse(data)
	if err != nil {
		return capability.Runtime{}, false
	}
	return runtime, true
}

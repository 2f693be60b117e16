package hostlink

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/origin"
	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/logger"
)

// Config is the configuration of the client.
type Config struct {
	// SDKVersion is reported to the host during the handshake. Version is used if empty.
	SDKVersion string

	// HostOrigin is the origin of the host. It is always trusted. Required in frameless mode
	// because bridges carry no origin.
	HostOrigin string

	// ValidOrigins are additional trusted origins. Entries may use "*." as the first label.
	ValidOrigins []string

	// Metrics registers client metrics if set.
	Metrics prometheus.Registerer
}

// Client talks to the host on behalf of the app.
type Client struct {
	config    Config
	transport Transport
	metrics   *metrics
	s         *session

	sendMu sync.Mutex
}

// New creates new client.
func New(config Config, transport Transport) (*Client, error) {
	if config.SDKVersion == "" {
		config.SDKVersion = Version
	}
	if transport.Mode() == ModeFrameless && config.HostOrigin == "" {
		return nil, errors.New("host origin must be set in frameless mode")
	}

	m, err := newMetrics(config.Metrics)
	if err != nil {
		return nil, err
	}

	validator := origin.New(config.HostOrigin)
	validator.Add(config.ValidOrigins...)

	return &Client{
		config:    config,
		transport: transport,
		metrics:   m,
		s:         newSession(validator),
	}, nil
}

// Mode returns the delivery mode of the transport.
func (c *Client) Mode() Mode {
	return c.transport.Mode()
}

// IsFrameless reports whether host is reached through a bridge.
func (c *Client) IsFrameless() bool {
	return c.transport.Mode() == ModeFrameless
}

// Run receives inbound traffic and dispatches it until ctx is canceled or transport fails.
func (c *Client) Run(ctx context.Context) error {
	log := logger.Get(ctx)
	log.Info("Client started", zap.String("mode", c.transport.Mode().String()))

	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			return errors.Wrap(err, "receiving message failed")
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Client) dispatch(ctx context.Context, msg Inbound) {
	log := logger.Get(ctx)

	if !c.s.validator.IsValid(msg.Origin) {
		log.Debug("Message from untrusted origin dropped", zap.String("origin", msg.Origin))
		c.metrics.dropped.WithLabelValues(dropInvalidOrigin).Inc()
		return
	}

	env, err := wire.Decode(msg.Data)
	if err != nil {
		log.Debug("Malformed message dropped", zap.String("origin", msg.Origin), zap.Error(err))
		c.metrics.dropped.WithLabelValues(dropMalformed).Inc()
		return
	}

	if env.ID != nil {
		if pc := c.takePending(*env.ID, env.IsPartialResponse); pc != nil {
			c.metrics.repliesResolved.Inc()
			pc.resolve(env, msg.Origin)
			return
		}
	}

	if env.Func != "" {
		if c.deliverEvent(ctx, env) {
			return
		}
	}

	fields := []zap.Field{zap.String("func", env.Func), zap.String("origin", msg.Origin)}
	if env.ID != nil {
		fields = append(fields, zap.Uint64("id", *env.ID))
	}
	log.Debug("Unmatched message dropped", fields...)
	c.metrics.dropped.WithLabelValues(dropUnmatched).Inc()
}

// takePending returns the entry waiting for reply id. Entry stays registered if it accepts
// partial responses and the reply is partial.
func (c *Client) takePending(id uint64, partial bool) *pendingCall {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	pc := c.s.pending[id]
	if pc == nil {
		return nil
	}
	if !pc.partial || !partial {
		delete(c.s.pending, id)
		c.metrics.pending.Dec()
	}
	return pc
}

// release forgets pending call without completing it.
func (c *Client) release(id uint64) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, exists := c.s.pending[id]; exists {
		delete(c.s.pending, id)
		c.metrics.pending.Dec()
	}
}

// Reset fails every pending call and returns client to the state it had right after New.
func (c *Client) Reset() {
	pending := c.s.reset()
	c.s.validator.Add(c.config.ValidOrigins...)
	c.metrics.pending.Set(0)

	for _, pc := range pending {
		pc.fail(errors.WithStack(ErrSessionReset))
	}
}

// State returns the state of the handshake.
func (c *Client) State() State {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	return c.s.state
}

// HostContext returns what the handshake negotiated. It is zero until the client is ready.
func (c *Client) HostContext() HostContext {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	return c.s.host
}

// FrameContext returns the frame context the app runs in.
func (c *Client) FrameContext() wire.FrameContext {
	return c.HostContext().FrameContext
}

// HostClientType returns the client platform of the host.
func (c *Client) HostClientType() wire.HostClientType {
	return c.HostContext().HostClientType
}

// ClientSDKVersion returns the SDK version supported by the host.
func (c *Client) ClientSDKVersion() string {
	return c.HostContext().ClientSDKVersion
}

// Runtime returns a copy of the capability descriptor of the host.
func (c *Client) Runtime() capability.Runtime {
	return c.HostContext().Runtime.Clone()
}

// IsCurrentSDKVersionAtLeast reports whether the host supports SDK version required.
// If required is not given, capability.DefaultClientSDKVersion is assumed.
func (c *Client) IsCurrentSDKVersionAtLeast(required ...string) bool {
	r := capability.DefaultClientSDKVersion
	if len(required) > 0 {
		r = required[0]
	}
	return capability.AtLeast(c.ClientSDKVersion(), r)
}

// IsHostClientMobile reports whether the host runs on a phone or tablet.
func (c *Client) IsHostClientMobile() bool {
	return c.HostClientType().Mobile()
}

// EnsureMobileAPISupported returns error if the host runs on mobile platform older than
// requiredVersion, or on platform which is not mobile at all.
func (c *Client) EnsureMobileAPISupported(requiredVersion string) error {
	if !c.IsHostClientMobile() {
		return errors.WithStack(ErrNotSupportedOnPlatform)
	}
	if !c.IsCurrentSDKVersionAtLeast(requiredVersion) {
		return errors.WithStack(ErrOldPlatform)
	}
	return nil
}

// Origins returns trusted origins other than the host origin.
func (c *Client) Origins() []string {
	return c.s.validator.Origins()
}

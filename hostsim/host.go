// Package hostsim simulates the host side of the protocol.
package hostsim

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/logger"
)

const receivedBuffer = 1024

// Conn is the host end of the channel to the app. Send carries envelope to the app.
type Conn interface {
	Send(envelope []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// WindowConn adapts window to Conn. Messages are posted to targetOrigin.
func WindowConn(w hostlink.Window, targetOrigin string) Conn {
	return &windowConn{
		window:       w,
		targetOrigin: targetOrigin,
	}
}

type windowConn struct {
	window       hostlink.Window
	targetOrigin string
}

func (c *windowConn) Send(envelope []byte) error {
	return c.window.PostMessage(envelope, c.targetOrigin)
}

func (c *windowConn) Receive(ctx context.Context) ([]byte, error) {
	msg, err := c.window.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

// HandlerFunc computes reply arguments of a call.
type HandlerFunc func(args []any) []any

// Host answers calls of a single app.
type Host struct {
	config    Config
	conn      Conn
	sessionID uuid.UUID

	sendMu sync.Mutex

	mu         sync.Mutex
	handlers   map[string]HandlerFunc
	silenced   map[string]bool
	registered map[string]bool

	recvCh chan *wire.Envelope
}

// New creates simulated host talking over conn.
func New(config Config, conn Conn) *Host {
	return &Host{
		config:     config,
		conn:       conn,
		sessionID:  uuid.New(),
		handlers:   map[string]HandlerFunc{},
		silenced:   map[string]bool{},
		registered: map[string]bool{},
		recvCh:     make(chan *wire.Envelope, receivedBuffer),
	}
}

// SessionID identifies the host in logs.
func (h *Host) SessionID() uuid.UUID {
	return h.sessionID
}

// Handle sets function computing replies to calls of name. It takes precedence over canned
// results.
func (h *Host) Handle(name string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.handlers[name] = fn
}

// Silence stops host from replying to calls of name. Tests reply to them using Reply.
func (h *Host) Silence(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.silenced[name] = true
}

// Registered reports whether app asked for event name.
func (h *Host) Registered(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.registered[name]
}

// Received returns channel delivering envelopes received from the app. Envelopes are recorded
// only while the channel has room, replies never wait for a reader.
func (h *Host) Received() <-chan *wire.Envelope {
	return h.recvCh
}

// Run processes calls of the app until ctx is canceled.
func (h *Host) Run(ctx context.Context) error {
	log := logger.Get(ctx).With(zap.Stringer("session", h.sessionID))
	log.Info("Host started", zap.String("origin", h.config.Origin))

	for {
		data, err := h.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errors.WithStack(ctx.Err())
			}
			return errors.Wrap(err, "receiving message failed")
		}

		env, err := wire.Decode(data)
		if err != nil {
			log.Debug("Malformed message ignored", zap.Error(err))
			continue
		}

		if err := h.process(env); err != nil {
			log.Error("Processing call failed", zap.String("func", env.Func), zap.Error(err))
		}

		select {
		case h.recvCh <- env:
		default:
			log.Debug("Received buffer is full, envelope not recorded", zap.String("func", env.Func))
		}
	}
}

func (h *Host) process(env *wire.Envelope) error {
	if env.ID == nil {
		return nil
	}

	h.mu.Lock()
	if env.Func == wire.FuncRegisterHandler {
		if name, ok := env.Arg(0).(string); ok {
			h.registered[name] = true
		}
	}
	silenced := h.silenced[env.Func]
	handler := h.handlers[env.Func]
	h.mu.Unlock()

	switch {
	case silenced:
		return nil
	case handler != nil:
		return h.Reply(*env.ID, handler(env.Args), false)
	case env.Func == wire.FuncInitialize:
		return h.Reply(*env.ID, h.handshakeReply(), false)
	case env.Func == wire.FuncRegisterHandler:
		return nil
	}

	if result, exists := h.config.Results[env.Func]; exists {
		return h.Reply(*env.ID, result, false)
	}
	return h.Reply(*env.ID, []any{wire.SdkError{
		ErrorCode: wire.NotSupportedOnPlatform,
		Message:   env.Func + " is not implemented",
	}}, false)
}

func (h *Host) handshakeReply() []any {
	if h.config.LegacyReply {
		return []any{h.config.FrameContext}
	}

	var runtime any
	if h.config.Runtime != nil {
		data, err := json.Marshal(h.config.Runtime)
		if err == nil {
			runtime = string(data)
		}
	}
	return []any{
		h.config.FrameContext,
		h.config.HostClientType,
		runtime,
		h.config.ClientSupportedSDKVersion,
	}
}

// Reply sends reply to the call with id.
func (h *Host) Reply(id uint64, args []any, partial bool) error {
	return h.send(wire.NewResponse(id, args, partial))
}

// Emit sends event to the app.
func (h *Host) Emit(name string, args ...any) error {
	return h.send(wire.NewEvent(name, args))
}

func (h *Host) send(env *wire.Envelope) error {
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	return h.conn.Send(data)
}

package hostlink

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Mode is the delivery mode of a transport, fixed for the session.
type Mode int

// Delivery modes.
const (
	// ModeFramed is used when a live reference to the host context exists.
	ModeFramed Mode = iota

	// ModeFrameless is used when the host is reachable only through a bridge of the hosting runtime.
	ModeFrameless
)

func (m Mode) String() string {
	if m == ModeFrameless {
		return "frameless"
	}
	return "framed"
}

// Inbound is a message received from the other side together with its origin.
type Inbound struct {
	Origin string
	Data   []byte
}

// Transport delivers encoded envelopes to the host and receives its traffic.
type Transport interface {
	Mode() Mode

	// Post delivers data to the host. targetOrigin restricts the recipient; wire.AnyOrigin
	// means no restriction.
	Post(data []byte, targetOrigin string) error

	// Receive blocks until the next inbound message arrives or ctx is done.
	Receive(ctx context.Context) (Inbound, error)
}

// Message is what a window receives.
type Message struct {
	Origin string
	Data   []byte
}

// Window is a live reference to the host context.
type Window interface {
	// PostMessage delivers data if the window's origin matches targetOrigin.
	PostMessage(data []byte, targetOrigin string) error

	// Receive returns the next message posted to the current context by any sender.
	Receive(ctx context.Context) (Message, error)
}

// Bridge is the indirect channel provided by a hosting runtime which has no window reference.
type Bridge interface {
	// FramelessPostMessage hands serialized envelope to the hosting runtime.
	FramelessPostMessage(data string) error

	// Receive returns the next native message. The envelope is nested under "data".
	Receive(ctx context.Context) ([]byte, error)
}

// NewFramedTransport creates transport posting envelopes directly to w.
func NewFramedTransport(w Window) Transport {
	return &framedTransport{window: w}
}

type framedTransport struct {
	window Window
}

func (t *framedTransport) Mode() Mode {
	return ModeFramed
}

func (t *framedTransport) Post(data []byte, targetOrigin string) error {
	return t.window.PostMessage(data, targetOrigin)
}

func (t *framedTransport) Receive(ctx context.Context) (Inbound, error) {
	msg, err := t.window.Receive(ctx)
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{Origin: msg.Origin, Data: msg.Data}, nil
}

// NewFramelessTransport creates transport using bridge b. Everything received through the bridge
// is attributed to hostOrigin.
func NewFramelessTransport(b Bridge, hostOrigin string) Transport {
	return &framelessTransport{
		bridge:     b,
		hostOrigin: hostOrigin,
	}
}

type framelessTransport struct {
	bridge     Bridge
	hostOrigin string
}

func (t *framelessTransport) Mode() Mode {
	return ModeFrameless
}

func (t *framelessTransport) Post(data []byte, _ string) error {
	return t.bridge.FramelessPostMessage(string(data))
}

func (t *framelessTransport) Receive(ctx context.Context) (Inbound, error) {
	for {
		raw, err := t.bridge.Receive(ctx)
		if err != nil {
			return Inbound{}, err
		}

		data, err := UnwrapNativeMessage(raw)
		if err != nil {
			// Not an envelope carrier, nothing to dispatch.
			continue
		}
		return Inbound{Origin: t.hostOrigin, Data: data}, nil
	}
}

// WrapNativeMessage nests envelope the way bridges deliver it.
func WrapNativeMessage(envelope []byte) ([]byte, error) {
	data, err := json.Marshal(struct {
		Data json.RawMessage `json:"data"`
	}{Data: envelope})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// UnwrapNativeMessage extracts envelope from native message. Some runtimes deliver the envelope
// as a JSON string, others as an object.
func UnwrapNativeMessage(raw []byte) ([]byte, error) {
	var msg struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.WithStack(err)
	}

	data := bytes.TrimSpace(msg.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errors.New("native message carries no data")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, errors.WithStack(err)
		}
		return []byte(s), nil
	}
	return data, nil
}

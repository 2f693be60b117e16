package wire

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Well-known function names used by the protocol itself.
const (
	FuncInitialize      = "initialize"
	FuncRegisterHandler = "registerHandler"
)

// AnyOrigin is the target origin used when the destination origin is not known yet.
const AnyOrigin = "*"

// Envelope is the unit exchanged between the app and the host.
//
// ID is set on calls and echoed on replies. Event notifications carry Func and no ID.
type Envelope struct {
	ID                *uint64 `json:"id,omitempty"`
	Func              string  `json:"func,omitempty"`
	Args              []any   `json:"args"`
	Timestamp         int64   `json:"timestamp,omitempty"`
	IsPartialResponse bool    `json:"isPartialResponse,omitempty"`
}

// NewRequest creates call envelope.
func NewRequest(id uint64, fn string, args []any) *Envelope {
	if args == nil {
		args = []any{}
	}
	return &Envelope{
		ID:        &id,
		Func:      fn,
		Args:      args,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewResponse creates reply envelope for the call with the given id.
func NewResponse(id uint64, args []any, partial bool) *Envelope {
	if args == nil {
		args = []any{}
	}
	return &Envelope{
		ID:                &id,
		Args:              args,
		IsPartialResponse: partial,
	}
}

// NewEvent creates event envelope without id.
func NewEvent(fn string, args []any) *Envelope {
	if args == nil {
		args = []any{}
	}
	return &Envelope{
		Func: fn,
		Args: args,
	}
}

// Encode marshals envelope to JSON.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// Decode unmarshals envelope from JSON.
func Decode(data []byte) (*Envelope, error) {
	var raw struct {
		ID                json.RawMessage `json:"id"`
		Func              *string         `json:"func"`
		Args              json.RawMessage `json:"args"`
		Timestamp         json.Number     `json:"timestamp"`
		IsPartialResponse bool            `json:"isPartialResponse"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WithStack(err)
	}

	env := &Envelope{
		IsPartialResponse: raw.IsPartialResponse,
	}
	if raw.Func != nil {
		env.Func = *raw.Func
	}
	if raw.Timestamp != "" {
		if ts, err := raw.Timestamp.Int64(); err == nil {
			env.Timestamp = ts
		}
	}

	// Ids which are not non-negative integers are treated as absent.
	if len(raw.ID) > 0 {
		var id uint64
		if err := json.Unmarshal(raw.ID, &id); err == nil {
			env.ID = &id
		}
	}

	if env.ID == nil && env.Func == "" {
		return nil, errors.New("envelope carries neither id nor func")
	}

	env.Args = []any{}
	if len(raw.Args) > 0 && string(raw.Args) != "null" {
		if err := json.Unmarshal(raw.Args, &env.Args); err != nil {
			return nil, errors.Wrap(err, "decoding envelope arguments failed")
		}
	}

	return env, nil
}

// Arg returns positional argument or nil if absent.
func (e *Envelope) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

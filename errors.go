package hostlink

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/outofforest/hostlink/wire"
)

var (
	// ErrNotInitialized is returned when a call is made before Initialize.
	ErrNotInitialized = errors.New("library has not yet been initialized")

	// ErrNotSupportedOnPlatform is returned by namespaces whose capability is missing in the descriptor.
	ErrNotSupportedOnPlatform = wire.SdkError{ErrorCode: wire.NotSupportedOnPlatform}

	// ErrOldPlatform is returned when the host is too old for the requested API.
	ErrOldPlatform = wire.SdkError{ErrorCode: wire.OldPlatform}

	// ErrInvalidResponse is returned when the response handler rejects a reply.
	ErrInvalidResponse = errors.New("invalid response received from host")

	// ErrNotTransportSafe is returned when an argument can't be carried to the host.
	ErrNotTransportSafe = errors.New("argument is not transport safe")

	// ErrSessionReset is returned for calls pending while the session was reset.
	ErrSessionReset = errors.New("session has been reset")
)

// WrongContextError is returned when a call is not allowed in the current frame context.
type WrongContextError struct {
	Allowed []wire.FrameContext
	Actual  wire.FrameContext
}

func (e *WrongContextError) Error() string {
	allowed, _ := json.Marshal(e.Allowed)
	return fmt.Sprintf("call is only allowed in following contexts: %s, current context: %q", allowed, e.Actual)
}

// HostError is returned by legacy call conventions when the host reports an error which is not
// a recognized SdkError.
type HostError struct {
	Reason any
}

func (e *HostError) Error() string {
	if s, ok := e.Reason.(string); ok {
		return s
	}
	return fmt.Sprintf("host reported error: %v", e.Reason)
}

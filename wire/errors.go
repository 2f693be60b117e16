package wire

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ErrorCode identifies the class of error reported by the host.
type ErrorCode int

// Error codes reported by the host.
const (
	NotSupportedOnPlatform       ErrorCode = 100
	FileNotFound                 ErrorCode = 404
	InternalError                ErrorCode = 500
	NotSupportedInCurrentContext ErrorCode = 501
	PermissionDenied             ErrorCode = 1000
	NetworkError                 ErrorCode = 2000
	NoHWSupport                  ErrorCode = 3000
	InvalidArguments             ErrorCode = 4000
	UnauthorizedUserOperation    ErrorCode = 5000
	InsufficientResources        ErrorCode = 6000
	Throttle                     ErrorCode = 7000
	UserAbort                    ErrorCode = 8000
	OperationTimedOut            ErrorCode = 8001
	OldPlatform                  ErrorCode = 9000
	SizeExceeded                 ErrorCode = 10000
)

var errorCodeNames = map[ErrorCode]string{
	NotSupportedOnPlatform:       "NOT_SUPPORTED_ON_PLATFORM",
	FileNotFound:                 "FILE_NOT_FOUND",
	InternalError:                "INTERNAL_ERROR",
	NotSupportedInCurrentContext: "NOT_SUPPORTED_IN_CURRENT_CONTEXT",
	PermissionDenied:             "PERMISSION_DENIED",
	NetworkError:                 "NETWORK_ERROR",
	NoHWSupport:                  "NO_HW_SUPPORT",
	InvalidArguments:             "INVALID_ARGUMENTS",
	UnauthorizedUserOperation:    "UNAUTHORIZED_USER_OPERATION",
	InsufficientResources:        "INSUFFICIENT_RESOURCES",
	Throttle:                     "THROTTLE",
	UserAbort:                    "USER_ABORT",
	OperationTimedOut:            "OPERATION_TIMED_OUT",
	OldPlatform:                  "OLD_PLATFORM",
	SizeExceeded:                 "SIZE_EXCEEDED",
}

var errorCodesByName = func() map[string]ErrorCode {
	m := make(map[string]ErrorCode, len(errorCodeNames))
	for code, name := range errorCodeNames {
		m[name] = code
	}
	return m
}()

// Known reports whether code belongs to the recognized enumeration.
func (c ErrorCode) Known() bool {
	_, ok := errorCodeNames[c]
	return ok
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// UnmarshalJSON accepts both numeric codes and their names.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		code, ok := errorCodesByName[name]
		if !ok {
			return errors.Errorf("unknown error code %q", name)
		}
		*c = code
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.WithStack(err)
	}
	*c = ErrorCode(n)
	return nil
}

// SdkError is the structured error reported by the host inside a reply.
type SdkError struct {
	ErrorCode ErrorCode `json:"errorCode"`
	Message   string    `json:"message,omitempty"`
}

func (e SdkError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("host error %s", e.ErrorCode)
	}
	return fmt.Sprintf("host error %s: %s", e.ErrorCode, e.Message)
}

// AsSdkError recognizes the host error shape in a decoded argument.
//
// The value must be an object with an errorCode from the known enumeration and, optionally,
// a string message. Anything else is not an error.
func AsSdkError(v any) (SdkError, bool) {
	switch e := v.(type) {
	case SdkError:
		return e, e.ErrorCode.Known()
	case *SdkError:
		if e == nil {
			return SdkError{}, false
		}
		return *e, e.ErrorCode.Known()
	case map[string]any:
		rawCode, exists := e["errorCode"]
		if !exists {
			return SdkError{}, false
		}

		var code ErrorCode
		switch c := rawCode.(type) {
		case float64:
			if c != float64(int(c)) {
				return SdkError{}, false
			}
			code = ErrorCode(int(c))
		case int:
			code = ErrorCode(c)
		case string:
			var ok bool
			if code, ok = errorCodesByName[c]; !ok {
				return SdkError{}, false
			}
		default:
			return SdkError{}, false
		}
		if !code.Known() {
			return SdkError{}, false
		}

		sdkErr := SdkError{ErrorCode: code}
		if rawMsg, exists := e["message"]; exists && rawMsg != nil {
			msg, ok := rawMsg.(string)
			if !ok {
				return SdkError{}, false
			}
			sdkErr.Message = msg
		}
		return sdkErr, true
	default:
		return SdkError{}, false
	}
}

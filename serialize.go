package hostlink

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// Serializable is implemented by arguments which know how to turn themselves into plain data.
type Serializable interface {
	Serialize() any
}

// ResponseHandler checks and converts a raw reply into the typed result of a call.
type ResponseHandler[T any] interface {
	Validate(raw any) bool
	Deserialize(raw any) (T, error)
}

// SimpleTypeResponseHandler accepts any reply and converts it to T.
type SimpleTypeResponseHandler[T any] struct{}

// Validate always succeeds.
func (SimpleTypeResponseHandler[T]) Validate(any) bool {
	return true
}

// Deserialize returns raw if it is already T, otherwise decodes it into T.
func (SimpleTypeResponseHandler[T]) Deserialize(raw any) (T, error) {
	return Convert[T](raw)
}

// ResponseHandlerFuncs builds response handler from a pair of functions.
type ResponseHandlerFuncs[T any] struct {
	ValidateFunc    func(raw any) bool
	DeserializeFunc func(raw any) (T, error)
}

// Validate calls ValidateFunc. Missing function accepts everything.
func (h ResponseHandlerFuncs[T]) Validate(raw any) bool {
	if h.ValidateFunc == nil {
		return true
	}
	return h.ValidateFunc(raw)
}

// Deserialize calls DeserializeFunc. Missing function behaves like Convert.
func (h ResponseHandlerFuncs[T]) Deserialize(raw any) (T, error) {
	if h.DeserializeFunc == nil {
		return Convert[T](raw)
	}
	return h.DeserializeFunc(raw)
}

// Convert turns decoded JSON value into T.
func Convert[T any](raw any) (T, error) {
	if v, ok := raw.(T); ok {
		return v, nil
	}

	var v T
	if raw == nil {
		return v, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return v, errors.WithStack(err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Wrapf(ErrInvalidResponse, "converting %T to %T failed: %s", raw, v, err)
	}
	return v, nil
}

// SerializeArgs converts call arguments into transport-safe values.
func SerializeArgs(args []any) ([]any, error) {
	res := make([]any, 0, len(args))
	for i, arg := range args {
		if s, ok := arg.(Serializable); ok {
			res = append(res, s.Serialize())
			continue
		}
		if !transportSafe(reflect.ValueOf(arg), true) {
			return nil, errors.Wrapf(ErrNotTransportSafe, "argument %d has type %T", i, arg)
		}
		res = append(res, arg)
	}
	return res, nil
}

func transportSafe(v reflect.Value, allowSequence bool) bool {
	if !v.IsValid() {
		return true
	}
	if v.Type() == reflect.TypeOf(json.RawMessage{}) {
		return json.Valid(v.Bytes())
	}

	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return true
		}
		return transportSafe(v.Elem(), allowSequence)
	case reflect.Slice, reflect.Array:
		if !allowSequence {
			return false
		}
		if v.Kind() == reflect.Slice && v.IsNil() {
			return true
		}
		return homogeneous(v)
	default:
		return false
	}
}

func homogeneous(v reflect.Value) bool {
	var kind reflect.Kind
	for i := range v.Len() {
		elem := v.Index(i)
		for elem.Kind() == reflect.Interface && !elem.IsNil() {
			elem = elem.Elem()
		}
		if !transportSafe(elem, false) {
			return false
		}
		k := primitiveKind(elem)
		if i == 0 {
			kind = k
			continue
		}
		if k != kind {
			return false
		}
	}
	return true
}

func primitiveKind(v reflect.Value) reflect.Kind {
	if !v.IsValid() || (v.Kind() == reflect.Interface && v.IsNil()) {
		return reflect.Invalid
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return reflect.Float64
	default:
		return v.Kind()
	}
}

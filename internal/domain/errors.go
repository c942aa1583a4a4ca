package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure reported back to the requesting connection.
type Kind string

const (
	KindNotInRoom         Kind = "NotInRoom"
	KindTransportNotFound Kind = "TransportNotFound"
	KindWrongDirection    Kind = "WrongDirection"
	KindProducerNotFound  Kind = "ProducerNotFound"
	KindConsumerNotFound  Kind = "ConsumerNotFound"
	KindCodecIncompatible Kind = "CodecIncompatible"
	KindEngineFailure     Kind = "EngineFailure"
	KindBadPayload        Kind = "BadPayload"
	KindRateLimited       Kind = "RateLimited"
)

// Error is the structured error carried in a signaling response.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotInRoom         = &Error{Kind: KindNotInRoom, Message: "not connected to a voice room"}
	ErrTransportNotFound = &Error{Kind: KindTransportNotFound, Message: "transport not found"}
	ErrWrongDirection    = &Error{Kind: KindWrongDirection, Message: "transport direction mismatch"}
	ErrProducerNotFound  = &Error{Kind: KindProducerNotFound, Message: "producer not found"}
	ErrConsumerNotFound  = &Error{Kind: KindConsumerNotFound, Message: "consumer not found"}
	ErrCodecIncompatible = &Error{Kind: KindCodecIncompatible, Message: "cannot consume producer with given rtp capabilities"}
)

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// EngineFailure wraps an error returned by the media engine.
func EngineFailure(op string, err error) *Error {
	return &Error{Kind: KindEngineFailure, Message: op, Err: err}
}

// AsError converts any error into the structured form sent to clients.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindEngineFailure, Message: err.Error(), Err: err}
}

package mcp

import (
	"encoding/json"
	"fmt"
)

// RPCError wraps a JSON-RPC error response.
type RPCError struct {
	err *Error
}

// NewRPCError creates a new RPCError wrapping a JSON-RPC error.
func NewRPCError(err *Error) *RPCError {
	return &RPCError{err: err}
}

// Error implements the error interface.
// Data is deliberately excluded — it is remote-controlled and may contain
// sensitive information. Use RPCError() or Data() to access it explicitly.
func (e *RPCError) Error() string {
	if e.err == nil {
		return "rpc error: <nil>"
	}
	return fmt.Sprintf("rpc error: code=%d message=%q", e.err.Code, e.err.Message)
}

// RPCError returns the underlying JSON-RPC error.
func (e *RPCError) RPCError() *Error {
	return e.err
}

// Code returns the JSON-RPC error code.
func (e *RPCError) Code() int {
	if e.err == nil {
		return 0
	}
	return e.err.Code
}

// Message returns the JSON-RPC error message.
func (e *RPCError) Message() string {
	if e.err == nil {
		return ""
	}
	return e.err.Message
}

// Data returns the raw JSON-RPC error data, if any.
func (e *RPCError) Data() json.RawMessage {
	if e.err == nil {
		return nil
	}
	return e.err.Data
}

// Is implements errors.Is by comparing error codes.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	if e.err == nil || t.err == nil {
		return e.err == t.err
	}
	return e.err.Code == t.err.Code
}

// TransportError wraps IO/connection failures, including the closed-peer
// case referred to elsewhere as TransportClosed.
type TransportError struct {
	msg   string
	cause error
}

// NewTransportError creates a new TransportError with a message and optional cause.
func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{msg: msg, cause: cause}
}

func (e *TransportError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("transport error: %s", e.msg)
}

func (e *TransportError) Unwrap() error { return e.cause }

// Is implements errors.Is by matching all TransportErrors — a caller that
// only cares "was the transport closed" doesn't need to match the message.
func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok
}

// TimeoutError represents a request timeout.
type TimeoutError struct {
	msg   string
	cause error
}

// NewTimeoutError creates a new TimeoutError with the given message and cause.
func NewTimeoutError(msg string, cause error) *TimeoutError {
	return &TimeoutError{msg: msg, cause: cause}
}

func (e *TimeoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("timeout error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("timeout error: %s", e.msg)
}

func (e *TimeoutError) Unwrap() error { return e.cause }

// Is implements errors.Is by matching all TimeoutError instances.
// All timeouts are semantically equivalent.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// CanceledError represents an explicit context cancellation (caller-initiated).
// Distinct from TimeoutError, which represents deadline-driven cancellation.
type CanceledError struct {
	msg   string
	cause error
}

// NewCanceledError creates a new CanceledError with the given message and cause.
func NewCanceledError(msg string, cause error) *CanceledError {
	return &CanceledError{msg: msg, cause: cause}
}

func (e *CanceledError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("canceled: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("canceled: %s", e.msg)
}

func (e *CanceledError) Unwrap() error { return e.cause }

func (e *CanceledError) Is(target error) bool {
	_, ok := target.(*CanceledError)
	return ok
}

// StateError signals an illegal operation for the peer's current state:
// a method called before the handshake completes, a duplicate
// registration, or an update targeting an unregistered name/URI.
type StateError struct {
	msg string
}

// NewStateError creates a new StateError.
func NewStateError(msg string) *StateError {
	return &StateError{msg: msg}
}

func (e *StateError) Error() string { return fmt.Sprintf("state error: %s", e.msg) }

func (e *StateError) Is(target error) bool {
	_, ok := target.(*StateError)
	return ok
}

// ArgumentError signals a caller-supplied argument that cannot be
// honored: a missing progress token, a lazy log producer with the wrong
// shape, an out-of-range value caught by struct validation.
type ArgumentError struct {
	msg   string
	cause error
}

// NewArgumentError creates a new ArgumentError, optionally wrapping a
// validation cause (e.g. a *validator.ValidationErrors).
func NewArgumentError(msg string, cause error) *ArgumentError {
	return &ArgumentError{msg: msg, cause: cause}
}

func (e *ArgumentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("argument error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("argument error: %s", e.msg)
}

func (e *ArgumentError) Unwrap() error { return e.cause }

func (e *ArgumentError) Is(target error) bool {
	_, ok := target.(*ArgumentError)
	return ok
}

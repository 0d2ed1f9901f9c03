// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrDisconnected is returned by every outstanding and future call once
	// the connection to the server has been lost.  The client does not
	// reconnect on its own; a new Client must be created.
	ErrDisconnected = errors.New("client disconnected")

	// ErrCallTimeout is returned when a call, or a wait for the next
	// notification, does not complete within its timeout.  The server-side
	// request is not cancelled; a late response is silently dropped.
	ErrCallTimeout = errors.New("call timed out")

	// ErrDuplicateID is returned when a request id is already registered
	// with the pending call registry.  Ids are allocated monotonically, so
	// this indicates an internal invariant violation.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrNotSubscribed is returned when unsubscribing from a script hash
	// that has no active subscription.
	ErrNotSubscribed = errors.New("not subscribed")
)

// ConnectError describes a failure to establish a connection to the server,
// such as a DNS failure, a refused connection, or a failed TLS or SOCKS
// handshake.  It is fatal to the connect attempt.
type ConnectError struct {
	Op  string
	Err error
}

// Error satisfies the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("electrum connect: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// FrameError describes a terminated frame received from the server that is
// not valid JSON.
type FrameError struct {
	Frame []byte
	Err   error
}

// Error satisfies the error interface.
func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", e.Frame, e.Err)
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error {
	return e.Err
}

// RPCError represents an error returned by the server in response to a
// well-formed call.  It only affects the caller that issued the call.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error satisfies the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// UnmarshalJSON decodes either the structured {"code":..,"message":..} form
// or the bare string form some older servers emit.
func (e *RPCError) UnmarshalJSON(data []byte) error {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		e.Code = 0
		e.Message = msg
		return nil
	}

	type rpcError RPCError
	var structured rpcError
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	*e = RPCError(structured)
	return nil
}

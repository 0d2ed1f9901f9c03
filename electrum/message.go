// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// delim terminates every frame on the wire.  One frame is exactly one JSON
// document (or one JSON array, for batches).
const delim = byte('\n')

// jsonrpcVersion is included in every outbound request per the Electrum
// flavor of JSON-RPC 2.0.
const jsonrpcVersion = "2.0"

// request is a single outbound call in its wire form.
type request struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newRequest(id uint64, method string, params []interface{}) *request {
	if params == nil {
		// Electrum servers expect "params":[] rather than null.
		params = []interface{}{}
	}
	return &request{
		Jsonrpc: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// response is any message arriving from the server: a reply to a call (ID is
// set, exactly one of Result and Error is set) or a notification (Method is
// set, ID is absent).
type response struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// isNotification reports whether the message is an unsolicited subscription
// push.  Notifications carry no id and use a method name ending in
// ".subscribe" by protocol convention.
func (r *response) isNotification() bool {
	return r.ID == nil && strings.HasSuffix(r.Method, ".subscribe")
}

// marshalFrame serializes one or more requests into a single wire frame.  A
// single request becomes one JSON object, multiple requests become one JSON
// array (a batch), either way terminated by the frame delimiter.  The frame
// is returned as one contiguous buffer so the caller can put it on the wire
// with a single write and concurrent senders' bytes never interleave.
func marshalFrame(reqs []*request) ([]byte, error) {
	var payload interface{} = reqs
	if len(reqs) == 1 {
		payload = reqs[0]
	}
	frame, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(frame, delim), nil
}

// readFrame reads exactly one delimiter-terminated frame, buffering partial
// reads across however many socket reads it takes.  The returned bytes have
// the delimiter stripped.
func readFrame(r *bufio.Reader) ([]byte, error) {
	frame, err := r.ReadBytes(delim)
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(frame, "\r\n"), nil
}

// parseFrame decodes a frame into its individual messages.  A frame is
// either one JSON object or a JSON array of objects (a batch response).  A
// terminated frame that is not valid JSON is a FrameError.
func parseFrame(frame []byte) ([]*response, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []*response
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, &FrameError{Frame: frame, Err: err}
		}
		return batch, nil
	}

	var single response
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, &FrameError{Frame: frame, Err: err}
	}
	return []*response{&single}, nil
}

// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

// TestFrameRoundTrip ensures a serialized request read back through the
// framer reproduces an equivalent method and parameter sequence.
func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	req := newRequest(7, "blockchain.scripthash.get_balance",
		[]interface{}{"00" + "11", true, float64(12)})
	frame, err := marshalFrame([]*request{req})
	require.NoError(t, err)
	require.Equal(t, delim, frame[len(frame)-1])

	// A frame is a single write; reading it back yields one line.
	reader := bufio.NewReader(bytes.NewReader(frame))
	line, err := readFrame(reader)
	require.NoError(t, err)

	var decoded struct {
		Jsonrpc string        `json:"jsonrpc"`
		ID      uint64        `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(line, &decoded))
	require.Equal(t, "2.0", decoded.Jsonrpc)
	require.Equal(t, uint64(7), decoded.ID)
	require.Equal(t, req.Method, decoded.Method)
	require.Equal(t, []interface{}{"0011", true, float64(12)},
		decoded.Params)
}

// TestMarshalFrameBatch ensures multiple requests become a single JSON array
// frame.
func TestMarshalFrameBatch(t *testing.T) {
	t.Parallel()

	frame, err := marshalFrame([]*request{
		newRequest(1, "server.version", nil),
		newRequest(2, "server.ping", nil),
	})
	require.NoError(t, err)
	require.Equal(t, byte('['), frame[0])

	msgs, err := parseFrame(bytes.TrimRight(frame, "\n"))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

// TestMarshalFrameNilParams ensures nil params serialize as an empty array
// rather than null.
func TestMarshalFrameNilParams(t *testing.T) {
	t.Parallel()

	frame, err := marshalFrame([]*request{newRequest(1, "server.ping",
		nil)})
	require.NoError(t, err)
	require.Contains(t, string(frame), `"params":[]`)
}

// TestReadFramePartial ensures the framer buffers partial reads until the
// delimiter arrives.
func TestReadFramePartial(t *testing.T) {
	t.Parallel()

	// A one-byte-at-a-time reader forces buffering across reads.
	raw := `{"id":1,"result":"ok"}` + "\n"
	reader := bufio.NewReaderSize(
		iotest.OneByteReader(strings.NewReader(raw)), 16)
	line, err := readFrame(reader)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":1,"result":"ok"}`, string(line))
}

// TestParseFrameInvalid ensures a terminated frame that is not valid JSON
// fails with a FrameError.
func TestParseFrameInvalid(t *testing.T) {
	t.Parallel()

	_, err := parseFrame([]byte(`{"id":1,`))
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)

	_, err = parseFrame([]byte(`[{"id":1},`))
	require.ErrorAs(t, err, &frameErr)
}

// TestResponseClassification checks the response/notification shape
// classifier.
func TestResponseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		raw            string
		isNotification bool
		hasID          bool
	}{{
		name:  "call response",
		raw:   `{"id":3,"result":["ElectrumX 1.16.0","1.4"]}`,
		hasID: true,
	}, {
		name:  "error response",
		raw:   `{"id":4,"error":{"code":2,"message":"daemon error"}}`,
		hasID: true,
	}, {
		name: "scripthash notification",
		raw: `{"method":"blockchain.scripthash.subscribe",` +
			`"params":["ab","cd"]}`,
		isNotification: true,
	}, {
		name: "headers notification",
		raw: `{"method":"blockchain.headers.subscribe",` +
			`"params":[{"height":1,"hex":"00"}]}`,
		isNotification: true,
	}, {
		name: "unknown shape",
		raw:  `{"method":"something.else","params":[]}`,
	}}

	for _, test := range tests {
		msgs, err := parseFrame([]byte(test.raw))
		require.NoError(t, err, test.name)
		require.Len(t, msgs, 1, test.name)
		require.Equal(t, test.hasID, msgs[0].ID != nil, test.name)
		require.Equal(t, test.isNotification, msgs[0].isNotification(),
			test.name)
	}
}

// TestRPCErrorUnmarshal ensures both the structured and the legacy string
// error forms decode.
func TestRPCErrorUnmarshal(t *testing.T) {
	t.Parallel()

	var structured RPCError
	require.NoError(t, json.Unmarshal(
		[]byte(`{"code":-32601,"message":"unknown method"}`),
		&structured))
	require.Equal(t, -32601, structured.Code)
	require.Equal(t, "unknown method", structured.Message)

	var legacy RPCError
	require.NoError(t, json.Unmarshal([]byte(`"some failure"`), &legacy))
	require.Equal(t, 0, legacy.Code)
	require.Equal(t, "some failure", legacy.Message)
}

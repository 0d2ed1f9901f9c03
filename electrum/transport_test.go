// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDialPlaintext checks the plaintext connect path against a real
// listener.
func TestDialPlaintext(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	conn, err := dial(&ConnConfig{Host: "127.0.0.1", Port: uint16(port)})
	require.NoError(t, err)
	defer conn.Close()

	select {
	case serverConn := <-accepted:
		serverConn.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("listener never saw the connection")
	}
}

// TestDialRefused checks that a refused connection surfaces as a
// ConnectError.
func TestDialRefused(t *testing.T) {
	t.Parallel()

	// Grab a port and close it again so nothing listens there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err = dial(&ConnConfig{
		Host:           "127.0.0.1",
		Port:           uint16(port),
		ConnectTimeout: 2 * time.Second,
	})

	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
}

// TestNewEndToEnd runs a call against a minimal Electrum server speaking
// over real TCP through the public constructor.
func TestNewEndToEnd(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadBytes(delim)
			if err != nil {
				return
			}
			var req serverRequest
			if json.Unmarshal(line, &req) != nil {
				return
			}
			fmt.Fprintf(conn, `{"id":%d,"result":null}`+"\n",
				req.ID)
		}
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	client, err := New(&ConnConfig{
		Host:    "127.0.0.1",
		Port:    uint16(port),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer client.Disconnect()

	require.NoError(t, client.Ping())
	require.Equal(t, Connected, client.ConnectionState())
}

// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/btcsuite/go-socks/socks"
)

const (
	// defaultConnectTimeout is the duration allowed for the TCP connect
	// and any TLS or SOCKS handshake before the attempt is abandoned.
	defaultConnectTimeout = 30 * time.Second

	// defaultCallTimeout is how long a call waits for its response when
	// the config does not specify a timeout.
	defaultCallTimeout = 30 * time.Second
)

// ConnConfig describes the connection configuration parameters for the
// client.  A config is immutable once a Client has been created from it.
type ConnConfig struct {
	// Host is the hostname of the Electrum server.  Onion hosts require
	// Proxy to be set since they cannot be resolved by ordinary DNS.
	Host string

	// Port is the TCP port the server listens on.
	Port uint16

	// TLS specifies whether to perform a TLS handshake on top of the
	// connection.
	TLS bool

	// TLSSkipVerify disables server name and certificate verification for
	// TLS connections.  Many public Electrum servers use self-signed
	// certificates, but skipping verification is an explicit caller
	// decision, never the default.
	TLSSkipVerify bool

	// Proxy specifies to connect through a SOCKS 5 proxy server at the
	// given address.  The proxy performs endpoint name resolution, which
	// is what makes onion hosts reachable.
	Proxy string

	// ProxyUser is an optional username for the proxy server.
	ProxyUser string

	// ProxyPass is an optional password for the proxy server.
	ProxyPass string

	// TorIsolation specifies whether to use stream isolation when the
	// proxy is a Tor node.
	TorIsolation bool

	// ConnectTimeout bounds the connect and handshake phase.  Defaults to
	// defaultConnectTimeout when zero.
	ConnectTimeout time.Duration

	// Timeout is the default duration to wait for a call's response
	// before giving up on it.  Defaults to defaultCallTimeout when zero.
	// Individual calls may override it.
	Timeout time.Duration
}

// addr returns the host:port form of the configured endpoint.
func (cfg *ConnConfig) addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
}

func (cfg *ConnConfig) connectTimeout() time.Duration {
	if cfg.ConnectTimeout != 0 {
		return cfg.ConnectTimeout
	}
	return defaultConnectTimeout
}

func (cfg *ConnConfig) callTimeout() time.Duration {
	if cfg.Timeout != 0 {
		return cfg.Timeout
	}
	return defaultCallTimeout
}

// dial establishes the duplex byte stream described by the config.  The
// three connection modes (plaintext, TLS, SOCKS-proxied) all produce a plain
// net.Conn, so everything above this function is transport-agnostic.
func dial(cfg *ConnConfig) (net.Conn, error) {
	timeout := cfg.connectTimeout()

	var conn net.Conn
	var err error
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:         cfg.Proxy,
			Username:     cfg.ProxyUser,
			Password:     cfg.ProxyPass,
			TorIsolation: cfg.TorIsolation,
		}
		conn, err = proxy.DialTimeout("tcp", cfg.addr(), timeout)
		if err != nil {
			return nil, &ConnectError{Op: "socks dial", Err: err}
		}
	} else {
		conn, err = net.DialTimeout("tcp", cfg.addr(), timeout)
		if err != nil {
			return nil, &ConnectError{Op: "dial", Err: err}
		}
	}

	if !cfg.TLS {
		return conn, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.TLSSkipVerify,
	}
	tlsConn := tls.Client(conn, tlsConfig)
	tlsConn.SetDeadline(time.Now().Add(timeout))
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, &ConnectError{Op: "tls handshake", Err: err}
	}
	tlsConn.SetDeadline(time.Time{})
	return tlsConn, nil
}

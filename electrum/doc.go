// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package electrum implements a client for the Electrum wire protocol.

Electrum servers speak a newline-delimited JSON-RPC dialect over plaintext
TCP, TLS, or a SOCKS5 proxy (typically Tor for onion services).  A single
connection carries both responses to client calls and asynchronous
notifications for active subscriptions, so the client demultiplexes the
incoming stream and correlates each response with the call that issued it by
request id rather than by arrival order.

Client Overview

A Client is created against a single server and is safe for concurrent use.
Any number of goroutines may issue calls at once; each receives exactly the
outcome the server produced for its own request id.  When the connection is
lost, every outstanding and future call fails with ErrDisconnected and a new
Client must be created to reconnect.

On top of the raw Call and CallBatch primitives the package provides typed
wrappers for the common protocol methods (server.version, the
blockchain.scripthash family, transaction fetch/broadcast, fee estimation)
as well as channel-based access to blockchain.headers.subscribe and
blockchain.scripthash.subscribe notification streams.
*/
package electrum

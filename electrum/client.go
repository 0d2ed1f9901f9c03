// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ConnState describes the connection state of a client.
type ConnState int32

const (
	// Connected indicates the client is exchanging messages with the
	// server.
	Connected ConnState = iota

	// Disconnected indicates the connection has been lost or closed.  The
	// state is terminal; a new client must be created to reconnect.
	Disconnected
)

// String returns the state as a human-readable string.
func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Client represents one connection to an Electrum server.  It owns both
// halves of the underlying stream: a single background goroutine reads every
// inbound frame and routes it, while writes are serialized by a mutex so any
// number of goroutines can issue calls concurrently.
type Client struct {
	cfg *ConnConfig

	conn   net.Conn
	reader *bufio.Reader

	// writeMtx guards the write half of the connection.  It is held only
	// for the duration of a frame write, never across a wait.
	writeMtx sync.Mutex

	// nextID is the id to assign to the next request.  Ids increase
	// monotonically and are never reused for the lifetime of the
	// connection.  Accessed atomically.
	nextID uint64

	pending *pendingRegistry
	subs    *subscriptionRouter

	// state is the current ConnState.  Accessed atomically.
	state int32

	quit         chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New establishes a connection to the Electrum server described by the
// config and returns a client for it.
func New(cfg *ConnConfig) (*Client, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}

	log.Infof("Connected to %s", cfg.addr())
	return NewFromConn(conn, cfg), nil
}

// NewFromConn returns a client speaking the Electrum protocol over an
// already-established duplex stream.  It takes ownership of the connection.
// This is the hook for custom transports; most callers want New.
func NewFromConn(conn net.Conn, cfg *ConnConfig) *Client {
	if cfg == nil {
		cfg = &ConnConfig{}
	}
	c := &Client{
		cfg:     cfg,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		pending: newPendingRegistry(),
		subs:    newSubscriptionRouter(),
		quit:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readHandler()
	return c
}

// ConnectionState returns the client's current connection state.
func (c *Client) ConnectionState() ConnState {
	return ConnState(atomic.LoadInt32(&c.state))
}

// Disconnect closes the connection.  Every outstanding and future call fails
// with ErrDisconnected.  Calling it more than once is a no-op.
func (c *Client) Disconnect() {
	c.doShutdown(ErrDisconnected)
}

// WaitForShutdown blocks until the background read handler has exited.
func (c *Client) WaitForShutdown() {
	c.wg.Wait()
}

// doShutdown performs the single transition to Disconnected: it closes the
// connection, terminates every pending wait, and releases every blocked
// notification reader.  Exactly one caller wins; the rest are no-ops.
func (c *Client) doShutdown(reason error) {
	c.shutdownOnce.Do(func() {
		atomic.StoreInt32(&c.state, int32(Disconnected))
		close(c.quit)
		c.conn.Close()
		c.pending.failAll(reason)
		c.subs.shutdown(reason)
		log.Infof("Disconnected from %s", c.conn.RemoteAddr())
	})
}

// readHandler runs as the sole owner of the read half of the connection.  It
// reads one frame at a time and routes each message it contains to the
// pending call registry or the subscription router.  A stream-level read
// failure is the single place disconnection is detected: it transitions the
// client to Disconnected and ends the loop.  A frame that is merely
// malformed is logged and dropped, since one quirky server message must not
// take down the whole client.
func (c *Client) readHandler() {
	defer c.wg.Done()

	for {
		frame, err := readFrame(c.reader)
		if err != nil {
			select {
			case <-c.quit:
			default:
				log.Errorf("Connection read failed: %v", err)
			}
			c.doShutdown(ErrDisconnected)
			return
		}

		msgs, err := parseFrame(frame)
		if err != nil {
			log.Warnf("Dropping malformed frame: %v", err)
			continue
		}
		for _, msg := range msgs {
			c.routeMessage(msg)
		}
	}
}

// routeMessage classifies a single inbound message by shape and delivers it.
func (c *Client) routeMessage(msg *response) {
	switch {
	case msg.ID != nil:
		// Exactly one of result and error must be present.
		if (msg.Result != nil) == (msg.Error != nil) {
			log.Warnf("Dropping response %d violating result/"+
				"error exclusivity", *msg.ID)
			return
		}
		c.pending.fulfill(*msg.ID, msg)

	case msg.isNotification():
		topic, payload, err := notificationTopic(msg)
		if err != nil {
			log.Warnf("Dropping malformed %s notification: %v",
				msg.Method, err)
			return
		}
		c.subs.record(topic, payload)

	default:
		log.Warnf("Dropping unclassifiable message (method=%q)",
			msg.Method)
	}
}

// notificationTopic derives the topic key and payload from a notification.
// When the first parameter is a string it identifies the topic (the script
// hash convention) and the payload is the second parameter; otherwise the
// method name alone is the topic and the first parameter is the payload (the
// block header convention).
func notificationTopic(msg *response) (string, json.RawMessage, error) {
	var params []json.RawMessage
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return "", nil, err
	}
	if len(params) == 0 {
		return "", nil, errors.New("notification without parameters")
	}

	var key string
	if err := json.Unmarshal(params[0], &key); err == nil &&
		len(params) > 1 {

		return msg.Method + ":" + key, params[1], nil
	}
	return msg.Method, params[0], nil
}

// writeFrame puts a complete frame on the wire as a single write so that
// concurrent senders' bytes never interleave mid-message.  A write failure
// is terminal for the client.
func (c *Client) writeFrame(frame []byte) error {
	c.writeMtx.Lock()
	_, err := c.conn.Write(frame)
	c.writeMtx.Unlock()

	if err != nil {
		select {
		case <-c.quit:
		default:
			log.Errorf("Connection write failed: %v", err)
		}
		c.doShutdown(ErrDisconnected)
		return ErrDisconnected
	}
	return nil
}

// Call issues a single RPC call and blocks until its response arrives, the
// default timeout elapses, or the connection is lost.  A server-reported
// error is returned as an *RPCError.
func (c *Client) Call(method string, params ...interface{}) (json.RawMessage,
	error) {

	return c.CallTimeout(c.cfg.callTimeout(), method, params...)
}

// CallTimeout is Call with an explicit per-call timeout.
func (c *Client) CallTimeout(timeout time.Duration, method string,
	params ...interface{}) (json.RawMessage, error) {

	id := atomic.AddUint64(&c.nextID, 1)
	slot, err := c.pending.register(id)
	if err != nil {
		return nil, err
	}

	frame, err := marshalFrame([]*request{newRequest(id, method, params)})
	if err != nil {
		c.pending.remove(id)
		return nil, err
	}
	if err := c.writeFrame(frame); err != nil {
		c.pending.remove(id)
		return nil, err
	}

	resp, err := c.pending.await(id, slot, timeout)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// BatchRequest describes one call within a batch.
type BatchRequest struct {
	Method string
	Params []interface{}
}

// BatchResult holds the outcome of one call within a batch.  Exactly one of
// Result and Err is set.
type BatchResult struct {
	Result json.RawMessage
	Err    error
}

// CallBatch issues the given calls as a single JSON array frame and blocks
// until every call has resolved.  Results are returned in input order.  An
// error return means the transport itself failed; errors the server reports
// for individual calls surface per item, since one call in a batch can fail
// independently of the others.
func (c *Client) CallBatch(calls []BatchRequest) ([]BatchResult, error) {
	return c.CallBatchTimeout(c.cfg.callTimeout(), calls)
}

// CallBatchTimeout is CallBatch with an explicit timeout covering the whole
// batch.
func (c *Client) CallBatchTimeout(timeout time.Duration,
	calls []BatchRequest) ([]BatchResult, error) {

	if len(calls) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(calls))
	slots := make([]chan *response, len(calls))
	reqs := make([]*request, len(calls))
	for i, call := range calls {
		id := atomic.AddUint64(&c.nextID, 1)
		slot, err := c.pending.register(id)
		if err != nil {
			for _, priorID := range ids[:i] {
				c.pending.remove(priorID)
			}
			return nil, err
		}
		ids[i] = id
		slots[i] = slot
		reqs[i] = newRequest(id, call.Method, call.Params)
	}

	frame, err := marshalFrame(reqs)
	if err == nil {
		err = c.writeFrame(frame)
	}
	if err != nil {
		for _, id := range ids {
			c.pending.remove(id)
		}
		return nil, err
	}

	// The deadline covers the batch as a whole since the server answers it
	// as a unit.
	deadline := time.Now().Add(timeout)
	results := make([]BatchResult, len(calls))
	for i := range calls {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		resp, err := c.pending.await(ids[i], slots[i], remaining)
		switch {
		case err == ErrCallTimeout:
			results[i].Err = err
		case err != nil:
			// Transport failure fails the whole batch.
			return nil, err
		case resp.Error != nil:
			results[i].Err = resp.Error
		default:
			results[i].Result = resp.Result
		}
	}
	return results, nil
}

// PeekNotification returns the most recently observed notification payload
// for the given topic, if one has arrived.  See ScriptHashTopic and
// HeadersTopic for topic keys.
func (c *Client) PeekNotification(topic string) (json.RawMessage, bool) {
	return c.subs.peek(topic)
}

// NextNotification blocks until the next notification for the given topic
// arrives, the timeout elapses, or the connection is lost.
func (c *Client) NextNotification(topic string,
	timeout time.Duration) (json.RawMessage, error) {

	return c.subs.popNext(topic, timeout)
}

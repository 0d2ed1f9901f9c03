// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"sync"
	"time"
)

// pendingRegistry tracks calls that have been written to the wire and are
// waiting for their response.  Each request id maps to at most one live slot
// at a time.  Callers wait on the slot's channel while the read handler
// fulfills it, exactly once, from the other side.
//
// The registry lock is only ever held for map mutation, never across a wait.
type pendingRegistry struct {
	mtx     sync.Mutex
	pending map[uint64]chan *response

	// failErr is set exactly once, when the connection is declared dead.
	// From then on every registration fails immediately.
	failErr error
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{
		pending: make(map[uint64]chan *response),
	}
}

// register inserts a new empty slot for the given request id and returns the
// channel the response will be delivered on.  Registering an id twice
// violates the monotonic id invariant and fails with ErrDuplicateID.
func (p *pendingRegistry) register(id uint64) (chan *response, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.failErr != nil {
		return nil, p.failErr
	}
	if _, ok := p.pending[id]; ok {
		return nil, ErrDuplicateID
	}

	// Buffered so the read handler never blocks on delivery, even when the
	// waiter has already timed out and gone away.
	c := make(chan *response, 1)
	p.pending[id] = c
	return c, nil
}

// fulfill delivers the server's response for the given id and removes the
// slot.  A response for an unknown id is an anomaly rather than an error: the
// waiter may have timed out and removed itself, or the server may have sent
// a response nobody asked for.  Either way it is logged and dropped.
func (p *pendingRegistry) fulfill(id uint64, resp *response) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	c, ok := p.pending[id]
	if !ok {
		log.Warnf("Received response for unknown request id %d", id)
		return
	}
	delete(p.pending, id)
	c <- resp
}

// remove deletes the slot for the given id, if it still exists, and reports
// whether it did.  Used by a waiter abandoning its own call on timeout.
func (p *pendingRegistry) remove(id uint64) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, ok := p.pending[id]; !ok {
		return false
	}
	delete(p.pending, id)
	return true
}

// await blocks until the slot is fulfilled or the timeout elapses.  On
// timeout the waiter removes its own slot so a late response is dropped by
// the fulfill path instead of leaking.
func (p *pendingRegistry) await(id uint64, c chan *response,
	timeout time.Duration) (*response, error) {

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-c:
		if !ok {
			return nil, p.failReason()
		}
		return resp, nil

	case <-timer.C:
		if p.remove(id) {
			return nil, ErrCallTimeout
		}

		// The slot is already gone, so a fulfill or a failAll raced the
		// timeout and won.  Collect its outcome.
		select {
		case resp, ok := <-c:
			if !ok {
				return nil, p.failReason()
			}
			return resp, nil
		default:
			return nil, ErrCallTimeout
		}
	}
}

// failAll terminates every pending wait with the given reason and causes all
// future registrations to fail.  Called exactly once, when the connection
// transitions to disconnected, so no caller can block forever on a dead
// socket.
func (p *pendingRegistry) failAll(reason error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.failErr != nil {
		return
	}
	p.failErr = reason

	for id, c := range p.pending {
		delete(p.pending, id)
		close(c)
	}
}

// failReason returns the error the registry was shut down with.
func (p *pendingRegistry) failReason() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.failErr != nil {
		return p.failErr
	}
	return ErrDisconnected
}

// numPending returns the number of live slots.  Only used by tests.
func (p *pendingRegistry) numPending() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.pending)
}

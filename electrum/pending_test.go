// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustRegister(t *testing.T, p *pendingRegistry,
	id uint64) chan *response {

	t.Helper()
	slot, err := p.register(id)
	require.NoError(t, err)
	return slot
}

// TestPendingFulfill ensures a registered slot receives exactly the response
// delivered for its id.
func TestPendingFulfill(t *testing.T) {
	t.Parallel()

	p := newPendingRegistry()
	slot := mustRegister(t, p, 1)

	id := uint64(1)
	p.fulfill(1, &response{ID: &id, Result: json.RawMessage(`"ok"`)})

	resp, err := p.await(1, slot, time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `"ok"`, string(resp.Result))
	require.Zero(t, p.numPending())
}

// TestPendingDuplicateID ensures registering an id twice is rejected.
func TestPendingDuplicateID(t *testing.T) {
	t.Parallel()

	p := newPendingRegistry()
	mustRegister(t, p, 1)

	_, err := p.register(1)
	require.ErrorIs(t, err, ErrDuplicateID)
}

// TestPendingUnknownID ensures fulfilling an id nobody waits for is a no-op
// rather than a failure.
func TestPendingUnknownID(t *testing.T) {
	t.Parallel()

	p := newPendingRegistry()
	slot := mustRegister(t, p, 1)

	p.fulfill(99, &response{})
	require.Equal(t, 1, p.numPending())

	id := uint64(1)
	p.fulfill(1, &response{ID: &id, Result: json.RawMessage(`null`)})
	_, err := p.await(1, slot, time.Second)
	require.NoError(t, err)
}

// TestPendingAwaitTimeout ensures a timed out wait removes its own slot so
// abandoned calls do not accumulate, and that a response arriving afterwards
// is dropped.
func TestPendingAwaitTimeout(t *testing.T) {
	t.Parallel()

	p := newPendingRegistry()
	slot := mustRegister(t, p, 1)

	start := time.Now()
	_, err := p.await(1, slot, 25*time.Millisecond)
	require.ErrorIs(t, err, ErrCallTimeout)
	require.Less(t, time.Since(start), time.Second)
	require.Zero(t, p.numPending())

	// The late response hits the unknown-id path.
	p.fulfill(1, &response{})
	require.Zero(t, p.numPending())
}

// TestPendingFulfillTimeoutRace ensures that when a fulfill and a timeout
// race, the waiter still observes the response if the fulfill won.
func TestPendingFulfillTimeoutRace(t *testing.T) {
	t.Parallel()

	p := newPendingRegistry()
	slot := mustRegister(t, p, 1)

	id := uint64(1)
	p.fulfill(1, &response{ID: &id, Result: json.RawMessage(`1`)})

	// The slot is already fulfilled, so even a zero timeout must return
	// the response rather than ErrCallTimeout.
	resp, err := p.await(1, slot, 0)
	require.NoError(t, err)
	require.JSONEq(t, `1`, string(resp.Result))
}

// TestPendingFailAll ensures a disconnect wakes every waiter with the reason
// and rejects later registrations.
func TestPendingFailAll(t *testing.T) {
	t.Parallel()

	p := newPendingRegistry()

	const numWaiters = 8
	var wg sync.WaitGroup
	errs := make([]error, numWaiters)
	for i := 0; i < numWaiters; i++ {
		slot := mustRegister(t, p, uint64(i+1))

		wg.Add(1)
		go func(i int, slot chan *response) {
			defer wg.Done()
			_, errs[i] = p.await(uint64(i+1), slot, time.Minute)
		}(i, slot)
	}

	p.failAll(ErrDisconnected)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrDisconnected)
	}
	require.Zero(t, p.numPending())

	_, err := p.register(100)
	require.ErrorIs(t, err, ErrDisconnected)
}

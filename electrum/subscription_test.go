// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSubscriptionPeek ensures peek tracks the most recently recorded
// payload for a topic.
func TestSubscriptionPeek(t *testing.T) {
	t.Parallel()

	s := newSubscriptionRouter()

	_, ok := s.peek("topic")
	require.False(t, ok)

	s.record("topic", json.RawMessage(`"first"`))
	payload, ok := s.peek("topic")
	require.True(t, ok)
	require.JSONEq(t, `"first"`, string(payload))

	// Last write wins.
	s.record("topic", json.RawMessage(`"second"`))
	payload, ok = s.peek("topic")
	require.True(t, ok)
	require.JSONEq(t, `"second"`, string(payload))

	// Other topics are unaffected.
	_, ok = s.peek("other")
	require.False(t, ok)
}

// TestSubscriptionPopNextOrder ensures a consumer that started waiting
// before any payload arrived receives every payload in arrival order, even
// though peek only reflects the newest one.
func TestSubscriptionPopNextOrder(t *testing.T) {
	t.Parallel()

	s := newSubscriptionRouter()

	type result struct {
		payload json.RawMessage
		err     error
	}
	results := make(chan result, 2)
	go func() {
		for i := 0; i < 2; i++ {
			payload, err := s.popNext("topic", time.Minute)
			results <- result{payload, err}
		}
	}()

	s.record("topic", json.RawMessage(`"first"`))
	s.record("topic", json.RawMessage(`"second"`))

	first := <-results
	require.NoError(t, first.err)
	require.JSONEq(t, `"first"`, string(first.payload))

	second := <-results
	require.NoError(t, second.err)
	require.JSONEq(t, `"second"`, string(second.payload))
}

// TestSubscriptionPopNextTimeout ensures a wait with nothing queued fails
// with ErrCallTimeout in bounded time.
func TestSubscriptionPopNextTimeout(t *testing.T) {
	t.Parallel()

	s := newSubscriptionRouter()

	start := time.Now()
	_, err := s.popNext("topic", 25*time.Millisecond)
	require.ErrorIs(t, err, ErrCallTimeout)
	require.Less(t, time.Since(start), time.Second)
}

// TestSubscriptionShutdown ensures a shutdown releases blocked waits with
// the shutdown reason while still draining already-queued payloads.
func TestSubscriptionShutdown(t *testing.T) {
	t.Parallel()

	s := newSubscriptionRouter()
	s.record("topic", json.RawMessage(`"queued"`))
	s.shutdown(ErrDisconnected)

	// The queued payload survives the shutdown.
	payload, err := s.popNext("topic", time.Minute)
	require.NoError(t, err)
	require.JSONEq(t, `"queued"`, string(payload))

	// Nothing else does.
	_, err = s.popNext("topic", time.Minute)
	require.ErrorIs(t, err, ErrDisconnected)
}

// TestSubscriptionQueueOverflow ensures recording beyond the queue capacity
// drops the oldest payloads but never blocks, and peek still returns the
// newest.
func TestSubscriptionQueueOverflow(t *testing.T) {
	t.Parallel()

	s := newSubscriptionRouter()
	for i := 0; i < notificationQueueSize+10; i++ {
		s.record("topic", json.RawMessage(fmt.Sprintf("%d", i)))
	}

	payload, ok := s.peek("topic")
	require.True(t, ok)
	require.JSONEq(t, fmt.Sprintf("%d", notificationQueueSize+9),
		string(payload))

	// The queue holds the newest payloads, oldest first.
	payload, err := s.popNext("topic", time.Second)
	require.NoError(t, err)
	require.JSONEq(t, "10", string(payload))
}

// TestSubscriptionRefCount checks the subscriber bookkeeping used for
// unsubscribing.
func TestSubscriptionRefCount(t *testing.T) {
	t.Parallel()

	s := newSubscriptionRouter()

	_, err := s.removeSubscriber("topic")
	require.ErrorIs(t, err, ErrNotSubscribed)

	require.Equal(t, 1, s.addSubscriber("topic"))
	require.Equal(t, 2, s.addSubscriber("topic"))

	remaining, err := s.removeSubscriber("topic")
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	remaining, err = s.removeSubscriber("topic")
	require.NoError(t, err)
	require.Zero(t, remaining)

	_, err = s.removeSubscriber("topic")
	require.ErrorIs(t, err, ErrNotSubscribed)
}

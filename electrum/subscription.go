// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"encoding/json"
	"sync"
	"time"
)

// notificationQueueSize is the number of undelivered notifications buffered
// per topic before the oldest is dropped.  The last known payload is tracked
// separately, so a reader that only cares about current state never misses
// it.
const notificationQueueSize = 64

// subscriptionEntry tracks one notification topic: the most recently
// observed payload, a queue of payloads not yet consumed by a blocking
// reader, and the number of active subscribers the typed API has handed the
// topic out to.
type subscriptionEntry struct {
	last     json.RawMessage
	haveLast bool
	queue    chan json.RawMessage
	numSubs  int
}

// subscriptionRouter routes unsolicited server notifications to their
// topics.  Electrum subscriptions deliver the initial state as the reply to
// the subscribe call itself and every later change as a push, so the router
// separates "what is the current state" (peek) from "wake me on the next
// change" (popNext).
//
// The router lock is only ever held for map mutation, never across a wait.
type subscriptionRouter struct {
	mtx    sync.Mutex
	topics map[string]*subscriptionEntry

	// quit is closed when the connection is declared dead so blocked
	// popNext calls do not wait out their full timeout on a dead socket.
	quit    chan struct{}
	quitErr error
}

func newSubscriptionRouter() *subscriptionRouter {
	return &subscriptionRouter{
		topics: make(map[string]*subscriptionEntry),
		quit:   make(chan struct{}),
	}
}

func (s *subscriptionRouter) entry(topic string) *subscriptionEntry {
	entry, ok := s.topics[topic]
	if !ok {
		entry = &subscriptionEntry{
			queue: make(chan json.RawMessage, notificationQueueSize),
		}
		s.topics[topic] = entry
	}
	return entry
}

// record stores payload as the topic's last known state and queues it for
// any blocking reader.  When the queue is full the oldest undelivered
// payload is dropped, since peek always reflects the newest state anyway.
func (s *subscriptionRouter) record(topic string, payload json.RawMessage) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry := s.entry(topic)
	entry.last = payload
	entry.haveLast = true

	for {
		select {
		case entry.queue <- payload:
			return
		default:
		}
		select {
		case <-entry.queue:
			log.Warnf("Notification queue for %q full, dropping "+
				"oldest", topic)
		default:
		}
	}
}

// peek returns the last known payload for the topic, if any has arrived.
func (s *subscriptionRouter) peek(topic string) (json.RawMessage, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry, ok := s.topics[topic]
	if !ok || !entry.haveLast {
		return nil, false
	}
	return entry.last, true
}

// popNext blocks until the next queued notification for the topic arrives,
// the timeout elapses, or the connection dies.
func (s *subscriptionRouter) popNext(topic string,
	timeout time.Duration) (json.RawMessage, error) {

	s.mtx.Lock()
	queue := s.entry(topic).queue
	s.mtx.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-queue:
		return payload, nil
	case <-timer.C:
		return nil, ErrCallTimeout
	case <-s.quit:
		// Drain anything that arrived before the disconnect.
		select {
		case payload := <-queue:
			return payload, nil
		default:
		}
		return nil, s.quitReason()
	}
}

// addSubscriber increments the topic's subscriber count and returns the new
// count.  Used by the typed API for unsubscribe bookkeeping.
func (s *subscriptionRouter) addSubscriber(topic string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry := s.entry(topic)
	entry.numSubs++
	return entry.numSubs
}

// removeSubscriber decrements the topic's subscriber count and returns the
// remaining count.  The topic's last known state is retained so a new
// subscriber can still peek it.
func (s *subscriptionRouter) removeSubscriber(topic string) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry, ok := s.topics[topic]
	if !ok || entry.numSubs == 0 {
		return 0, ErrNotSubscribed
	}
	entry.numSubs--
	return entry.numSubs, nil
}

// shutdown releases every blocked popNext with the given reason.  Safe to
// call more than once; only the first reason sticks.
func (s *subscriptionRouter) shutdown(reason error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	select {
	case <-s.quit:
		return
	default:
	}
	s.quitErr = reason
	close(s.quit)
}

func (s *subscriptionRouter) quitReason() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.quitErr != nil {
		return s.quitErr
	}
	return ErrDisconnected
}

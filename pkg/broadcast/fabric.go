// Package broadcast implements per-topic latest-value-wins fan-out, plus
// the single-holder control channel. It generalizes the config package's
// atomic.Pointer-swap-plus-non-blocking-notification-channel pattern from
// one typed value to many independently-typed topics with an arbitrary
// number of subscribers each.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/intothevoid/saigo/pkg/saigoerr"
)

// Topic is a single-writer, multi-reader latest-value cell. Slow
// subscribers never block the publisher; a reader that misses
// intermediate values simply observes the most recent one the next time
// it checks.
type Topic[T any] struct {
	value atomic.Pointer[T]

	mu          sync.Mutex
	subscribers []chan struct{}
}

// NewTopic creates an empty topic; Latest returns the zero value of T
// until the first Publish.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{}
}

// Publish sets the topic's latest value and wakes every subscriber.
// Notification is non-blocking: a subscriber whose channel already has a
// pending wakeup does not receive a second one, since it will read the
// new latest value anyway once it gets around to checking.
func (t *Topic[T]) Publish(v T) {
	t.value.Store(&v)

	t.mu.Lock()
	subs := t.subscribers
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Latest returns the most recently published value and whether one has
// ever been published.
func (t *Topic[T]) Latest() (T, bool) {
	p := t.value.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Subscribe returns a channel that receives a wakeup signal on every
// Publish (coalesced if the subscriber falls behind) and an unsubscribe
// function to stop receiving and release the channel.
func (t *Topic[T]) Subscribe() (wake <-chan struct{}, unsubscribe func()) {
	ch := make(chan struct{}, 1)

	t.mu.Lock()
	t.subscribers = append(t.subscribers, ch)
	t.mu.Unlock()

	unsub := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, c := range t.subscribers {
			if c == ch {
				t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
				break
			}
		}
	}
	return ch, unsub
}

// HasSubscribers reports whether any reader is currently attached, used
// by the scheduler to skip work nobody is listening for.
func (t *Topic[T]) HasSubscribers() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers) > 0
}

// ControlChannel is the single-holder control-command topic: a second
// concurrent connection attempt is rejected rather than queued.
type ControlChannel[T any] struct {
	held atomic.Bool
	ch   chan T
}

// NewControlChannel creates an unheld control channel with the given
// inbound command buffer size.
func NewControlChannel[T any](buffer int) *ControlChannel[T] {
	return &ControlChannel[T]{ch: make(chan T, buffer)}
}

// Acquire claims exclusive ownership of the channel, returning
// ErrControlChannelBusy if another holder is already connected.
// Release must be called when the holder disconnects.
func (c *ControlChannel[T]) Acquire() (release func(), err error) {
	if !c.held.CompareAndSwap(false, true) {
		return nil, saigoerr.ErrControlChannelBusy
	}
	return func() { c.held.Store(false) }, nil
}

// Send enqueues a command from the current holder. Callers must hold the
// channel (via Acquire) before calling Send.
func (c *ControlChannel[T]) Send(cmd T) {
	select {
	case c.ch <- cmd:
	default:
		// The scheduler drains every suspension point; a full buffer means
		// it is momentarily behind, not stuck. Drop the oldest command
		// rather than blocking the network read loop.
		select {
		case <-c.ch:
		default:
		}
		c.ch <- cmd
	}
}

// Drain removes and returns every command queued since the last Drain,
// in production order, without blocking ( "non-blocking
// drain" suspension point).
func (c *ControlChannel[T]) Drain() []T {
	var cmds []T
	for {
		select {
		case cmd := <-c.ch:
			cmds = append(cmds, cmd)
		default:
			return cmds
		}
	}
}

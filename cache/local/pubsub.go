package local

import (
	"context"
	"sync"
)

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

// LocalPubSub is an in-process fan-out pub/sub implementation.
// Subscriptions are tracked per channel by id so one delivery channel
// can back a multi-channel subscription.
type LocalPubSub struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[string]map[int]chan *LocalMessage
	bufSize int
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer
// size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subs:    make(map[string]map[int]chan *LocalMessage),
		bufSize: bufSize,
	}
}

// Publish sends a message to every subscriber of the channel. A
// subscriber whose buffer is full misses the message rather than
// blocking the publisher.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, ch := range ps.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a delivery channel for messages on the given
// channels and a cancel function that unregisters it and closes the
// channel.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	ch := make(chan *LocalMessage, ps.bufSize)

	ps.mu.Lock()
	id := ps.nextID
	ps.nextID++
	for _, name := range channels {
		if ps.subs[name] == nil {
			ps.subs[name] = make(map[int]chan *LocalMessage)
		}
		ps.subs[name][id] = ch
	}
	ps.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ps.mu.Lock()
			for _, name := range channels {
				delete(ps.subs[name], id)
			}
			ps.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MemoryBackend delivers messages in process. Published messages are
// buffered per channel until a subscriber drains them.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	seq    int
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{queues: make(map[string]chan Message)}
}

func (m *MemoryBackend) queue(channel string) chan Message {
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, 128)
		m.queues[channel] = q
	}
	return q
}

func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", errors.New("mq closed")
	}
	m.seq++
	id := strconv.Itoa(m.seq)
	q := m.queue(channel)
	m.mu.Unlock()

	select {
	case q <- Message{ID: id, Data: data, Attributes: attrs}:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe redelivers a message whose handler fails.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	m.mu.Lock()
	q := m.queue(channel)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

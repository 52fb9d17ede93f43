package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Bus with the same at-most-once contract as the
// Redis implementation. Used in offline mode and tests.
type Memory struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]Handler)}
}

func (m *Memory) Publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	m.mu.RLock()
	hs := append([]Handler(nil), m.handlers[channel]...)
	m.mu.RUnlock()

	// No subscriber means the message is dropped, same as pub/sub.
	for _, h := range hs {
		h(ctx, body)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, channel string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[channel] = append(m.handlers[channel], h)
	return nil
}

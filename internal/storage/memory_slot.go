package storage

import (
	"context"
	"sync"
)

// SlotHook intercepts a MemorySlotStore operation. op is "get" or "put".
// A non-nil error is returned to the caller instead of running the
// operation.
type SlotHook func(ctx context.Context, op, key string) error

// MemorySlotStore keeps slots in process memory.
type MemorySlotStore struct {
	mu     sync.RWMutex
	slots  map[string][]byte
	hook   SlotHook
	puts   int
	closed bool
}

// NewMemorySlotStore creates an empty in-memory slot store.
func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{slots: make(map[string][]byte)}
}

// SetHook installs h for subsequent operations. nil removes it.
func (m *MemorySlotStore) SetHook(h SlotHook) {
	m.mu.Lock()
	m.hook = h
	m.mu.Unlock()
}

// Get implements SlotStore.
func (m *MemorySlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.intercept(ctx, "get", key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	blob, ok := m.slots[key]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Put implements SlotStore.
func (m *MemorySlotStore) Put(ctx context.Context, key string, blob []byte) error {
	if err := m.intercept(ctx, "put", key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.slots[key] = append([]byte(nil), blob...)
	m.puts++
	return nil
}

// Puts returns the number of successful writes.
func (m *MemorySlotStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Close implements SlotStore.
func (m *MemorySlotStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MemorySlotStore) intercept(ctx context.Context, op, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	h := m.hook
	m.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(ctx, op, key)
}

package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/archethic-foundation/crypto-accumulator/accumulator"
	"github.com/google/uuid"
)

var (
	ErrUnknownHandle = errors.New("unknown accumulator handle")
	ErrRegistryFull  = errors.New("accumulator registry is full")
)

// Handle owns one accumulator. Every use goes through Do, which holds the
// handle's lock for the whole call.
type Handle struct {
	ID      string
	Created time.Time

	mu  sync.Mutex
	acc *accumulator.Accumulator
}

// Do runs fn with exclusive access to the accumulator. It fails with
// ErrUnknownHandle once the handle was dropped.
func (h *Handle) Do(fn func(acc *accumulator.Accumulator) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.acc == nil {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h.ID)
	}
	return fn(h.acc)
}

func (h *Handle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.acc != nil {
		h.acc.Close()
		h.acc = nil
	}
}

// Registry maps handle ids to live accumulators.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	max     int
	opts    []accumulator.Option
}

// NewRegistry creates a registry holding at most maxHandles handles.
func NewRegistry(maxHandles int, opts ...accumulator.Option) *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		max:     maxHandles,
		opts:    opts,
	}
}

// Create binds a fresh accumulator to sk. The registry keeps its own copy of
// the key.
func (r *Registry) Create(sk *accumulator.SecretKey) (*Handle, error) {
	acc, err := accumulator.New(sk, r.opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) >= r.max {
		acc.Close()
		return nil, ErrRegistryFull
	}
	h := &Handle{ID: uuid.New().String(), Created: time.Now(), acc: acc}
	r.handles[h.ID] = h
	ActiveHandles.Set(float64(len(r.handles)))
	return h, nil
}

func (r *Registry) Get(id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, id)
	}
	return h, nil
}

// Drop removes the handle and zeroes its key. Calls already holding the
// handle finish first.
func (r *Registry) Drop(id string) error {
	r.mu.Lock()
	h, ok := r.handles[id]
	delete(r.handles, id)
	ActiveHandles.Set(float64(len(r.handles)))
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, id)
	}
	h.close()
	return nil
}

func (r *Registry) DropAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	ActiveHandles.Set(0)
	r.mu.Unlock()

	for _, h := range handles {
		h.close()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

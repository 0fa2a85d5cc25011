// Package testutil provides shared fixtures for container tests.
package testutil

import (
	"sync"
)

// CloseRecorder captures teardown order across components.
type CloseRecorder struct {
	mu    sync.Mutex
	order []string
}

// Record appends a name to the teardown log.
func (r *CloseRecorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

// Order returns the recorded teardown order.
func (r *CloseRecorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Store is a minimal dependency interface for wiring tests.
type Store interface {
	Get(key string) string
}

// MemoryStore is the standard Store fixture. Close records into the
// attached recorder.
type MemoryStore struct {
	Label    string
	Recorder *CloseRecorder

	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]string)
	}
	s.data[key] = value
}

func (s *MemoryStore) Close() error {
	if s.Recorder != nil {
		name := s.Label
		if name == "" {
			name = "store"
		}
		s.Recorder.Record(name)
	}
	return nil
}

// Service is a fixture depending on a Store.
type Service struct {
	Store    Store
	Label    string
	Recorder *CloseRecorder
}

// NewService wires a service onto a store.
func NewService(store Store) *Service {
	return &Service{Store: store}
}

func (s *Service) Close() error {
	if s.Recorder != nil {
		name := s.Label
		if name == "" {
			name = "service"
		}
		s.Recorder.Record(name)
	}
	return nil
}

// Counter counts constructor invocations, for singleton identity tests.
type Counter struct {
	mu sync.Mutex
	n  int
}

func (c *Counter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

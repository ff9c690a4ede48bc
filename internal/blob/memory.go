package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Object is a stored blob in MemoryStore.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps objects in a map. Failures can be injected per
// operation for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object

	FailPut    error
	FailDelete error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]Object{}}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, r io.Reader) error {
	m.mu.Lock()
	fail := m.FailPut
	m.mu.Unlock()
	if fail != nil {
		return fail
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	return nil
}

func (m *MemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("memory://%s?expires_in=%d", url.PathEscape(key), int(ttl.Seconds())), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys lists stored keys.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// SetFailures replaces the injected errors.
func (m *MemoryStore) SetFailures(put, del error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailPut, m.FailDelete = put, del
}

var _ Store = (*MemoryStore)(nil)

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

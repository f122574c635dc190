package blob

import (
	"context"
	"sync"
)

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// Memory is an in-process Store for local runs and tests. FailDelete makes
// every Delete return the given error.
type Memory struct {
	Bucket     string
	FailDelete error

	mu      sync.Mutex
	objects map[string]Object
	deleted []string
}

func NewMemory(bucket string) *Memory {
	return &Memory{Bucket: bucket, objects: make(map[string]Object)}
}

func (m *Memory) Upload(_ context.Context, object, contentType string, data []byte) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return PublicURL(m.Bucket, object), object, nil
}

func (m *Memory) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	if _, ok := m.objects[ref]; ok {
		delete(m.objects, ref)
		m.deleted = append(m.deleted, ref)
	}
	return nil
}

// Put stores an object directly, as if uploaded earlier.
func (m *Memory) Put(object string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object] = Object{Data: data}
}

// Get returns a stored object.
func (m *Memory) Get(object string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[object]
	return o, ok
}

// Deleted lists the objects removed so far, in order.
func (m *Memory) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

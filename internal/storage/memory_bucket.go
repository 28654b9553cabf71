package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// MemoryBucket is an in-memory implementation of Bucket for testing.
type MemoryBucket struct {
	mu      sync.RWMutex
	name    string
	objects map[string]StoredObject
	cors    *CORSRule
	calls   MemoryCalls

	// FailKeys makes PutObject fail for a key. A positive count fails that
	// many times and then succeeds; zero fails every time.
	FailKeys map[string]int
	// RejectKeys makes PutObject fail for a key with a non-retryable error.
	RejectKeys map[string]bool
	// FailCORS makes SetCORS return an error.
	FailCORS bool
}

// StoredObject is an object captured by MemoryBucket.
type StoredObject struct {
	Data        []byte
	ContentType string
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Put     int
	SetCORS int
}

// NewMemoryBucket creates a new in-memory bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:       name,
		objects:    make(map[string]StoredObject),
		FailKeys:   make(map[string]int),
		RejectKeys: make(map[string]bool),
	}
}

func (m *MemoryBucket) Name() string { return m.name }

// PutObject stores a copy of the object content.
func (m *MemoryBucket) PutObject(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	if m.RejectKeys[key] {
		return perrors.UploadRejected(key, errors.New("AccessDenied"))
	}
	if remaining, ok := m.FailKeys[key]; ok {
		switch {
		case remaining == 0:
			return perrors.UploadFailed(key, errors.New("injected failure"))
		case remaining > 0:
			m.FailKeys[key]--
			if m.FailKeys[key] == 0 {
				delete(m.FailKeys, key)
			}
			return perrors.UploadFailed(key, errors.New("injected transient failure"))
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return perrors.UploadFailed(key, err)
	}
	m.objects[key] = StoredObject{Data: data, ContentType: contentType}
	return nil
}

// SetCORS records the rule.
func (m *MemoryBucket) SetCORS(_ context.Context, rule CORSRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.SetCORS++
	if m.FailCORS {
		return perrors.CORSFailed(m.name, errors.New("injected failure"))
	}
	m.cors = &rule
	return nil
}

// Object returns a stored object.
func (m *MemoryBucket) Object(key string) (StoredObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns all stored keys in sorted order.
func (m *MemoryBucket) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CORS returns the last rule set, if any.
func (m *MemoryBucket) CORS() (CORSRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cors == nil {
		return CORSRule{}, false
	}
	return *m.cors, true
}

// Calls returns the invocation counters.
func (m *MemoryBucket) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

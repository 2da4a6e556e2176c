// Package memory provides an in-process BlobStore used by tests and local
// development, where uploaded bytes only need to round-trip within the same
// process.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/sahedhasan999/permitdraft-hero-sub000/blob"
)

func init() {
	blob.Register(blob.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (blob.BlobStore, error) {
			return New(), nil
		},
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this
// package's init() runs.
var ForceImport = 0

// New returns an empty in-memory blob store.
func New() *MemoryBlobStore {
	return &MemoryBlobStore{objects: map[string][]byte{}}
}

type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func (s *MemoryBlobStore) Put(_ context.Context, key string, data io.Reader, _ int64, _ string) (string, error) {
	buf := bytes.Buffer{}
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	return "memory://" + key, nil
}

// Get returns the stored bytes for a key. Test helper.
func (s *MemoryBlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len returns the number of stored objects. Test helper.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ blob.BlobStore = (*MemoryBlobStore)(nil)

// Package photos stores finale photos in an object store.
package photos

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MaxPhotoSize is the largest accepted upload.
const MaxPhotoSize = 10 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Extension returns the file extension for an allowed content type.
func Extension(contentType string) (string, bool) {
	ext, ok := extensions[contentType]
	return ext, ok
}

// ObjectKey is the object name for a team's photo at a level.
func ObjectKey(teamID, levelID, photoID, ext string) string {
	return fmt.Sprintf("teams/%s/photos/%s/%s%s", teamID, levelID, photoID, ext)
}

// Store writes photo blobs and returns a URL for them.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// MemoryStore keeps objects in memory for tests and local runs without MinIO.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// SetError makes every Put fail with err.
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	m.objects[key] = data
	return "memory://" + key, nil
}

// Object returns a stored object and whether it exists.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

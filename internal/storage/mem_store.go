package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory ArtifactStore for tests.
type MemStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	calls     MemCalls
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	Put    int
	Get    int
	Exists int
	Delete int
	List   int
	// Skipped counts Puts suppressed because identical content was
	// already stored.
	Skipped int
}

// NewMemStore creates an empty in-memory artifact store.
func NewMemStore() *MemStore {
	return &MemStore{artifacts: make(map[string]*Artifact)}
}

func (m *MemStore) Put(ctx context.Context, art *Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	hash := art.Hash
	if hash == "" {
		sum := sha256.Sum256(art.Data)
		hash = hex.EncodeToString(sum[:])
	}
	if existing, ok := m.artifacts[art.Path]; ok && existing.Hash == hash {
		m.calls.Skipped++
		return hash, nil
	}

	data := make([]byte, len(art.Data))
	copy(data, art.Data)
	m.artifacts[art.Path] = &Artifact{
		Path:     art.Path,
		Data:     data,
		Hash:     hash,
		StoredAt: time.Now(),
	}
	return hash, nil
}

func (m *MemStore) Get(ctx context.Context, path string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.calls.Get++

	art, ok := m.artifacts[path]
	if !ok {
		return nil, ErrNotFound{Path: path}
	}
	cp := *art
	return &cp, nil
}

func (m *MemStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.calls.Exists++
	_, ok := m.artifacts[path]
	return ok, nil
}

func (m *MemStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++
	if _, ok := m.artifacts[path]; !ok {
		return ErrNotFound{Path: path}
	}
	delete(m.artifacts, path)
	return nil
}

func (m *MemStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.calls.List++

	paths := make([]string, 0, len(m.artifacts))
	for p := range m.artifacts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemStore) Close() error { return nil }

// Calls returns a snapshot of the invocation counters.
func (m *MemStore) Calls() MemCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

var _ ArtifactStore = (*MemStore)(nil)

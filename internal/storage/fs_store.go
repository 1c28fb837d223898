package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// FSStore writes artifacts under a root directory, mirroring their output
// paths. Writes go through a temp file in the destination directory followed
// by a rename, so a half-written page is never visible at its final path.
type FSStore struct {
	root string
	mu   sync.RWMutex
}

// NewFSStore creates a filesystem artifact store rooted at root, creating
// the directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, builderrors.StoreFailed(root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, builderrors.StoreFailed(abs, err)
	}
	return &FSStore{root: abs}, nil
}

// Root returns the absolute output directory.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) destPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Put writes the artifact unless identical content is already at its path.
func (s *FSStore) Put(ctx context.Context, art *Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := art.Hash
	if hash == "" {
		sum := sha256.Sum256(art.Data)
		hash = hex.EncodeToString(sum[:])
	}

	dest := s.destPath(art.Path)
	if existing, err := os.ReadFile(dest); err == nil {
		sum := sha256.Sum256(existing)
		if hex.EncodeToString(sum[:]) == hash {
			return hash, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", builderrors.StoreFailed(art.Path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return "", builderrors.StoreFailed(art.Path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(art.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", builderrors.StoreFailed(art.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", builderrors.StoreFailed(art.Path, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", builderrors.StoreFailed(art.Path, err)
	}
	return hash, nil
}

func (s *FSStore) Get(ctx context.Context, path string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	dest := s.destPath(path)
	data, err := os.ReadFile(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Path: path}
		}
		return nil, builderrors.StoreFailed(path, err)
	}
	st, err := os.Stat(dest)
	if err != nil {
		return nil, builderrors.StoreFailed(path, err)
	}
	sum := sha256.Sum256(data)
	return &Artifact{
		Path:     path,
		Data:     data,
		Hash:     hex.EncodeToString(sum[:]),
		StoredAt: st.ModTime(),
	}, nil
}

func (s *FSStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.destPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, builderrors.StoreFailed(path, err)
}

func (s *FSStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.destPath(path))
	if os.IsNotExist(err) {
		return ErrNotFound{Path: path}
	}
	if err != nil {
		return builderrors.StoreFailed(path, err)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, builderrors.StoreFailed(s.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *FSStore) Close() error { return nil }

var _ ArtifactStore = (*FSStore)(nil)

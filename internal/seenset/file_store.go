package seenset

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the seen-set as a flat JSON array, rewritten
// atomically (temp file + rename) on every mutation. The set only
// grows; there is no compaction, matching a pipeline that runs
// indefinitely without needing eviction.
type FileStore struct {
	path   string
	logger *log.Logger

	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewFileStore loads (or initializes) a FileStore backed by path.
func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("seenset: create dir: %w", err)
	}

	s := &FileStore{path: path, logger: logger, seen: make(map[string]struct{})}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Printf("seenset: no existing file at %s, starting fresh", s.path)
			return nil
		}
		return fmt.Errorf("seenset: read %s: %w", s.path, err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("seenset: decode %s: %w", s.path, err)
	}
	for _, k := range keys {
		s.seen[k] = struct{}{}
	}
	s.logger.Printf("seenset: loaded %d sent records", len(keys))
	return nil
}

// save rewrites the whole file atomically: write to a temp file in the
// same directory, then rename over the original.
func (s *FileStore) save() error {
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("seenset: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".seenset-*.tmp")
	if err != nil {
		return fmt.Errorf("seenset: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("seenset: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("seenset: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("seenset: rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) IsSent(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok, nil
}

func (s *FileStore) MarkSent(ctx context.Context, key string) error {
	return s.MarkSentBatch(ctx, []string{key})
}

func (s *FileStore) MarkSentBatch(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, k := range keys {
		if _, ok := s.seen[k]; !ok {
			s.seen[k] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

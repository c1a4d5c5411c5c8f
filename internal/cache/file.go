package cache

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	atomicio "github.com/quantyard/trendrank/internal/io"
	"github.com/quantyard/trendrank/internal/oracle"
)

// FileStore keeps the whole cache in memory and mirrors every Put to a YAML
// snapshot file written atomically. A process killed mid-write leaves either
// the previous snapshot or the new one, never a torn file, so every committed
// entry survives an abrupt stop.
type FileStore struct {
	mem  *MemStore
	path string
}

// OpenFileStore loads the snapshot at path, starting empty if the file is
// missing or unreadable (a corrupt snapshot costs re-queries, not a crash).
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cache: empty snapshot path")
	}

	store := &FileStore{mem: NewMemStore(), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("read cache snapshot: %w", err)
	}

	var snapshot map[Key]oracle.Response
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return store, nil
	}
	for key, resp := range snapshot {
		store.mem.entries[key] = resp
	}
	return store, nil
}

func (s *FileStore) Get(key Key) (oracle.Response, bool) {
	return s.mem.Get(key)
}

// Put stores the response and flushes the snapshot before returning, so the
// entry is durable by the time the engine moves on to the next query. One
// flush per oracle call is cheap next to the seconds-scale call itself.
func (s *FileStore) Put(key Key, resp oracle.Response) error {
	if _, exists := s.mem.Get(key); exists {
		return nil
	}
	if err := s.mem.Put(key, resp); err != nil {
		return err
	}
	return s.flush()
}

func (s *FileStore) Len() int { return s.mem.Len() }

func (s *FileStore) Close() error { return s.flush() }

// Clear wipes the store and its snapshot. This is the whole-cache manual
// invalidation surface; there is no per-entry eviction.
func (s *FileStore) Clear() error {
	s.mem = NewMemStore()
	return s.flush()
}

func (s *FileStore) flush() error {
	s.mem.mu.RLock()
	data, err := yaml.Marshal(s.mem.entries)
	s.mem.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}
	if err := atomicio.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	return nil
}

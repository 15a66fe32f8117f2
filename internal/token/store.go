package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/multify/internal/models"
)

// StorageKey is the key the token record is stored under.
const StorageKey = "spotify_data"

// Store loads and saves the token record.
type Store interface {
	Load() (*models.TokenRecord, error)
	Save(record models.TokenRecord) error
}

// FileStore is a JSON key/value file holding the token record under [StorageKey].
// Other keys in the file are preserved.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored record, or nil when none has been saved.
func (s *FileStore) Load() (*models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}

	raw, ok := values[StorageKey]
	if !ok {
		return nil, nil
	}

	var record models.TokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", StorageKey, err)
	}
	return &record, nil
}

// Save overwrites the stored record.
func (s *FileStore) Save(record models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", StorageKey, err)
	}
	values[StorageKey] = raw

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode storage: %w", err)
	}
	return values, nil
}

// MemoryStore keeps the record in memory.
type MemoryStore struct {
	mu     sync.Mutex
	record *models.TokenRecord
	saves  int
}

// NewMemoryStore creates a MemoryStore preloaded with record, which may be nil.
func NewMemoryStore(record *models.TokenRecord) *MemoryStore {
	return &MemoryStore{record: record}
}

func (s *MemoryStore) Load() (*models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil, nil
	}
	r := *s.record
	return &r, nil
}

func (s *MemoryStore) Save(record models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &record
	s.saves++
	return nil
}

// SaveCount returns how many times Save was called.
func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Store keys
const (
	KeyToken           = "token"
	KeyUser            = "user"
	KeyTheme           = "theme"
	KeyCourseFormDraft = "courseFormDraft"
	KeySearchHistory   = "searchHistory"
)

var ErrKeyNotFound = errors.New("key not found")

// Store persists the client state (token, user, theme & drafts) as strings.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Broadcaster is implemented by stores shared between processes,
// so that a logout in one of them reaches the others.
type Broadcaster interface {
	PublishLogout(ctx context.Context, msg string) error
	// SubscribeLogout calls fn for every published logout until stop is called.
	SubscribeLogout(ctx context.Context, fn func(msg string)) (stop func() error, err error)
}

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Store = (*memoryStore)(nil)

func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

// fileStore keeps all keys in one JSON object on disk.
// The file is read on every Get so that changes made by other processes are seen.
type fileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*fileStore)(nil)

func NewFileStore(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating session dir")
	}
	return &fileStore{path: path}, nil
}

func (s *fileStore) load() (map[string]string, error) {
	data := make(map[string]string)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, errors.Wrap(err, "reading session file")
	}
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, errors.Wrap(err, "decoding session file")
	}
	return data, nil
}

func (s *fileStore) save(data map[string]string) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding session file")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "writing session file")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replacing session file")
}

func (s *fileStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *fileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data[key] = value
	return s.save(data)
}

func (s *fileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(data, k)
	}
	return s.save(data)
}

package memory

import (
	"context"
	"sync"
)

// MirrorStore is an in-memory implementation of app.MirrorStore.
type MirrorStore struct {
	mu      sync.RWMutex
	mirrors map[string][]byte
}

func NewMirrorStore() *MirrorStore {
	return &MirrorStore{
		mirrors: make(map[string][]byte),
	}
}

func (s *MirrorStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrors[key] = append([]byte(nil), value...)
	return nil
}

func (s *MirrorStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.mirrors[key]
	return value, ok, nil
}

func (s *MirrorStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mirrors, key)
	return nil
}

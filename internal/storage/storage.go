// Package storage содержит хранилища сессионных данных корзины.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound возвращается, если по ключу ничего не сохранено.
var ErrNotFound = errors.New("session blob not found")

// MemoryStore хранит данные в памяти процесса. Используется без Redis и в тестах.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Load возвращает сохранённые данные.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Save сохраняет данные по ключу.
func (s *MemoryStore) Save(ctx context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

// Delete удаляет данные по ключу.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key)
	return nil
}

// Close ничего не делает и нужен для совместимости с RedisStore.
func (s *MemoryStore) Close() error {
	return nil
}

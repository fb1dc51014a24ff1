package keystore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-process store.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]KeyInfo // raw key -> info
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]KeyInfo)}
}

func (m *Memory) Issue(ctx context.Context, user string) (string, error) {
	key, err := generateKey(user)
	if err != nil {
		return "", err
	}
	id, _, err := splitKey(key)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.keys[key] = KeyInfo{ID: id, User: user, CreatedAt: time.Now().UTC()}
	m.mu.Unlock()
	return key, nil
}

func (m *Memory) Validate(ctx context.Context, key string) (KeyInfo, error) {
	m.mu.RLock()
	info, ok := m.keys[key]
	m.mu.RUnlock()
	if !ok {
		return KeyInfo{}, ErrInvalidKey
	}
	return info, nil
}

func (m *Memory) List(ctx context.Context) ([]KeyInfo, error) {
	m.mu.RLock()
	out := make([]KeyInfo, 0, len(m.keys))
	for _, info := range m.keys {
		out = append(out, info)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) Revoke(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		return ErrInvalidKey
	}
	delete(m.keys, key)
	return nil
}

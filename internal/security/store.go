package security

import (
	"errors"
	"strings"
	"sync"
)

// StoragePrefix namespaces every key this package writes so Clear never
// touches unrelated application state sharing the same backing store.
const StoragePrefix = "secure_"

var ErrNotFound = errors.New("key not found in secure store")

// KV is the minimal key/value surface the secure store runs on. MemoryKV is
// the in-process implementation; anything cookie- or file-backed works too.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Keys() []string
}

// MemoryKV is a mutex-guarded in-memory KV.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *MemoryKV) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *MemoryKV) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// SecureStore persists values as encrypted blobs under namespaced keys.
type SecureStore struct {
	codec *Codec
	kv    KV
}

// NewSecureStore wraps kv with encryption under codec.
func NewSecureStore(codec *Codec, kv KV) *SecureStore {
	return &SecureStore{codec: codec, kv: kv}
}

// Set encrypts v and stores it under the namespaced key.
func (s *SecureStore) Set(key string, v any) error {
	blob, err := s.codec.Encrypt(v)
	if err != nil {
		return err
	}
	s.kv.Set(StoragePrefix+key, blob)
	return nil
}

// Get decrypts and returns the value stored under key.
func (s *SecureStore) Get(key string) (any, error) {
	blob, ok := s.kv.Get(StoragePrefix + key)
	if !ok {
		return nil, ErrNotFound
	}
	return s.codec.Decrypt(blob)
}

// Delete removes a single namespaced entry.
func (s *SecureStore) Delete(key string) {
	s.kv.Delete(StoragePrefix + key)
}

// Clear removes every entry under the namespace and nothing else.
func (s *SecureStore) Clear() {
	for _, key := range s.kv.Keys() {
		if strings.HasPrefix(key, StoragePrefix) {
			s.kv.Delete(key)
		}
	}
}

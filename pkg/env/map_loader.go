package env

import (
	"fmt"
	"sync"
)

// MapLoader is a Loader backed only by a map. The process
// environment is never consulted, which makes it suitable for
// embedding drivers and for tests.
type MapLoader struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMapLoader creates a MapLoader holding a copy of vars.
func NewMapLoader(vars map[string]string) *MapLoader {
	m := &MapLoader{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		m.vars[k] = v
	}
	return m
}

// Load merges the variables of a .env file into the map.
func (m *MapLoader) Load(path string) error {
	file := NewLoader()
	if err := file.Load(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range file.All() {
		m.vars[k] = v
	}
	return nil
}

func (m *MapLoader) Lookup(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[key]
	return v, ok
}

func (m *MapLoader) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

func (m *MapLoader) GetRequired(key string) (string, error) {
	v := m.Get(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

func (m *MapLoader) GetWithDefault(key, defaultValue string) string {
	if v := m.Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (m *MapLoader) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars[key] = value
	return nil
}

func (m *MapLoader) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string, len(m.vars))
	for k, v := range m.vars {
		result[k] = v
	}
	return result
}

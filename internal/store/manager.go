package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/fuse-framework/fuserecord/internal/config"
)

// DefaultDatasource is the name models resolve to when they don't declare one.
const DefaultDatasource = "default"

// Manager holds named datasources. It is populated once at startup and
// read-only afterwards.
type Manager struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewManager connects the default datasource plus any named extras from config.
func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	m := &Manager{stores: make(map[string]*Store)}

	def, err := New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect default datasource: %w", err)
	}
	m.stores[DefaultDatasource] = def

	for name, dsCfg := range cfg.Datasources {
		s, err := New(ctx, dsCfg)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("connect datasource %s: %w", name, err)
		}
		m.stores[name] = s
	}

	return m, nil
}

// Datasource returns the named store. An empty name resolves to the default.
func (m *Manager) Datasource(name string) (*Store, error) {
	if name == "" {
		name = DefaultDatasource
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown datasource: %s", name)
	}
	return s, nil
}

// Close closes all datasources.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stores {
		s.Close()
	}
}

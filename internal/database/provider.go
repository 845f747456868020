package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-finder/internal/config"
)

// Opener constructs a storage backend from configuration.
type Opener func(ctx context.Context, cfg *config.Config) (*Backend, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// RegisterBackend registers a backend constructor under name.
// This is called by the backend packages' callers to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[name] = open
}

// RegisteredBackends returns the names of all registered backends, sorted.
func RegisteredBackends() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	openersMu.RLock()
	open, ok := openers[cfg.Storage.Backend]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage backend %q not registered", cfg.Storage.Backend)
	}
	b, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Storage.Backend, err)
	}
	return b, nil
}

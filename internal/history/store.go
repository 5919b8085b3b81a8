package history

import (
	"fmt"

	"research-agent/internal/config"
)

// Open builds the configured Store and initializes it.
func Open(cfg config.HistoryConfig) (Store, error) {
	var store Store
	switch cfg.Backend {
	case "sqlite":
		store = NewSQLiteStore(cfg.Path)
	case "csv":
		store = NewCSVStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("init history store: %w", err)
	}
	return store, nil
}

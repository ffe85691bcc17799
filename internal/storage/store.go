package storage

import (
	"context"
	"fmt"

	"github.com/wonny/tickerflow/internal/contracts"
	"github.com/wonny/tickerflow/pkg/config"
	"github.com/wonny/tickerflow/pkg/database"
)

// Aliases so callers can errors.Is against either package
var (
	ErrWrite    = contracts.ErrStorageWrite
	ErrNotFound = contracts.ErrNotFound
)

// Open builds the store selected by STORE_BACKEND.
// The returned closer releases backend resources.
func Open(ctx context.Context, cfg *config.Config) (contracts.PartitionStore, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewPostgresStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case "file", "":
		store, err := NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

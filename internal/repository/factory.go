package repository

import (
	"log"

	"github.com/pkg/errors"

	"short-drama-service/internal/config"
)

// NewStoreFromConfig opens the backend selected by cfg.StorageBackend and
// migrates its schema.
func NewStoreFromConfig(cfg *config.Config) (Store, error) {
	if cfg.StorageBackend == config.BackendMemory {
		log.Println("Using in-memory store, data will not survive a restart")
		return NewMemoryStore(), nil
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	if err := Migrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}
	log.Printf("Connected to %s store", cfg.StorageBackend)
	return NewGormStore(db), nil
}

package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mxxx222/converto-receipts/models"
	"github.com/mxxx222/converto-receipts/pkg/store"
)

// openStore picks the persistence backend: postgres when DB_DSN is set,
// bbolt when BOLT_PATH is set, otherwise in-memory (dev only, not durable).
func openStore(cfg appConfig) (store.Store, error) {
	switch {
	case cfg.DSN != "":
		db, err := openGorm(cfg.DSN)
		if err != nil {
			return nil, err
		}
		log.Printf("store: postgres")
		return store.NewGormStore(db, cfg.MaxUploadBytes), nil
	case cfg.BoltPath != "":
		s, err := store.NewBoltStore(cfg.BoltPath, cfg.MaxUploadBytes)
		if err != nil {
			return nil, err
		}
		log.Printf("store: bolt at %s", cfg.BoltPath)
		return s, nil
	default:
		log.Printf("store: in-memory (set DB_DSN or BOLT_PATH for durability)")
		return store.NewMemoryStore(cfg.MaxUploadBytes), nil
	}
}

func openGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	// Schema migrations controlled by DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := strings.ToLower(os.Getenv("DB_AUTO_MIGRATE")); v == "false" || v == "0" || v == "no" {
		shouldMigrate = false
	}
	if shouldMigrate {
		if err := db.AutoMigrate(&models.Receipt{}); err != nil {
			log.Printf("migration warning (receipts): %v", err)
		}
	}
	return db, nil
}

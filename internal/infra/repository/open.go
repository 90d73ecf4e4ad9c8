package repository

import (
	"context"
	"fmt"

	"storefront/internal/config"
	"storefront/internal/infra/db"
	repo "storefront/internal/repository"
)

// 設定に応じて選んだ永続スロットとカタログ
type Storage struct {
	KV       repo.KVStore
	Products repo.ProductRepository

	closers []func() error
}

// Open は STORAGE_DRIVER に応じてKVとカタログを組み立てる。
// postgres のときはカタログファイルを products テーブルに投入して使う。
func Open(ctx context.Context, cfg config.Config) (*Storage, error) {
	catalog, err := LoadProductCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{Products: catalog}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		s.KV = NewMemoryKVStore()

	case config.StorageFile:
		kv, err := NewFileKVStore(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		s.KV = kv

	case config.StorageSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sqlDB.Close)

		kv, err := NewSQLiteKVStore(ctx, sqlDB)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.KV = kv

	case config.StoragePostgres:
		gormDB, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sqlDB.Close)

		kv := NewKVGormRepository(gormDB)
		if err := kv.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate kv_entries: %w", err)
		}

		products := NewProductGormRepository(gormDB)
		if err := products.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate products: %w", err)
		}
		if err := products.Seed(ctx, catalog.All()); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("seed products: %w", err)
		}

		s.KV = kv
		s.Products = products

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return s, nil
}

func (s *Storage) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

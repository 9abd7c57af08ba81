package stores

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"orbit/config"
	"orbit/core"
	"orbit/stores/aws"
	"orbit/stores/filesystem"
	"orbit/stores/memory"
	"orbit/stores/postgres"
	"orbit/stores/sqlite"
)

// GetStore builds the item store selected by cfg.Type.
func GetStore(ctx context.Context, cfg config.Storage) (core.ItemStore, error) {
	var (
		store core.ItemStore
		err   error
	)
	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case config.StorageFilesystem:
		storageField["basePath"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case config.StorageSQLite:
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(ctx, cfg.DataSourceName)
	case config.StoragePostgres:
		store, err = postgres.NewStore(ctx, cfg.DataSourceName)
	case config.StorageS3:
		storageField["bucketName"] = cfg.Bucket
		if cfg.Endpoint != "" {
			storageField["endpoint"] = cfg.Endpoint
		}
		store, err = aws.NewStore(ctx, cfg.Bucket, cfg.Endpoint)
	case config.StorageMemory, "":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		logrus.WithFields(storageField).WithError(err).Error("Failed to open storage")
		return nil, err
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

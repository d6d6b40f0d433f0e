// Package app assembles the store, generation client and pipeline from config
// for the ledgerask binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerask/ledgerask/internal/config"
	"github.com/ledgerask/ledgerask/internal/generation"
	"github.com/ledgerask/ledgerask/internal/pipeline"
	"github.com/ledgerask/ledgerask/internal/query"
	"github.com/ledgerask/ledgerask/internal/schema"
	s3store "github.com/ledgerask/ledgerask/internal/storage/s3"
	"github.com/ledgerask/ledgerask/internal/store"
)

func ObjectStore(ctx context.Context, cfg config.Config) (*s3store.Store, error) {
	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize object store: %w", err)
	}
	return objectStore, nil
}

// Opener returns the store opener for the configured driver. The parquet driver
// connects to the object store eagerly so misconfiguration fails at startup.
func Opener(ctx context.Context, cfg config.Config) (store.Opener, error) {
	switch cfg.Store.Driver {
	case store.DriverDuckDB:
		return store.DuckDBOpener{Path: cfg.Store.Path, ReadOnly: cfg.Store.ReadOnly}, nil
	case store.DriverPostgres:
		return store.PostgresOpener{DSN: cfg.Store.DSN}, nil
	case store.DriverParquet:
		objectStore, err := ObjectStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store.ParquetOpener{Store: objectStore, Dataset: cfg.Store.Dataset}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func GenerationConfig(cfg config.Config) generation.Config {
	return generation.Config{
		Endpoint:          cfg.Generation.Endpoint,
		APIKey:            cfg.Generation.APIKey,
		Model:             cfg.Generation.Model,
		MaxOutputTokens:   cfg.Generation.MaxOutputTokens,
		Temperature:       cfg.Generation.Temperature,
		TopP:              cfg.Generation.TopP,
		TopK:              cfg.Generation.TopK,
		RepetitionPenalty: cfg.Generation.RepetitionPenalty,
		StopSequences:     cfg.Generation.StopSequences,
		Timeout:           cfg.Generation.Timeout,
	}
}

// Service wires the question pipeline around opener.
func Service(cfg config.Config, opener store.Opener, logger *slog.Logger) (*pipeline.Service, error) {
	generator, err := generation.NewClient(GenerationConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("initialize generation client: %w", err)
	}
	return pipeline.NewService(pipeline.Options{
		Opener:       opener,
		Catalog:      schema.NewCatalog(),
		Generator:    generator,
		Executor:     query.NewEngine(),
		GuardEnabled: cfg.Guard.Enabled,
		RowLimit:     cfg.Store.RowLimit,
		Logger:       logger,
	})
}

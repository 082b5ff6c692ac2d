package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/pkg/config"
	"sciencetopia/backend/pkg/logger"
)

const schemaVersion = "knowledge_schema_v1"

func main() {
	force := flag.Bool("force", false, "Force migration even if already applied")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Neo4j schema migration...")

	ctx := context.Background()
	store, err := graphstore.Connect(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer store.Close(context.Background())

	// Check if migration already applied
	if !*force {
		applied, err := checkMigrationApplied(ctx, store)
		if err != nil {
			log.Fatal("Failed to check migration status", zap.Error(err))
		}
		if applied {
			log.Info("Migration already applied. Use -force to reapply.", zap.String("version", schemaVersion))
			os.Exit(0)
		}
	}

	log.Info("Creating constraints and full-text indexes...",
		zap.Int("statements", len(graphstore.SchemaStatements())),
	)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	if err := markMigrationApplied(ctx, store); err != nil {
		log.Warn("Failed to mark migration as applied", zap.Error(err))
	}

	log.Info("Migration completed successfully!", zap.String("version", schemaVersion))
}

func checkMigrationApplied(ctx context.Context, store *graphstore.Client) (bool, error) {
	query := `
		MATCH (m:Migration {version: $version})
		RETURN m.applied_at AS applied_at
	`
	applied, err := store.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		record, err := graphstore.Single(ctx, tx, query, map[string]any{"version": schemaVersion})
		return record != nil, err
	})
	if err != nil {
		return false, err
	}
	return applied.(bool), nil
}

func markMigrationApplied(ctx context.Context, store *graphstore.Client) error {
	query := `
		MERGE (m:Migration {version: $version})
		SET m.applied_at = datetime(),
		    m.description = 'Content name keys, membership ids and full-text search indexes'
	`
	_, err := store.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return graphstore.Collect(ctx, tx, query, map[string]any{"version": schemaVersion})
	})
	return err
}

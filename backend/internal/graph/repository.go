// Package graph holds every Cypher statement the services issue. Methods run
// one managed transaction per logical operation through graphstore.Client.
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/pkg/logger"
)

// OverviewEdgeLimit caps FetchGraph; there is no pagination
const OverviewEdgeLimit = 1000

// Repository handles all Neo4j database operations
type Repository struct {
	store  *graphstore.Client
	logger *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(store *graphstore.Client) *Repository {
	return &Repository{
		store:  store,
		logger: logger.Named("graph"),
	}
}

// Ping reports whether the store is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func read[T any](ctx context.Context, r *Repository, work func(tx neo4j.ManagedTransaction) (T, error)) (T, error) {
	out, err := r.store.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

func write[T any](ctx context.Context, r *Repository, work func(tx neo4j.ManagedTransaction) (T, error)) (T, error) {
	out, err := r.store.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

// readRecords runs a single read query and returns all rows
func (r *Repository) readRecords(ctx context.Context, query string, p map[string]any) ([]*neo4j.Record, error) {
	return read(ctx, r, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		return graphstore.Collect(ctx, tx, query, p)
	})
}

// countWrite runs a single write query returning one integer column
func (r *Repository) countWrite(ctx context.Context, query string, p map[string]any, column string) (int64, error) {
	return write(ctx, r, func(tx neo4j.ManagedTransaction) (int64, error) {
		record, err := graphstore.Single(ctx, tx, query, p)
		if err != nil || record == nil {
			return 0, err
		}
		return getInt64FromRecord(record, column), nil
	})
}

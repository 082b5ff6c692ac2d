// Package graphstore wraps the Neo4j driver: sessions, managed transactions,
// error classification and schema bootstrap. It holds no business logic.
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sciencetopia/backend/pkg/config"
	"sciencetopia/backend/pkg/logger"
)

// Work is the body of a managed transaction. It runs once; a failure is
// returned to the caller and never retried.
type Work func(tx neo4j.ManagedTransaction) (any, error)

// Client runs read and write transactions against a single database
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// Connect creates a driver from cfg and verifies connectivity
func Connect(ctx context.Context, cfg *config.Config) (*Client, error) {
	timeout := time.Duration(cfg.Neo4jTimeoutSeconds) * time.Second

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		NoRetry,
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.Neo4jMaxPoolSize
			c.SocketConnectTimeout = timeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, Classify(fmt.Errorf("failed to verify Neo4j connectivity: %w", err))
	}

	return New(driver, cfg.Neo4jDatabase), nil
}

// NoRetry turns off the driver's transaction-function retries so every
// transaction runs exactly once
func NoRetry(c *neo4j.Config) {
	c.MaxTransactionRetryTime = 0
}

// New wraps an existing driver; an empty database selects the server default
func New(driver neo4j.DriverWithContext, database string) *Client {
	return &Client{
		driver:   driver,
		database: database,
		logger:   logger.Named("graphstore"),
	}
}

// Close closes the driver and its connection pool
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

// Read runs work in a read transaction
func (c *Client) Read(ctx context.Context, work Work) (any, error) {
	return c.execute(ctx, neo4j.AccessModeRead, work)
}

// Write runs work in a write transaction; every statement in work commits or
// none do
func (c *Client) Write(ctx context.Context, work Work) (any, error) {
	return c.execute(ctx, neo4j.AccessModeWrite, work)
}

func (c *Client) execute(ctx context.Context, mode neo4j.AccessMode, work Work) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	var (
		out any
		err error
	)
	if mode == neo4j.AccessModeRead {
		out, err = session.ExecuteRead(ctx, neo4j.ManagedTransactionWork(work))
	} else {
		out, err = session.ExecuteWrite(ctx, neo4j.ManagedTransactionWork(work))
	}
	if err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// Ping verifies the store is reachable
func (c *Client) Ping(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

// Collect runs query inside tx and returns every record
func Collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

// Single runs query inside tx and returns the first record, or nil when the
// query produced no rows
func Single(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (*neo4j.Record, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if result.Next(ctx) {
		record := result.Record()
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		return record, nil
	}
	return nil, result.Err()
}

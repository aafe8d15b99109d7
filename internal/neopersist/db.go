// Package neopersist provides a convenient wrapper around the official Neo4j Go driver
// to describe graph reads and writes as data and to normalize their results.
package neopersist

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DBRunner defines the interface for a generic query executor.
// It abstracts the execution of a Cypher query, allowing for different implementations
// or mocking in tests.
type DBRunner interface {
	// Run executes a given Cypher query with parameters and returns a fully-buffered result.
	Run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error)
}

// TxRunner is a DBRunner that can also run several queries inside one managed
// write transaction. The work function may be invoked more than once when the
// driver retries a transient failure, so it must not carry side effects outside
// the graph.
type TxRunner interface {
	DBRunner
	ExecuteWrite(ctx context.Context, work func(tx DBRunner) error) error
}

// ExecutorConfig holds the connection settings of a Neo4jExecutor.
type ExecutorConfig struct {
	URI         string
	Username    string
	Password    string
	DBName      string
	MaxPoolSize int
	Timeout     time.Duration
}

//---

// Neo4jExecutor is a concrete implementation of the TxRunner interface that uses the
// official Neo4j Go driver. It manages the driver instance and the target database name.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewNeo4jExecutor creates and initializes a new Neo4jExecutor.
// It establishes a connection driver with the provided credentials.
//
// Parameters:
//   - cfg: The connection URI, credentials, target database and pool settings.
//     Zero MaxPoolSize and Timeout keep the driver defaults.
//
// Returns:
//
//	A pointer to the newly created Neo4jExecutor or an error if the driver creation fails.
func NewNeo4jExecutor(cfg ExecutorConfig) (*Neo4jExecutor, error) {
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		if cfg.Timeout > 0 {
			c.SocketConnectTimeout = cfg.Timeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{Driver: driver, DBName: cfg.DBName}, nil
}

// Verify checks the connectivity to the Neo4j database.
//
// Returns:
//
//	An error if the connection cannot be established.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Close releases the driver and its connection pool.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	if e == nil || e.Driver == nil {
		return nil
	}
	return e.Driver.Close(ctx)
}

// Run executes a Cypher query using the modern ExecuteQuery function, which handles
// session and transaction management automatically for robust and simple execution.
// This function is suitable for both read and write operations.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - query: The Cypher query string to execute.
//   - params: A map of parameters to be used in the query.
//
// Returns:
//
//	An EagerResult containing all buffered records from the query, or an error if
//	the execution fails.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer, // Buffers all results in memory before returning.
		neo4j.ExecuteQueryWithDatabase(e.DBName),
	)

	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}

	return result, nil
}

// ExecuteWrite opens a write session and runs work inside a single managed
// transaction. Every query issued through the DBRunner handed to work commits or
// rolls back together.
func (e *Neo4jExecutor) ExecuteWrite(ctx context.Context, work func(tx DBRunner) error) error {
	session := e.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: e.DBName,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(&txRunner{tx: tx})
	})
	if err != nil {
		return fmt.Errorf("error executing neo4j transaction: %w", err)
	}
	return nil
}

// txRunner adapts a managed transaction to the DBRunner interface by buffering
// each result the same way ExecuteQuery does.
type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (t *txRunner) Run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	res, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, fmt.Errorf("error reading neo4j result keys: %w", err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error collecting neo4j records: %w", err)
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, fmt.Errorf("error consuming neo4j result: %w", err)
	}
	return &neo4j.EagerResult{Keys: keys, Records: records, Summary: summary}, nil
}

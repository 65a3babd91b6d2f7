// Package neo4jdb writes graph ops to Neo4j.
package neo4jdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/brunobiangulo/fingraph/graph"
)

// ErrPasswordRequired is returned by New when no password is configured.
var ErrPasswordRequired = errors.New("neo4jdb: password required")

// Config holds the connection settings.
type Config struct {
	URI         string        `json:"uri" yaml:"uri"`
	User        string        `json:"user" yaml:"user"`
	Password    string        `json:"password" yaml:"password"`
	Database    string        `json:"database" yaml:"database"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxPoolSize int           `json:"max_pool_size" yaml:"max_pool_size"`
}

// DefaultConfig points at a local server.
func DefaultConfig() Config {
	return Config{
		URI:         "bolt://localhost:7687",
		User:        "neo4j",
		Timeout:     10 * time.Second,
		MaxPoolSize: 1,
	}
}

// Client is a graph.Writer backed by a Neo4j driver.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

var _ graph.Writer = (*Client)(nil)

// New creates the driver and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Password == "" {
		return nil, ErrPasswordRequired
	}
	def := DefaultConfig()
	if cfg.URI == "" {
		cfg.URI = def.URI
	}
	if cfg.User == "" {
		cfg.User = def.User
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = def.MaxPoolSize
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.Timeout
		// Failed writes are reported, not replayed.
		c.MaxTransactionRetryTime = 0
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	slog.Info("neo4jdb: connected", "uri", cfg.URI, "database", cfg.Database)
	return &Client{Driver: driver, Database: cfg.Database}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

func (c *Client) session(ctx context.Context) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
}

// EnsureSchema creates the uniqueness constraints. Failures are logged and
// skipped so a read-only or older server does not block the run.
func (c *Client) EnsureSchema(ctx context.Context) {
	session := c.session(ctx)
	defer session.Close(ctx)

	for _, con := range graph.Constraints {
		q, err := constraintStatement(con)
		if err != nil {
			slog.Warn("neo4jdb: skipping constraint", "name", con.Name, "error", err)
			continue
		}
		res, err := session.Run(ctx, q, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			slog.Warn("neo4jdb: schema init failed (continuing)", "constraint", con.Name, "error", err)
		}
	}
}

// Apply implements graph.Writer. All ops share one session and each runs in
// its own write transaction.
func (c *Client) Apply(ctx context.Context, ops []graph.Op) (int, error) {
	if c == nil || c.Driver == nil {
		return 0, errors.New("neo4jdb: client closed")
	}
	session := c.session(ctx)
	defer session.Close(ctx)

	for i, op := range ops {
		cypher, params, err := Statement(op)
		if err != nil {
			return i, err
		}
		_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			res, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			_, err = res.Consume(ctx)
			return nil, err
		})
		if err != nil {
			return i, fmt.Errorf("neo4jdb: %s: %w", op, err)
		}
	}
	return len(ops), nil
}

package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	"github.com/zatekoja/clinicretail/pkg/config"
	"github.com/zatekoja/clinicretail/pkg/retry"
)

// Client represents a relational database client
type Client struct {
	db *sqlx.DB
}

// NewClient opens the configured database and pings it with exponential backoff retry
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.Driver == "sqlite3" {
		// One writer; in-memory databases are per connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	logger := observability.GetLogger()
	err = retry.Do(
		context.Background(),
		retry.DefaultConfig(),
		cfg.Driver,
		func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("retry_in", nextDelay).
				Str("driver", cfg.Driver).
				Msg("Database connection attempt failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s after retries: %w", cfg.Driver, err)
	}

	logger.Info().Str("driver", cfg.Driver).Msg("Successfully connected to database")
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already open connection
func NewClientFromDB(db *sqlx.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying database connection
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Dialect returns the goqu dialect name for the driver
func (c *Client) Dialect() string {
	if c.db.DriverName() == "sqlite3" {
		return "sqlite3"
	}
	return "postgres"
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Package testutil provides testing utilities for the FarmFlow backend.
// It includes testcontainers for PostgreSQL, mock factories, and common
// test helpers.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "farmflow_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "farmflow_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateInventorySchema creates the inventory tables used by the service.
// This mirrors the production migrations closely enough for integration tests.
func (c *PostgresContainer) CreateInventorySchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			sku VARCHAR(100) UNIQUE NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT 'produce',
			unit VARCHAR(50) NOT NULL DEFAULT 'unit',
			unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stocks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			product_id UUID NOT NULL REFERENCES products(id),
			location VARCHAR(255) NOT NULL DEFAULT 'main',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS lots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			product_id UUID NOT NULL REFERENCES products(id),
			stock_id UUID NOT NULL REFERENCES stocks(id),
			lot_number VARCHAR(100) NOT NULL,
			initial_quantity INTEGER NOT NULL,
			remaining_quantity INTEGER NOT NULL,
			manufacture_date DATE NOT NULL,
			expiry_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT lots_lot_number_unique UNIQUE (product_id, lot_number),
			CONSTRAINT lots_quantity_positive CHECK (initial_quantity > 0),
			CONSTRAINT lots_remaining_within_initial CHECK (remaining_quantity >= 0 AND remaining_quantity <= initial_quantity),
			CONSTRAINT lots_dates_ordered CHECK (manufacture_date <= expiry_date)
		);

		CREATE TABLE IF NOT EXISTS lot_allocations (
			plan_id UUID NOT NULL,
			lot_id UUID NOT NULL REFERENCES lots(id),
			quantity INTEGER NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT lot_allocations_pkey PRIMARY KEY (plan_id, lot_id),
			CONSTRAINT lot_allocations_quantity_positive CHECK (quantity > 0)
		);

		CREATE TABLE IF NOT EXISTS expiry_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			lot_id UUID NOT NULL REFERENCES lots(id) ON DELETE CASCADE,
			tier VARCHAR(20) NOT NULL,
			days_until_expiry INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT expiry_alerts_tier_valid CHECK (tier IN ('WATCH', 'ELEVATED', 'CRITICAL', 'EXPIRED')),
			CONSTRAINT expiry_alerts_lot_tier_unique UNIQUE (lot_id, tier)
		);

		CREATE INDEX IF NOT EXISTS idx_lots_fefo ON lots (product_id, expiry_date, id);
		CREATE INDEX IF NOT EXISTS idx_expiry_alerts_tier ON expiry_alerts (tier);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create inventory schema: %w", err)
	}

	return nil
}

// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS alignment_receipts (
			receipt_id SERIAL PRIMARY KEY,
			operation_id UUID NOT NULL,
			kind VARCHAR(32) NOT NULL,
			item_ids BIGINT[],
			currency_spent NUMERIC(78, 0) NOT NULL,
			shares_spent NUMERIC(78, 0) NOT NULL,
			floor_price NUMERIC(78, 0) NOT NULL,
			lp_minted NUMERIC(78, 0) NOT NULL,
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_alignment_receipts_timestamp ON alignment_receipts(receipt_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_alignment_receipts_kind ON alignment_receipts(kind);

		CREATE TABLE IF NOT EXISTS yield_receipts (
			receipt_id SERIAL PRIMARY KEY,
			operation_id UUID NOT NULL,
			claimed NUMERIC(78, 0) NOT NULL,
			compounded NUMERIC(78, 0) NOT NULL,
			paid_out NUMERIC(78, 0) NOT NULL,
			recipient VARCHAR(64),
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_yield_receipts_timestamp ON yield_receipts(receipt_timestamp DESC);

		CREATE TABLE IF NOT EXISTS inventory_events (
			event_id SERIAL PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			item_id BIGINT NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_inventory_events_item ON inventory_events(item_id);
		CREATE INDEX IF NOT EXISTS idx_inventory_events_timestamp ON inventory_events(event_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

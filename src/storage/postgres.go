package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"market-depth/src/helpers"
	"market-depth/src/logger"
	"market-depth/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresSink appends the raw event stream to Postgres, one schema per
// executable so several deployments can share a database.
type PostgresSink struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresSink(cfg *models.MConfig, log *logger.Logger) (*PostgresSink, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresSink{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresSink) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresSink initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresSink) createTables() error {
	for _, table := range []string{"book_snapshots", "book_updates"} {
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS "%s"."%s" (
				id BIGSERIAL PRIMARY KEY,
				instrument TEXT NOT NULL,
				sequence BIGINT NOT NULL,
				payload JSONB NOT NULL,
				received_at TIMESTAMPTZ NOT NULL
			);
		`, d.Schema, table)
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}

		idx := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_instrument_seq ON "%s"."%s" (instrument, sequence);`,
			table, d.Schema, table)
		if _, err := d.DB.Exec(idx); err != nil {
			return fmt.Errorf("failed to index %s: %w", table, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresSink) SaveSnapshot(instrument string, sequence int64, payload []byte, receivedAt time.Time) error {
	return d.insert("book_snapshots", instrument, sequence, payload, receivedAt)
}

// -----------------------------------------------------------------------------

func (d *PostgresSink) SaveUpdate(instrument string, sequence int64, payload []byte, receivedAt time.Time) error {
	return d.insert("book_updates", instrument, sequence, payload, receivedAt)
}

// -----------------------------------------------------------------------------

func (d *PostgresSink) insert(table, instrument string, sequence int64, payload []byte, receivedAt time.Time) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (instrument, sequence, payload, received_at) VALUES ($1, $2, $3, $4)`,
		d.Schema, table)

	if _, err := d.DB.Exec(query, instrument, sequence, string(payload), receivedAt.UTC()); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("insert into %s failed", table), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresSink) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

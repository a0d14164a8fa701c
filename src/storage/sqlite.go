package storage

import (
	"database/sql"
	"fmt"
	"time"

	"market-depth/src/helpers"
	"market-depth/src/logger"
	"market-depth/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// SQLiteSink appends the raw event stream to a local SQLite database.
type SQLiteSink struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteSink(cfg *models.MConfig, log *logger.Logger) (*SQLiteSink, error) {
	return &SQLiteSink{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteSink) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteSink) createTables() error {
	// Append-only event log: events survive restarts, no drops.
	for _, table := range []string{"book_snapshots", "book_updates"} {
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				instrument TEXT NOT NULL,
				sequence INTEGER NOT NULL,
				payload TEXT NOT NULL,
				received_at TIMESTAMP NOT NULL
			);
		`, table)
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}

		idx := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_instrument_seq ON %s (instrument, sequence);",
			table, table)
		if _, err := d.DB.Exec(idx); err != nil {
			return fmt.Errorf("failed to index %s: %w", table, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteSink) SaveSnapshot(instrument string, sequence int64, payload []byte, receivedAt time.Time) error {
	return d.insert("book_snapshots", instrument, sequence, payload, receivedAt)
}

// -----------------------------------------------------------------------------

func (d *SQLiteSink) SaveUpdate(instrument string, sequence int64, payload []byte, receivedAt time.Time) error {
	return d.insert("book_updates", instrument, sequence, payload, receivedAt)
}

// -----------------------------------------------------------------------------

func (d *SQLiteSink) insert(table, instrument string, sequence int64, payload []byte, receivedAt time.Time) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (instrument, sequence, payload, received_at) VALUES (?, ?, ?, ?)", table)

	if _, err := d.DB.Exec(query, instrument, sequence, string(payload), receivedAt.UTC()); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("insert into %s failed", table), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// CountEvents returns the number of persisted rows for one instrument.
func (d *SQLiteSink) CountEvents(table, instrument string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE instrument = ?", table)
	if err := d.DB.QueryRow(query, instrument).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteSink) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

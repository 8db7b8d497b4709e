package database

import (
	"context"
	"fmt"
	"strings"

	"tosgamelogs/internal/log"
)

// Migration represents a database migration
type Migration struct {
	ID          int
	Description string
	SQL         string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		ID:          1,
		Description: "Initial schema creation",
		SQL: `
CREATE TABLE IF NOT EXISTS gamelogs (
	hash TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	uploader TEXT NOT NULL DEFAULT '',
	upload_id TEXT NOT NULL DEFAULT '',
	filename_time DATETIME,
	uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	clean_content TEXT NOT NULL,
	game TEXT REFERENCES games (gist)
);

CREATE TABLE IF NOT EXISTS games (
	gist TEXT PRIMARY KEY,
	from_log TEXT UNIQUE NOT NULL REFERENCES gamelogs (hash),
	first_log TEXT UNIQUE NOT NULL REFERENCES gamelogs (hash),
	message_count INTEGER NOT NULL,
	analysis TEXT NOT NULL,
	analysis_version INTEGER NOT NULL,
	victor TEXT,
	ended_day INTEGER NOT NULL,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS games_by_version ON games (analysis_version);
CREATE INDEX IF NOT EXISTS gamelogs_by_game ON gamelogs (game);`,
	},
	{
		ID:          2,
		Description: "Per-player rows for game lookups",
		SQL: `
CREATE TABLE IF NOT EXISTS game_players (
	gist TEXT NOT NULL REFERENCES games (gist) ON DELETE CASCADE,
	number INTEGER NOT NULL,
	game_name TEXT NOT NULL,
	account_name TEXT NOT NULL,
	starting_role TEXT NOT NULL,
	ending_role TEXT NOT NULL,
	faction TEXT,
	won BOOLEAN NOT NULL,
	died TEXT,
	PRIMARY KEY (gist, number)
);

CREATE INDEX IF NOT EXISTS game_players_by_account ON game_players (account_name COLLATE NOCASE);`,
	},
	{
		ID:          3,
		Description: "Stable player ids by account name",
		SQL: `
CREATE TABLE IF NOT EXISTS names (
	account_name TEXT PRIMARY KEY,
	player INTEGER NOT NULL
);`,
	},
}

// runMigrations executes all pending migrations
func (d *Database) runMigrations(ctx context.Context) error {
	if err := d.ensureSchemaVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := d.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}
	log.Debug("database: current schema version", "version", currentVersion)

	for _, migration := range migrations {
		if migration.ID <= currentVersion {
			continue
		}
		log.Info("database: applying migration", "id", migration.ID, "description", migration.Description)
		if err := d.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.ID, err)
		}
	}
	return nil
}

func (d *Database) ensureSchemaVersionTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// SchemaVersion returns the ID of the newest applied migration.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := d.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version;`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// applyMigration applies a single migration
func (d *Database) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = true"); err != nil {
		return fmt.Errorf("failed to defer foreign keys: %w", err)
	}

	statements := strings.Split(migration.SQL, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration statement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?);`, migration.ID); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	ID          int
	Description string
	Applied     bool
}

// MigrationStatus returns the status of all known migrations.
func (d *Database) MigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT version FROM schema_version ORDER BY version;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, 0, len(migrations))
	for _, migration := range migrations {
		status = append(status, MigrationStatus{
			ID:          migration.ID,
			Description: migration.Description,
			Applied:     applied[migration.ID],
		})
	}
	return status, nil
}

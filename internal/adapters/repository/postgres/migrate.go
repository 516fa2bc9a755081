package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// Migrate applies every pending up migration in name order. Applied
// migrations are recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	names, err := upMigrations()
	if err != nil {
		return err
	}

	for _, name := range names {
		var applied bool
		err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&applied)
		if err != nil {
			return storageErr("failed to read schema_migrations", err)
		}
		if applied {
			continue
		}
		if err := applyMigration(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}

// ApplyMigration runs the single migration file matching name, e.g.
// "create_votes" or "003_create_votes.down".
func ApplyMigration(ctx context.Context, db *sql.DB, name string) (string, error) {
	file, err := migrationFileName(name)
	if err != nil {
		return "", err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return "", err
	}
	return file, applyMigration(ctx, db, file)
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return storageErr("failed to create schema_migrations", err)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, file string) error {
	content, err := migrationFiles.ReadFile(migrationsDir + "/" + file)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", file, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return storageErr(fmt.Sprintf("failed to execute migration %s", file), err)
	}

	if strings.HasSuffix(file, ".up.sql") {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, file)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE name = $1`, strings.TrimSuffix(file, ".down.sql")+".up.sql")
	}
	if err != nil {
		return storageErr("failed to record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit migration", err)
	}
	return nil
}

func upMigrations() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func migrationFileName(name string) (string, error) {
	pattern := fmt.Sprintf(`^.*%s(\.up)?\.sql$`, regexp.QuoteMeta(name))
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid migration name %q: %w", name, err)
	}

	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	if err != nil {
		return "", fmt.Errorf("failed to read migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if regex.MatchString(entry.Name()) {
			return entry.Name(), nil
		}
	}

	return "", fmt.Errorf("migration %q not found", name)
}

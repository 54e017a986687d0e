// Package store opens the sqlite database that optionally mirrors dialogue
// transcripts, and keeps its schema current with goose migrations.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Open connects to the sqlite database at dsn, applies pragmas and runs all
// pending migrations.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*sql.DB, error) {
	inMemory := dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")

	if !inMemory {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory %s: %w", dir, err)
		}
	}

	logger.Debug().Str("dsn", dsn).Msg("Connecting to sqlite")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if inMemory {
		// Every new connection to :memory: is a fresh database.
		db.SetMaxOpenConns(1)
	}

	if err := configurePragmas(ctx, db, inMemory); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func configurePragmas(ctx context.Context, db *sql.DB, inMemory bool) error {
	pragmas := []string{
		"foreign_keys = ON",
		"busy_timeout = 5000", // 5 second timeout
	}
	if !inMemory {
		pragmas = append(pragmas, "journal_mode = WAL", "synchronous = NORMAL")
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, "PRAGMA "+p); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug().
			Int64("version", r.Source.Version).
			Dur("duration", r.Duration).
			Msg("Applied migration")
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationPool opens the transactions migrations run in. *pgxpool.Pool implements it.
type MigrationPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens the pool backing the preferences table and fails fast when the
// database is unreachable.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening preferences database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reaching preferences database: %w", err)
	}
	return pool, nil
}

// migrationFiles lists the .sql files in dir by name, so numbered prefixes apply in order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing migrations in %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// RunMigrations brings the preferences schema up to date from the files in
// migrationsDir. The schema statements are idempotent and are replayed on every
// start. It returns how many files ran, including on failure.
func RunMigrations(ctx context.Context, pool MigrationPool, migrationsDir string, log *slog.Logger) (int, error) {
	files, err := migrationFiles(migrationsDir)
	if err != nil {
		return 0, err
	}

	for applied, path := range files {
		stmt, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("loading migration %s: %w", path, err)
		}
		if err := applyMigration(ctx, pool, string(stmt)); err != nil {
			return applied, fmt.Errorf("executing migration %s: %w", path, err)
		}
		log.Debug("migration applied", "file", filepath.Base(path))
	}
	return len(files), nil
}

// applyMigration executes one file in its own transaction.
func applyMigration(ctx context.Context, pool MigrationPool, stmt string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("exec: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

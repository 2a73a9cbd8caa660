package database

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedded embed.FS

const bookkeepingDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Migrations is the schema shipped inside the binary
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration is one NNN_name.sql file
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator brings a database up to the latest schema version
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// AppliedVersions lists versions recorded in schema_migrations
func (m *Migrator) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Migrate applies the embedded schema
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.RunMigrations(ctx, Migrations())
}

// RunMigrations applies every migration in fsys not yet recorded.
// Each file runs in its own transaction; earlier files stay applied when a later one fails.
func (m *Migrator) RunMigrations(ctx context.Context, fsys fs.FS) error {
	if _, err := m.db.ExecContext(ctx, bookkeepingDDL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}

	var count int
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %03d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("Migration applied", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		count++
	}

	m.logger.Info("Schema up to date", zap.Int("applied", count), zap.Int("known", len(migrations)))
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return m.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name)
		return err
	})
}

// LoadMigrations reads *.sql files from fsys ordered by their numeric prefix
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration
	owner := make(map[int]string)

	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".sql" {
			return err
		}

		file := path.Base(p)
		prefix, name, _ := strings.Cut(strings.TrimSuffix(file, ".sql"), "_")
		version, convErr := strconv.Atoi(prefix)
		if convErr != nil || version <= 0 {
			return fmt.Errorf("migration %s: name must start with a positive version number", file)
		}
		if prev, taken := owner[version]; taken {
			return fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, file)
		}
		owner[version] = file

		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(body)})
		return nil
	}
	if err := fs.WalkDir(fsys, ".", walk); err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

var (
	databaseURL   = flag.String("database-url", os.Getenv("AOTG_DATABASE_URL"), "Postgres connection URL (or set AOTG_DATABASE_URL)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/postgres", "Path to migrations directory")
)

var migrationPattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

func main() {
	_ = godotenv.Load()
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Error: -database-url flag or AOTG_DATABASE_URL is required.")
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer conn.Close(ctx)

	if err := ensureMigrationsTable(ctx, conn); err != nil {
		log.Fatalf("Failed to create schema_migrations table: %v", err)
	}

	migrations, err := loadMigrations(*migrationsDir)
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}
	if len(migrations) == 0 {
		log.Fatalf("No migration files found in %s", *migrationsDir)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		log.Fatalf("Failed to read applied migrations: %v", err)
	}

	pending := 0
	for _, m := range migrations {
		if checksum, ok := applied[m.Version]; ok {
			if checksum != m.Checksum {
				log.Fatalf("Migration %04d (%s) was modified after being applied", m.Version, m.Name)
			}
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			log.Fatalf("Failed to apply migration %04d (%s): %v", m.Version, m.Name, err)
		}
		log.Printf("Applied migration %04d: %s", m.Version, m.Name)
		pending++
	}

	if pending == 0 {
		log.Println("Database is up to date")
	} else {
		log.Printf("Applied %d migration(s)", pending)
	}
}

func ensureMigrationsTable(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL,
			applied_by TEXT NOT NULL
		)`)
	return err
}

// loadMigrations reads NNNN_name.sql files and returns them sorted by
// version.
func loadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := migrationPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version in %s: %w", entry.Name(), err)
		}
		sqlBytes, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     m[2],
			Filename: entry.Name(),
			SQL:      string(sqlBytes),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(sqlBytes)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func appliedVersions(ctx context.Context, conn *pgx.Conn) (map[int]string, error) {
	rows, err := conn.Query(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// applyMigration runs one migration file and records it, inside a single
// transaction.
func applyMigration(ctx context.Context, conn *pgx.Conn, m Migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, checksum, applied_at, applied_by)
		VALUES ($1, $2, $3, $4, $5)`,
		m.Version, m.Name, m.Checksum, time.Now().UTC(), *appliedBy); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

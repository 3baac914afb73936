package db

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one applied schema migration as recorded in the ledger.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migrationFile is a parsed embedded SQL file, named V<version>__<desc>.up.sql.
type migrationFile struct {
	version     int
	description string
	name        string
}

// Migrator applies the embedded schema migrations. Terminals ship as a
// single binary, so the schema always travels with the code that needs it.
type Migrator struct {
	db    *sql.DB
	files fs.FS
}

// NewMigrator creates a Migrator over the embedded migration files.
func NewMigrator(db *sql.DB) *Migrator {
	sub, _ := fs.Sub(migrationFS, "migrations")
	return &Migrator{db: db, files: sub}
}

// Up applies every migration not yet recorded, in version order. Calling
// it against an up-to-date database is a no-op.
func (m *Migrator) Up() error {
	if err := m.ensureLedger(); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "could not create migration ledger", err)
	}

	done, err := m.appliedVersions()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "could not read migration ledger", err)
	}

	files, err := m.available()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "could not list migrations", err)
	}

	for _, f := range files {
		if done[f.version] {
			continue
		}
		if err := m.apply(f); err != nil {
			return apperrors.Wrap(apperrors.ErrMigration,
				fmt.Sprintf("migration V%d (%s) failed", f.version, f.description), err)
		}
	}
	return nil
}

// Down rolls back the most recent migration using its .down.sql companion.
func (m *Migrator) Down() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	if current == 0 {
		return apperrors.New(apperrors.ErrMigration, "no migrations to roll back")
	}

	matches, err := fs.Glob(m.files, fmt.Sprintf("V%d__*.down.sql", current))
	if err != nil || len(matches) == 0 {
		return apperrors.New(apperrors.ErrMigration,
			fmt.Sprintf("no rollback file for version %d", current))
	}
	script, err := fs.ReadFile(m.files, matches[0])
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "could not read rollback file", err)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(script)); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration,
			fmt.Sprintf("rollback of version %d failed", current), err)
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", current); err != nil {
		return err
	}
	return tx.Commit()
}

// CurrentVersion returns the highest applied migration version, 0 for a
// fresh database.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Applied returns the migration ledger in version order.
func (m *Migrator) Applied() ([]Migration, error) {
	rows, err := m.db.Query(
		"SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Migration
	for rows.Next() {
		var mig Migration
		var at int64
		if err := rows.Scan(&mig.Version, &at, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(at, 0)
		out = append(out, mig)
	}
	return out, rows.Err()
}

func (m *Migrator) ensureLedger() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY CHECK(version > 0),
			applied_at INTEGER NOT NULL CHECK(applied_at > 0),
			description TEXT NOT NULL CHECK(length(description) > 0),
			checksum TEXT NOT NULL CHECK(length(checksum) = 64)
		)`)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	ledger, err := m.Applied()
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(ledger))
	for _, mig := range ledger {
		done[mig.Version] = true
	}
	return done, nil
}

// available parses the embedded .up.sql files and returns them sorted by
// version. Files that do not match the naming scheme are ignored.
func (m *Migrator) available() ([]migrationFile, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}

	var files []migrationFile
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		stem := strings.TrimSuffix(name, ".up.sql")
		prefix, desc, ok := strings.Cut(stem, "__")
		if !ok || !strings.HasPrefix(prefix, "V") {
			continue
		}
		version, err := strconv.Atoi(prefix[1:])
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: version, description: desc, name: name})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// apply runs one migration script and records it, atomically. The checksum
// lets an operator detect a script edited after it was applied.
func (m *Migrator) apply(f migrationFile) error {
	script, err := fs.ReadFile(m.files, f.name)
	if err != nil {
		return err
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(script)); err != nil {
		return err
	}

	sum := sha256.Sum256(script)
	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
		f.version, time.Now().Unix(), f.description, hex.EncodeToString(sum[:]))
	if err != nil {
		return err
	}
	return tx.Commit()
}

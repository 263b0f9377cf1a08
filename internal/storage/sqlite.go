package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite database holding submitted reports and generated
// summaries.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "bouwbuddy.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: writers never see "database is locked", and an
	// in-memory database is not split across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Reports ---

// Append stores one submitted report. Records are never updated afterwards.
func (s *Store) Append(ctx context.Context, r fieldreport.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, user_id, name, job_function, company, location, hours_worked, task_description, planning_notes, photo_ref, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, r.Function, r.Company, r.Location, r.Hours,
		r.TaskDescription, r.PlanningNotes, r.PhotoRef, formatTime(r.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", r.ID, err)
	}
	return nil
}

// Query returns the reports submitted within tr, in insertion order.
func (s *Store) Query(ctx context.Context, tr fieldreport.TimeRange) ([]fieldreport.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, job_function, company, location, hours_worked, task_description, planning_notes, photo_ref, submitted_at
		FROM reports WHERE submitted_at >= ? AND submitted_at < ? ORDER BY seq ASC`,
		formatTime(tr.From), formatTime(tr.To),
	)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var results []fieldreport.Record
	for rows.Next() {
		var r fieldreport.Record
		var submittedAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Function, &r.Company, &r.Location, &r.Hours,
			&r.TaskDescription, &r.PlanningNotes, &r.PhotoRef, &submittedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, submittedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing submitted_at: %w", err)
		}
		r.SubmittedAt = t.Local()
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountReports returns the total number of stored reports.
func (s *Store) CountReports(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&n)
	return n, err
}

// --- Summaries ---

// SaveSummary records a generated report body.
func (s *Store) SaveSummary(ctx context.Context, sum Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (id, report_window, created_at, record_count, body)
		VALUES (?, ?, ?, ?, ?)`,
		sum.ID, sum.Window, formatTime(sum.CreatedAt), sum.RecordCount, sum.Body,
	)
	return err
}

// GetSummary returns a single summary by id.
func (s *Store) GetSummary(ctx context.Context, id string) (Summary, error) {
	var sum Summary
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, report_window, created_at, record_count, body FROM summaries WHERE id = ?`, id,
	).Scan(&sum.ID, &sum.Window, &createdAt, &sum.RecordCount, &sum.Body)
	if err == sql.ErrNoRows {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sum.CreatedAt = t.Local()
	return sum, nil
}

// ListSummaries returns the most recent summaries, newest first.
func (s *Store) ListSummaries(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_window, created_at, record_count, body
		FROM summaries ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var sum Summary
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.Window, &createdAt, &sum.RecordCount, &sum.Body); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		sum.CreatedAt = t.Local()
		results = append(results, sum)
	}
	return results, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

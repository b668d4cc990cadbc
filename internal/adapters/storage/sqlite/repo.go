package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/sgc/internal/app"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements app.Store over a connection or a transaction.
type store struct {
	q dbtx
}

// Repository persists processes, maps, units and the notification outbox in SQLite.
type Repository struct {
	*store
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	// One connection serializes writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	repo := &Repository{store: &store{q: db}, db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InTx runs fn against a transaction-bound store and commits when fn succeeds.
func (r *Repository) InTx(ctx context.Context, fn func(app.Store) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&store{q: tx}); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			superior_id TEXT NOT NULL DEFAULT '',
			responsible_id TEXT NOT NULL DEFAULT '',
			responsible_name TEXT NOT NULL DEFAULT '',
			responsible_email TEXT NOT NULL DEFAULT '',
			substitute_id TEXT NOT NULL DEFAULT '',
			substitute_name TEXT NOT NULL DEFAULT '',
			substitute_email TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS processes (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			deadline TEXT,
			unit_ids_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT
		);`,
		// maps.subprocess_id is not a foreign key: the map is written before its subprocess,
		// and imported effective maps have none.
		`CREATE TABLE IF NOT EXISTS maps (
			id TEXT PRIMARY KEY,
			subprocess_id TEXT NOT NULL DEFAULT '',
			unit_id TEXT NOT NULL,
			suggestions TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subprocesses (
			id TEXT PRIMARY KEY,
			process_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			map_id TEXT NOT NULL,
			state TEXT NOT NULL,
			location_unit_id TEXT NOT NULL,
			stage1_deadline TEXT,
			stage1_completed_at TEXT,
			stage2_deadline TEXT,
			stage2_completed_at TEXT,
			impacts_verified_at TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(process_id, unit_id),
			FOREIGN KEY(process_id) REFERENCES processes(id) ON DELETE CASCADE,
			FOREIGN KEY(map_id) REFERENCES maps(id)
		);`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			map_id TEXT NOT NULL,
			origin_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			FOREIGN KEY(map_id) REFERENCES maps(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			activity_id TEXT NOT NULL,
			description TEXT NOT NULL,
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS competencies (
			id TEXT PRIMARY KEY,
			map_id TEXT NOT NULL,
			description TEXT NOT NULL,
			FOREIGN KEY(map_id) REFERENCES maps(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS competency_activities (
			competency_id TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			PRIMARY KEY(competency_id, activity_id),
			FOREIGN KEY(competency_id) REFERENCES competencies(id) ON DELETE CASCADE,
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS effective_maps (
			unit_id TEXT PRIMARY KEY,
			map_id TEXT NOT NULL,
			process_id TEXT NOT NULL DEFAULT '',
			effective_since TEXT NOT NULL,
			FOREIGN KEY(map_id) REFERENCES maps(id)
		);`,
		`CREATE TABLE IF NOT EXISTS movements (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			subprocess_id TEXT NOT NULL,
			origin_unit_id TEXT NOT NULL DEFAULT '',
			destination_unit_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			performed_by TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL,
			FOREIGN KEY(subprocess_id) REFERENCES subprocesses(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS analyses (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			subprocess_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			action TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			analyst_id TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			observations TEXT NOT NULL DEFAULT '',
			impact_summary TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(subprocess_id) REFERENCES subprocesses(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notification_outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recipient TEXT NOT NULL,
			subject TEXT NOT NULL,
			body_html TEXT NOT NULL,
			created_at TEXT NOT NULL,
			sent_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_subprocesses_unit ON subprocesses(unit_id);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_map ON activities(map_id);`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_activity ON knowledge(activity_id);`,
		`CREATE INDEX IF NOT EXISTS idx_competencies_map ON competencies(map_id);`,
		`CREATE INDEX IF NOT EXISTS idx_movements_subprocess ON movements(subprocess_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_subprocess ON analyses(subprocess_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON notification_outbox(sent_at, id);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// translateNoRows maps an update or delete that touched nothing to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// notFound maps sql.ErrNoRows to app.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// zeroableTS stores the zero time as NULL.
func zeroableTS(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return ts(t)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// parseZeroableTS is the inverse of zeroableTS.
func parseZeroableTS(v sql.NullString) time.Time {
	if parsed := parseNullTS(v); parsed != nil {
		return *parsed
	}
	return time.Time{}
}

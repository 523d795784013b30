package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	embedsql "github.com/ldi/tt/embed/sql"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	path             string
	onChange         func(ctx context.Context)
	onChangeMu       sync.RWMutex
	onChangeDisabled bool
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = fn
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn := db.onChange
	disabled := db.onChangeDisabled
	db.onChangeMu.RUnlock()

	if fn != nil && !disabled {
		fn(ctx)
	}
}

// Path returns the location the store was opened at.
func (db *DB) Path() string {
	return db.path
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, corrupt(path, fmt.Errorf("failed to open database: %w", err))
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, corrupt(path, fmt.Errorf("failed to create database directory: %w", err))
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, corrupt(path, fmt.Errorf("failed to enable WAL mode: %w", err))
	}

	// Foreign keys support
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, corrupt(path, fmt.Errorf("failed to enable foreign keys: %w", err))
	}

	// Writers in other processes wait for the lock instead of failing
	// immediately.
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, corrupt(path, fmt.Errorf("failed to set busy timeout: %w", err))
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{DB: db, path: path}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return corrupt(db.path, fmt.Errorf("migration failed: %w", err))
	}
	db.triggerChange(ctx)
	return nil
}

// Init applies the embedded schema and upgrades databases written by
// earlier releases of the tool.
func (db *DB) Init(ctx context.Context) error {
	if err := db.migrateLegacy(ctx); err != nil {
		return err
	}
	if err := db.Migrate(ctx, embedsql.Schema); err != nil {
		return err
	}
	return db.seedCounter(ctx)
}

// migrateLegacy renames the tasks.id column used by the first release.
// Databases created by this version already carry tasks.number.
func (db *DB) migrateLegacy(ctx context.Context) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('tasks')`)
	if err != nil {
		return corrupt(db.path, err)
	}
	defer rows.Close()

	var hasID, hasNumber bool
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return corrupt(db.path, err)
		}
		switch name {
		case "id":
			hasID = true
		case "number":
			hasNumber = true
		}
	}
	if err := rows.Err(); err != nil {
		return corrupt(db.path, err)
	}

	if hasID && !hasNumber {
		if _, err := db.ExecContext(ctx, `ALTER TABLE tasks RENAME COLUMN id TO number`); err != nil {
			return corrupt(db.path, fmt.Errorf("failed to migrate tasks table: %w", err))
		}
	}
	return nil
}

// seedCounter raises the high-water mark to cover task rows the counter
// has never seen, such as those from a migrated legacy database.
func (db *DB) seedCounter(ctx context.Context) error {
	query := `
		UPDATE task_counter
		SET last_number = MAX(last_number, (SELECT COALESCE(MAX(number), 0) FROM tasks))
		WHERE id = 1
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return corrupt(db.path, fmt.Errorf("failed to seed task counter: %w", err))
	}
	return nil
}

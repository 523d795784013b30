package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys enabled (1), got %d", fk)
	}

	var timeout int
	err = db.QueryRow("PRAGMA busy_timeout").Scan(&timeout)
	if err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("Expected busy_timeout 5000, got %d", timeout)
	}

	if db.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, db.Path())
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE test (
		id INTEGER PRIMARY KEY,
		name TEXT
	);
	`
	ctx := context.Background()
	if err := db.Migrate(ctx, schema); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}

	_, err = db.Exec("INSERT INTO test (name) VALUES (?)", "foo")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM test WHERE id = 1").Scan(&name)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if name != "foo" {
		t.Errorf("Expected foo, got %s", name)
	}
}

func TestInit(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Tables from the schema exist
	if _, err := db.Exec("SELECT 1 FROM tasks LIMIT 1"); err != nil {
		t.Fatalf("Tasks table does not exist or query failed: %v", err)
	}
	if _, err := db.Exec("SELECT 1 FROM prs LIMIT 1"); err != nil {
		t.Fatalf("Prs table does not exist or query failed: %v", err)
	}

	// Counter row is seeded at zero
	max, err := db.MaxAllocated(ctx)
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if max != 0 {
		t.Errorf("Expected counter 0 on a fresh database, got %d", max)
	}

	// Init is safe to run again
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Second Init failed: %v", err)
	}
}

func TestInitLegacyDatabase(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// 1. Recreate the layout the first release wrote: tasks keyed by id,
	// no counter table, no defaults.
	legacy := `
	CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT UNIQUE NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE prs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_code TEXT NOT NULL,
		repo TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (task_code) REFERENCES tasks (code)
	);
	INSERT INTO tasks (id, code, status, created_at) VALUES
		(1, 'tt-1', 'open', '2024-01-15 10:30:00'),
		(2, 'tt-2', 'linked', '2024-02-01 09:00:00'),
		(3, 'tt-3', 'open', '2024-02-20 16:45:00');
	INSERT INTO prs (task_code, repo, pr_number, title, body, created_at) VALUES
		('tt-2', 'owner/repo', 42, 'Legacy PR', 'legacy body', '2024-02-02 11:00:00');
	`
	if _, err := db.Exec(legacy); err != nil {
		t.Fatalf("Failed to create legacy layout: %v", err)
	}

	// 2. Init migrates it
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Init failed on legacy database: %v", err)
	}

	// 3. Counter picks up where the legacy rows left off
	max, err := db.MaxAllocated(ctx)
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if max != 3 {
		t.Errorf("Expected counter 3 after migration, got %d", max)
	}

	allocated, err := db.AllocateTask(ctx)
	if err != nil {
		t.Fatalf("Failed to allocate after migration: %v", err)
	}
	if allocated.Code != "tt-4" {
		t.Errorf("Expected tt-4 after migrating three legacy tasks, got %s", allocated.Code)
	}

	// 4. Legacy rows read back intact, including the link
	legacyTask, err := db.GetTask(ctx, "tt-2")
	if err != nil {
		t.Fatalf("Failed to get legacy task: %v", err)
	}
	if legacyTask.Status != "linked" {
		t.Errorf("Expected legacy task status linked, got %s", legacyTask.Status)
	}
	if legacyTask.Link == nil {
		t.Fatalf("Expected legacy link to be populated")
	}
	if legacyTask.Link.Repo != "owner/repo" || legacyTask.Link.Number != 42 {
		t.Errorf("Unexpected legacy link: %s#%d", legacyTask.Link.Repo, legacyTask.Link.Number)
	}
	if legacyTask.Link.Title != "Legacy PR" {
		t.Errorf("Expected legacy link title to survive, got %q", legacyTask.Link.Title)
	}
}

package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldi/tt/internal/config"
)

// testConfig returns a config rooted in a temp directory so tests never
// touch the real database.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "tasks.db")
	cfg.SnapshotPath = ""
	return cfg
}

// captureOutput runs fn with os.Stdout redirected to a pipe and returns
// what it printed.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	return buf.String(), runErr
}

func TestRunNewPrintsCode(t *testing.T) {
	cfg := testConfig(t)

	out, err := captureOutput(t, func() error { return runNew(cfg) })
	if err != nil {
		t.Fatalf("runNew failed: %v", err)
	}
	// The clipboard line only appears when a clipboard is available.
	if !strings.Contains(out, "tt-1") {
		t.Errorf("expected output to contain tt-1, got: %s", out)
	}

	out, err = captureOutput(t, func() error { return runNew(cfg) })
	if err != nil {
		t.Fatalf("runNew failed: %v", err)
	}
	if !strings.Contains(out, "tt-2") {
		t.Errorf("expected output to contain tt-2, got: %s", out)
	}
}

func TestRunListEmpty(t *testing.T) {
	cfg := testConfig(t)

	out, err := captureOutput(t, func() error { return runList(cfg) })
	if err != nil {
		t.Fatalf("runList failed: %v", err)
	}
	if !strings.Contains(out, "No tasks yet") {
		t.Errorf("expected empty-registry hint, got: %s", out)
	}
}

func TestRunListShowsTasks(t *testing.T) {
	cfg := testConfig(t)
	for i := 0; i < 2; i++ {
		if _, err := captureOutput(t, func() error { return runNew(cfg) }); err != nil {
			t.Fatalf("runNew failed: %v", err)
		}
	}

	out, err := captureOutput(t, func() error { return runList(cfg) })
	if err != nil {
		t.Fatalf("runList failed: %v", err)
	}
	for _, want := range []string{"ID", "STATUS", "tt-1", "tt-2", "open"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected list output to contain %q, got: %s", want, out)
		}
	}
	// Newest first.
	if strings.Index(out, "tt-2") > strings.Index(out, "tt-1") {
		t.Errorf("expected tt-2 before tt-1, got: %s", out)
	}
}

func TestRunDelete(t *testing.T) {
	cfg := testConfig(t)
	if _, err := captureOutput(t, func() error { return runNew(cfg) }); err != nil {
		t.Fatalf("runNew failed: %v", err)
	}

	out, err := captureOutput(t, func() error { return runDelete(cfg, []string{"tt-1"}) })
	if err != nil {
		t.Fatalf("runDelete failed: %v", err)
	}
	if !strings.Contains(out, "✓ Deleted tt-1") {
		t.Errorf("expected deletion confirmation, got: %s", out)
	}

	// The deleted number stays burned.
	out, err = captureOutput(t, func() error { return runNew(cfg) })
	if err != nil {
		t.Fatalf("runNew failed: %v", err)
	}
	if !strings.Contains(out, "tt-2") {
		t.Errorf("expected tt-2 after deleting tt-1, got: %s", out)
	}
}

func TestRunDeleteUsage(t *testing.T) {
	cfg := testConfig(t)

	_, err := captureOutput(t, func() error { return runDelete(cfg, nil) })
	if err == nil || !strings.Contains(err.Error(), "usage: tt delete") {
		t.Errorf("expected usage error, got: %v", err)
	}
}

func TestRunStatus(t *testing.T) {
	cfg := testConfig(t)

	out, err := captureOutput(t, func() error { return runStatus(cfg) })
	if err != nil {
		t.Fatalf("runStatus failed: %v", err)
	}
	if !strings.Contains(out, "0 (0 open, 0 linked)") {
		t.Errorf("expected empty counts, got: %s", out)
	}
	if !strings.Contains(out, "Next code: tt-1") {
		t.Errorf("expected next code tt-1, got: %s", out)
	}

	for i := 0; i < 2; i++ {
		if _, err := captureOutput(t, func() error { return runNew(cfg) }); err != nil {
			t.Fatalf("runNew failed: %v", err)
		}
	}
	if _, err := captureOutput(t, func() error { return runDelete(cfg, []string{"tt-1"}) }); err != nil {
		t.Fatalf("runDelete failed: %v", err)
	}

	out, err = captureOutput(t, func() error { return runStatus(cfg) })
	if err != nil {
		t.Fatalf("runStatus failed: %v", err)
	}
	if !strings.Contains(out, "1 (1 open, 0 linked)") {
		t.Errorf("expected one open task, got: %s", out)
	}
	// Deletion never lowers the high-water mark.
	if !strings.Contains(out, "Next code: tt-3") {
		t.Errorf("expected next code tt-3, got: %s", out)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	source := testConfig(t)
	for i := 0; i < 2; i++ {
		if _, err := captureOutput(t, func() error { return runNew(source) }); err != nil {
			t.Fatalf("runNew failed: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "snap.jsonl")
	out, err := captureOutput(t, func() error { return runExport(source, []string{path}) })
	if err != nil {
		t.Fatalf("runExport failed: %v", err)
	}
	if !strings.Contains(out, "✓ Exported snapshot to "+path) {
		t.Errorf("expected export confirmation, got: %s", out)
	}

	target := testConfig(t)
	out, err = captureOutput(t, func() error { return runImport(target, []string{path}) })
	if err != nil {
		t.Fatalf("runImport failed: %v", err)
	}
	if !strings.Contains(out, "✓ Imported snapshot from "+path) {
		t.Errorf("expected import confirmation, got: %s", out)
	}

	out, err = captureOutput(t, func() error { return runStatus(target) })
	if err != nil {
		t.Fatalf("runStatus failed: %v", err)
	}
	if !strings.Contains(out, "2 (2 open, 0 linked)") {
		t.Errorf("expected imported counts, got: %s", out)
	}
	if !strings.Contains(out, "Next code: tt-3") {
		t.Errorf("expected counter to follow the import, got: %s", out)
	}
}

func TestRunExportNoPath(t *testing.T) {
	cfg := testConfig(t)

	_, err := captureOutput(t, func() error { return runExport(cfg, nil) })
	if err == nil || !strings.Contains(err.Error(), "no snapshot path") {
		t.Errorf("expected missing-path error, got: %v", err)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	args := []string{"-config", filepath.Join(t.TempDir(), "missing.toml"), "bogus"}

	err := execute(args, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unknown command: bogus") {
		t.Errorf("expected unknown command error, got: %v", err)
	}
}

func TestExecuteHelp(t *testing.T) {
	var stderr bytes.Buffer

	err := execute([]string{"-h"}, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got: %v", err)
	}
	for _, want := range []string{"Running `tt` with no command launches the TUI.", "Commands:", "mcp"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("expected help to contain %q, got: %s", want, stderr.String())
		}
	}
}

func TestExecuteDBOverride(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "override.db")
	var stderr bytes.Buffer
	args := []string{"-config", filepath.Join(dir, "missing.toml"), "-db", dbPath, "new"}

	out, err := captureOutput(t, func() error { return execute(args, &stderr) })
	if err != nil {
		t.Fatalf("execute failed: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(out, "tt-1") {
		t.Errorf("expected allocated code, got: %s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database at the override path: %v", err)
	}
}

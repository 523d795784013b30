package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ldi/tt/pkg/models"
)

func TestAutoSnapshot(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}

	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "auto-snapshot.jsonl")

	db.EnableAutoSnapshot(snapshotPath)

	// Allocation triggers the first export
	if _, err := db.AllocateTask(ctx); err != nil {
		t.Fatalf("Failed to allocate task: %v", err)
	}

	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		t.Fatalf("Snapshot file was not created after AllocateTask")
	}

	getModTime := func(path string) time.Time {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Failed to stat snapshot: %v", err)
		}
		return info.ModTime()
	}

	modTime1 := getModTime(snapshotPath)

	// Ensure some time passes so mod time definitely changes if it's updated
	time.Sleep(10 * time.Millisecond)

	link := &models.PullRequestLink{Repo: "owner/repo", Number: 3, Title: "T", Body: "B"}
	if _, err := db.MarkLinked(ctx, "tt-1", link); err != nil {
		t.Fatalf("Failed to link task: %v", err)
	}

	modTime2 := getModTime(snapshotPath)
	if !modTime2.After(modTime1) {
		t.Errorf("Snapshot file was not updated after MarkLinked")
	}

	time.Sleep(10 * time.Millisecond)
	if err := db.DeleteTask(ctx, "tt-1"); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}

	modTime3 := getModTime(snapshotPath)
	if !modTime3.After(modTime2) {
		t.Errorf("Snapshot file was not updated after DeleteTask")
	}

	// Reads leave the snapshot alone
	time.Sleep(10 * time.Millisecond)
	if _, err := db.ListTasks(ctx); err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	modTime4 := getModTime(snapshotPath)
	if !modTime4.Equal(modTime3) {
		t.Errorf("Snapshot file changed after a read-only operation")
	}
}

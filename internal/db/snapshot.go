package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/tt/pkg/models"
)

type snapshotMeta struct {
	RecordType string    `json:"record_type"`
	SnapshotID string    `json:"snapshot_id"`
	ExportedAt time.Time `json:"exported_at"`
	TaskCount  int       `json:"task_count"`
}

type snapshotTask struct {
	RecordType string            `json:"record_type"`
	Number     int               `json:"number"`
	Code       string            `json:"code"`
	Status     models.TaskStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

type snapshotLink struct {
	RecordType string    `json:"record_type"`
	TaskCode   string    `json:"task_code"`
	Repo       string    `json:"repo"`
	PRNumber   int       `json:"pr_number"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// We ignore the error here as hooks are best-effort in this context,
		// and we don't want to fail the original write operation if the export fails.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes the whole store as JSONL to the given path,
// atomically using a temporary file. Task records precede link records.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	tasks, err := db.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to query snapshot tasks: %w", err)
	}

	writeLine := func(record any) error {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot record: %w", err)
		}
		if _, err := tempFile.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
		return nil
	}

	meta := snapshotMeta{
		RecordType: "meta",
		SnapshotID: uuid.New().String(),
		ExportedAt: time.Now().UTC(),
		TaskCount:  len(tasks),
	}
	if err := writeLine(meta); err != nil {
		return err
	}

	for _, t := range tasks {
		record := snapshotTask{
			RecordType: "task",
			Number:     t.Number,
			Code:       t.Code,
			Status:     t.Status,
			CreatedAt:  t.CreatedAt,
		}
		if err := writeLine(record); err != nil {
			return err
		}
	}

	for _, t := range tasks {
		if t.Link == nil {
			continue
		}
		record := snapshotLink{
			RecordType: "link",
			TaskCode:   t.Link.TaskCode,
			Repo:       t.Link.Repo,
			PRNumber:   t.Link.Number,
			Title:      t.Link.Title,
			Body:       t.Link.Body,
			CreatedAt:  t.Link.CreatedAt,
		}
		if err := writeLine(record); err != nil {
			return err
		}
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and populates the database. It
// runs in one transaction, upserts tasks by code, skips links that are
// already present, and raises the counter past the highest imported
// number.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return fmt.Errorf("failed to unmarshal base record: %w", err)
		}

		switch base.RecordType {
		case "meta":
			// Skip meta
		case "task":
			var t snapshotTask
			if err := json.Unmarshal(line, &t); err != nil {
				return fmt.Errorf("failed to unmarshal task: %w", err)
			}
			if t.Number < 1 {
				return fmt.Errorf("invalid task number in snapshot: %d", t.Number)
			}
			if !t.Status.IsValid() {
				return fmt.Errorf("invalid task status in snapshot: %s", t.Status)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO tasks (number, code, status, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(number) DO UPDATE SET status = excluded.status, created_at = excluded.created_at`,
				t.Number, models.Code(t.Number), t.Status, t.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to sync task %s: %w", t.Code, err)
			}

		case "link":
			var l snapshotLink
			if err := json.Unmarshal(line, &l); err != nil {
				return fmt.Errorf("failed to unmarshal link: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO prs (task_code, repo, pr_number, title, body, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				l.TaskCode, l.Repo, l.PRNumber, l.Title, l.Body, l.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to sync link %s -> %s: %w", l.TaskCode, models.PRKey(l.Repo, l.PRNumber), err)
			}

			// A link row implies a linked task.
			_, err = tx.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE code = ?`,
				models.TaskStatusLinked, l.TaskCode)
			if err != nil {
				return fmt.Errorf("failed to sync link status for %s: %w", l.TaskCode, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	raise := `
		UPDATE task_counter
		SET last_number = MAX(last_number, (SELECT COALESCE(MAX(number), 0) FROM tasks))
		WHERE id = 1
	`
	if _, err := tx.ExecContext(ctx, raise); err != nil {
		return fmt.Errorf("failed to advance task counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/tt/pkg/models"
)

// AllocateTask hands out the next task number and inserts the task in a
// single transaction. The counter update runs first so concurrent
// allocators serialize on the write lock; numbers are never skipped or
// reused, even after deletes.
func (db *DB) AllocateTask(ctx context.Context) (*models.Task, error) {
	var t *models.Task
	err := db.withWriteRetry(ctx, func() error {
		var err error
		t, err = db.allocateTask(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return t, nil
}

func (db *DB) allocateTask(ctx context.Context) (*models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var number int
	counter := `
		UPDATE task_counter
		SET last_number = last_number + 1
		WHERE id = 1
		RETURNING last_number
	`
	if err := tx.QueryRowContext(ctx, counter).Scan(&number); err != nil {
		return nil, fmt.Errorf("failed to advance task counter: %w", err)
	}

	// Timestamps are set here rather than by a column default; migrated
	// legacy tables have no default on created_at.
	t := &models.Task{
		Number:    number,
		Code:      models.Code(number),
		Status:    models.TaskStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	insert := `
		INSERT INTO tasks (number, code, status, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insert, t.Number, t.Code, t.Status, t.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by its code, with the pull request link
// populated when one exists.
func (db *DB) GetTask(ctx context.Context, code string) (*models.Task, error) {
	number, err := models.ParseCode(code)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", code, ErrNotFound)
	}

	query := `
		SELECT t.number, t.code, t.status, t.created_at,
		       p.id, p.repo, p.pr_number, p.title, p.body, p.created_at
		FROM tasks t
		LEFT JOIN prs p ON p.task_code = t.code
		WHERE t.number = ?
	`
	t, err := scanTask(db.QueryRowContext(ctx, query, number))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", models.Code(number), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks returns every task, highest number first, with links populated.
func (db *DB) ListTasks(ctx context.Context) ([]*models.Task, error) {
	query := `
		SELECT t.number, t.code, t.status, t.created_at,
		       p.id, p.repo, p.pr_number, p.title, p.body, p.created_at
		FROM tasks t
		LEFT JOIN prs p ON p.task_code = t.code
		ORDER BY t.number DESC
	`
	return db.queryTasks(ctx, query)
}

// queryTasks is a helper to execute a query that returns a list of tasks.
func (db *DB) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var (
		linkID   sql.NullInt64
		repo     sql.NullString
		prNumber sql.NullInt64
		title    sql.NullString
		body     sql.NullString
		linkedAt sql.NullTime
	)
	err := row.Scan(
		&t.Number, &t.Code, &t.Status, &t.CreatedAt,
		&linkID, &repo, &prNumber, &title, &body, &linkedAt,
	)
	if err != nil {
		return nil, err
	}

	if linkID.Valid {
		t.Link = &models.PullRequestLink{
			ID:        linkID.Int64,
			TaskCode:  t.Code,
			Repo:      repo.String,
			Number:    int(prNumber.Int64),
			Title:     title.String,
			Body:      body.String,
			CreatedAt: linkedAt.Time,
		}
	}
	return t, nil
}

// DeleteTask removes a task and its pull request link. The number is not
// returned to the pool; a later allocation continues past it.
func (db *DB) DeleteTask(ctx context.Context, code string) error {
	number, err := models.ParseCode(code)
	if err != nil {
		return fmt.Errorf("task %q: %w", code, ErrNotFound)
	}

	err = db.withWriteRetry(ctx, func() error {
		return db.deleteTask(ctx, number)
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) deleteTask(ctx context.Context, number int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Legacy databases lack ON DELETE CASCADE on prs.task_code.
	if _, err := tx.ExecContext(ctx, `DELETE FROM prs WHERE task_code = ?`, models.Code(number)); err != nil {
		return fmt.Errorf("failed to delete pull request link: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE number = ?`, number)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", models.Code(number), ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkLinked transitions an open task to linked and records the pull
// request snapshot, atomically. Each task transitions at most once; a
// second attempt fails with ErrInvalidTransition.
func (db *DB) MarkLinked(ctx context.Context, code string, link *models.PullRequestLink) (*models.Task, error) {
	number, err := models.ParseCode(code)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", code, ErrNotFound)
	}

	var t *models.Task
	err = db.withWriteRetry(ctx, func() error {
		var err error
		t, err = db.markLinked(ctx, number, link)
		return err
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return t, nil
}

func (db *DB) markLinked(ctx context.Context, number int, link *models.PullRequestLink) (*models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	code := models.Code(number)
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE number = ? AND status = ?`,
		models.TaskStatusLinked, number, models.TaskStatusOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Guard did not fire: the task is missing or no longer open.
		var status models.TaskStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE number = ?`, number).Scan(&status)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task %s: %w", code, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get task: %w", err)
		}
		return nil, fmt.Errorf("task %s is already %s: %w", code, status, ErrInvalidTransition)
	}

	stored, err := db.createLink(ctx, tx, code, link)
	if err != nil {
		return nil, err
	}

	t := &models.Task{Number: number, Code: code, Status: models.TaskStatusLinked, Link: stored}
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM tasks WHERE number = ?`, number).Scan(&t.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// ImportLinked creates a task that enters the registry already linked, for
// codes referenced by a pull request but never allocated here. The counter
// is raised past the imported number so allocation never reissues it.
func (db *DB) ImportLinked(ctx context.Context, number int, link *models.PullRequestLink) (*models.Task, error) {
	if number < 1 {
		return nil, fmt.Errorf("task number must be positive, got %d", number)
	}

	var t *models.Task
	err := db.withWriteRetry(ctx, func() error {
		var err error
		t, err = db.importLinked(ctx, number, link)
		return err
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return t, nil
}

func (db *DB) importLinked(ctx context.Context, number int, link *models.PullRequestLink) (*models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t := &models.Task{
		Number:    number,
		Code:      models.Code(number),
		Status:    models.TaskStatusLinked,
		CreatedAt: time.Now().UTC(),
	}
	insert := `
		INSERT INTO tasks (number, code, status, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insert, t.Number, t.Code, t.Status, t.CreatedAt); err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("task %s already exists: %w", t.Code, ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	stored, err := db.createLink(ctx, tx, t.Code, link)
	if err != nil {
		return nil, err
	}
	t.Link = stored

	raise := `UPDATE task_counter SET last_number = MAX(last_number, ?) WHERE id = 1`
	if _, err := tx.ExecContext(ctx, raise, number); err != nil {
		return nil, fmt.Errorf("failed to advance task counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

func (db *DB) createLink(ctx context.Context, exec executor, taskCode string, link *models.PullRequestLink) (*models.PullRequestLink, error) {
	stored := &models.PullRequestLink{
		TaskCode:  taskCode,
		Repo:      link.Repo,
		Number:    link.Number,
		Title:     link.Title,
		Body:      link.Body,
		CreatedAt: time.Now().UTC(),
	}
	query := `
		INSERT INTO prs (task_code, repo, pr_number, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := exec.QueryRowContext(ctx, query,
		stored.TaskCode, stored.Repo, stored.Number, stored.Title, stored.Body, stored.CreatedAt,
	).Scan(&stored.ID)
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("pull request %s already linked: %w", stored.Key(), ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to create pull request link: %w", err)
	}
	return stored, nil
}

// MaxAllocated returns the highest task number handed out so far.
func (db *DB) MaxAllocated(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT last_number FROM task_counter WHERE id = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read task counter: %w", err)
	}
	return n, nil
}

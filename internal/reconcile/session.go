package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/internal/forge"
	"github.com/ldi/tt/internal/match"
	"github.com/ldi/tt/pkg/models"
)

// Store is the slice of the task registry that reconciliation needs.
type Store interface {
	ListTasks(ctx context.Context) ([]*models.Task, error)
	GetTask(ctx context.Context, code string) (*models.Task, error)
	MarkLinked(ctx context.Context, code string, link *models.PullRequestLink) (*models.Task, error)
	ImportLinked(ctx context.Context, number int, link *models.PullRequestLink) (*models.Task, error)
}

// PROpener opens a pull request in the user's browser.
type PROpener interface {
	OpenPR(ctx context.Context, repo string, number int) error
}

// ScanResult is one fresh pass over the PR source.
type ScanResult struct {
	Items    []Classified `json:"items"`
	Degraded bool         `json:"degraded"`
	Reason   string       `json:"reason,omitempty"`
}

// Actionable returns the items whose apply would change the registry.
func (r *ScanResult) Actionable() []Classified {
	var out []Classified
	for _, item := range r.Items {
		if item.Actionable() {
			out = append(out, item)
		}
	}
	return out
}

// Session holds the per-process reconciliation state: the ignore set and
// the latest scan. Nothing here is ever persisted; a new process starts
// with everything un-ignored.
type Session struct {
	id     string
	store  Store
	source forge.PRSource
	opener PROpener
	logger *slog.Logger

	mu       sync.Mutex
	ignored  map[string]struct{}
	lastScan []Classified
}

func NewSession(store Store, source forge.PRSource, opener PROpener, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:      uuid.New().String(),
		store:   store,
		source:  source,
		opener:  opener,
		logger:  logger,
		ignored: make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Scan fetches the open pull requests fresh and classifies every task
// reference against the current registry. An unreachable PR source produces
// a degraded result, zero items with the reason preserved, instead of an
// error, so callers can keep working with the registry alone.
func (s *Session) Scan(ctx context.Context, cwd string) (*ScanResult, error) {
	candidates, err := s.source.ListCandidatePRs(ctx, cwd)
	if err != nil {
		if errors.Is(err, forge.ErrUnavailable) {
			s.logger.Debug("scan degraded", "session", s.id, "reason", err.Error())
			s.mu.Lock()
			s.lastScan = nil
			s.mu.Unlock()
			return &ScanResult{Degraded: true, Reason: err.Error()}, nil
		}
		return nil, err
	}

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := Classify(tasks, match.Extract(candidates), s.ignored)
	s.lastScan = items
	s.logger.Debug("scan classified", "session", s.id, "candidates", len(candidates), "items", len(items))
	return &ScanResult{Items: items}, nil
}

// Ignore dismisses a PR key ("owner/name#number") or a task code for the
// rest of the process. Unknown keys are accepted; they simply never match.
func (s *Session) Ignore(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[key] = struct{}{}
}

// Find returns the item for a PR key from the latest scan.
func (s *Session) Find(key string) (Classified, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.lastScan {
		if item.Key() == key {
			return item, true
		}
	}
	return Classified{}, false
}

// Apply executes one actionable item against the registry. An item that
// went stale between scan and apply, because another process claimed the
// task or the PR, surfaces db.ErrInvalidTransition; callers re-scan to
// pick up the new state.
func (s *Session) Apply(ctx context.Context, item Classified) (*models.Task, error) {
	link := &models.PullRequestLink{
		TaskCode: item.Code,
		Repo:     item.Candidate.Repo,
		Number:   item.Candidate.Number,
		Title:    item.Candidate.Title,
		Body:     item.Candidate.Body,
	}
	switch item.Action {
	case ActionLink:
		return s.store.MarkLinked(ctx, item.Code, link)
	case ActionImport:
		return s.store.ImportLinked(ctx, item.Number, link)
	default:
		return nil, fmt.Errorf("candidate %s is not actionable: %w", item.Key(), db.ErrInvalidTransition)
	}
}

// OpenPR opens the pull request linked to the given task.
func (s *Session) OpenPR(ctx context.Context, code string) error {
	task, err := s.store.GetTask(ctx, code)
	if err != nil {
		return err
	}
	if task.Link == nil {
		return fmt.Errorf("no pr linked to %s: %w", task.Code, db.ErrNotFound)
	}
	return s.opener.OpenPR(ctx, task.Link.Repo, task.Link.Number)
}

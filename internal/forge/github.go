package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ldi/tt/pkg/models"
)

// ghPR mirrors the fields we care about from gh's JSON output.
type ghPR struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	HeadRefName string `json:"headRefName"`
}

// GitHub fetches pull requests by shelling out to the gh CLI. It holds no
// connection state, so a single value is safe for concurrent use.
type GitHub struct {
	cmdFactory func(ctx context.Context, name string, arg ...string) *exec.Cmd
	repo       string
	limit      int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewGitHub returns a source backed by the gh CLI. repo pins the owner/name;
// when empty it is detected from the scan's working directory. limit caps how
// many open PRs one scan fetches and timeout bounds each gh invocation; zero
// values pick defaults.
func NewGitHub(repo string, limit int, timeout time.Duration, logger *slog.Logger) *GitHub {
	if limit <= 0 {
		limit = 100
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		cmdFactory: exec.CommandContext,
		repo:       repo,
		limit:      limit,
		timeout:    timeout,
		logger:     logger,
	}
}

// ListCandidatePRs returns the open pull requests for the repository that
// contains cwd. A missing or unauthenticated gh, or a cwd outside any GitHub
// repository, comes back as ErrUnavailable.
func (g *GitHub) ListCandidatePRs(ctx context.Context, cwd string) ([]models.Candidate, error) {
	if _, err := g.run(ctx, "", "auth", "status"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	repo, err := g.resolveRepo(ctx, cwd)
	if err != nil {
		return nil, err
	}

	out, err := g.run(ctx, cwd,
		"pr", "list",
		"--repo", repo,
		"--json", "number,title,body,headRefName",
		"--limit", strconv.Itoa(g.limit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing pull requests: %v", ErrUnavailable, err)
	}

	var prs []ghPR
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("%w: parsing gh output: %v", ErrUnavailable, err)
	}

	candidates := make([]models.Candidate, 0, len(prs))
	for _, pr := range prs {
		candidates = append(candidates, models.Candidate{
			Repo:   repo,
			Branch: pr.HeadRefName,
			Number: pr.Number,
			Title:  pr.Title,
			Body:   pr.Body,
		})
	}
	g.logger.Debug("fetched pull requests", "repo", repo, "count", len(candidates))
	return candidates, nil
}

// OpenPR opens the pull request in a browser, preferring gh's --web flow and
// falling back to launching the GitHub URL directly.
func (g *GitHub) OpenPR(ctx context.Context, repo string, number int) error {
	_, err := g.run(ctx, "", "pr", "view", strconv.Itoa(number), "--repo", repo, "--web")
	if err == nil {
		return nil
	}
	g.logger.Debug("gh pr view --web failed, launching browser", "error", err)
	return g.openURL(ctx, fmt.Sprintf("https://github.com/%s/pull/%d", repo, number))
}

// resolveRepo returns the owner/name for the repository that contains dir.
func (g *GitHub) resolveRepo(ctx context.Context, dir string) (string, error) {
	if g.repo != "" {
		return g.repo, nil
	}
	out, err := g.run(ctx, dir, "repo", "view", "--json", "nameWithOwner", "-q", ".nameWithOwner")
	if err != nil {
		return "", fmt.Errorf("%w: not in a github repository: %v", ErrUnavailable, err)
	}
	repo := strings.TrimSpace(string(out))
	if repo == "" {
		return "", fmt.Errorf("%w: could not determine repository", ErrUnavailable)
	}
	return repo, nil
}

// run executes one gh command and returns its stdout.
func (g *GitHub) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := g.cmdFactory(ctx, "gh", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, errors.New("gh executable not found")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, errors.New(strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("gh %s: %w", args[0], err)
	}
	return out, nil
}

func (g *GitHub) openURL(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = g.cmdFactory(ctx, "open", url)
	case "windows":
		cmd = g.cmdFactory(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = g.cmdFactory(ctx, "xdg-open", url)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

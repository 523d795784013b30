package forge

import (
	"context"
	"errors"

	"github.com/ldi/tt/pkg/models"
)

// ErrUnavailable reports that the pull request source cannot be reached:
// the gh executable is missing, unauthenticated, or the working directory
// is not inside a GitHub repository. Callers should degrade rather than
// abort when they see it.
var ErrUnavailable = errors.New("pr source unavailable")

// PRSource lists open pull requests for link reconciliation.
type PRSource interface {
	// ListCandidatePRs returns the open pull requests for the repository
	// that contains cwd. Implementations wrap every reachability failure
	// in ErrUnavailable.
	ListCandidatePRs(ctx context.Context, cwd string) ([]models.Candidate, error)
}

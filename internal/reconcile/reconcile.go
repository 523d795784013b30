package reconcile

import (
	"github.com/ldi/tt/internal/match"
	"github.com/ldi/tt/pkg/models"
)

// Action says what applying a classified candidate would do.
type Action string

const (
	// ActionImport creates the referenced task and links it in one step.
	ActionImport Action = "import"
	// ActionLink attaches the candidate to an existing open task.
	ActionLink Action = "link"
	// ActionAlreadyLinked marks candidates whose task or PR is taken.
	ActionAlreadyLinked Action = "already_linked"
	// ActionIgnored marks candidates dismissed for this session.
	ActionIgnored Action = "ignored"
)

// Classified pairs a matched pull request with the action its task
// reference currently admits.
type Classified struct {
	Action    Action           `json:"action"`
	Code      string           `json:"code"`
	Number    int              `json:"number"`
	Candidate models.Candidate `json:"candidate"`
}

// Actionable reports whether applying the item would change the registry.
func (c Classified) Actionable() bool {
	return c.Action == ActionImport || c.Action == ActionLink
}

// Key identifies the underlying pull request ("owner/name#number").
func (c Classified) Key() string {
	return c.Candidate.Key()
}

// Classify decides, for every matched candidate, what applying it would do
// given the current registry contents. ignored holds session-dismissed PR
// keys and task codes and takes precedence over registry state. Input order
// is preserved.
func Classify(tasks []*models.Task, matches []match.Match, ignored map[string]struct{}) []Classified {
	byNumber := make(map[int]*models.Task, len(tasks))
	linkedPRs := make(map[string]struct{})
	for _, t := range tasks {
		byNumber[t.Number] = t
		if t.Link != nil {
			linkedPRs[t.Link.Key()] = struct{}{}
		}
	}

	out := make([]Classified, 0, len(matches))
	for _, m := range matches {
		item := Classified{
			Code:      m.Code,
			Number:    m.Number,
			Candidate: m.Candidate,
		}
		if _, ok := ignored[m.Candidate.Key()]; ok {
			item.Action = ActionIgnored
		} else if _, ok := ignored[m.Code]; ok {
			item.Action = ActionIgnored
		} else if _, ok := linkedPRs[m.Candidate.Key()]; ok {
			item.Action = ActionAlreadyLinked
		} else if task, ok := byNumber[m.Number]; !ok {
			item.Action = ActionImport
		} else if task.Status == models.TaskStatusOpen {
			item.Action = ActionLink
		} else {
			item.Action = ActionAlreadyLinked
		}
		out = append(out, item)
	}
	return out
}

package models

import (
	"fmt"
	"time"
)

type PullRequestLink struct {
	ID        int64     `json:"id"`
	TaskCode  string    `json:"task_code"`
	Repo      string    `json:"repo"`
	Number    int       `json:"pr_number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// URL returns the pull request's web address.
func (l *PullRequestLink) URL() string {
	return fmt.Sprintf("https://github.com/%s/pull/%d", l.Repo, l.Number)
}

func (l *PullRequestLink) Key() string {
	return PRKey(l.Repo, l.Number)
}

// PRKey identifies a pull request within a session, e.g. "owner/name#12".
func PRKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

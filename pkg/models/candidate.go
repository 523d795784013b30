package models

// Candidate is an open pull request offered to the matcher. Title and Body
// are verbatim snapshots from the source, never re-synced.
type Candidate struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Number int    `json:"pr_number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (c Candidate) Key() string {
	return PRKey(c.Repo, c.Number)
}

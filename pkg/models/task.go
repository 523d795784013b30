package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CodePrefix is shared by every task code.
const CodePrefix = "tt-"

type TaskStatus string

const (
	TaskStatusOpen   TaskStatus = "open"
	TaskStatusLinked TaskStatus = "linked"
)

func (s TaskStatus) IsValid() bool {
	return s == TaskStatusOpen || s == TaskStatusLinked
}

type Task struct {
	Number    int        `json:"number"`
	Code      string     `json:"code"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`

	// Link is a helper field for joined queries; nil while the task is open.
	Link *PullRequestLink `json:"link,omitempty"`
}

// Code formats a task number as its canonical code, e.g. 7 -> "tt-7".
func Code(number int) string {
	return CodePrefix + strconv.Itoa(number)
}

// ParseCode extracts the number from a task code. Codes match
// case-insensitively and must carry a positive integer; the canonical
// form of the input is Code(ParseCode(input)).
func ParseCode(code string) (int, error) {
	rest, ok := strings.CutPrefix(strings.ToLower(code), CodePrefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("invalid task code: %q", code)
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid task code: %q", code)
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid task code: %q", code)
	}
	return n, nil
}

package match

import (
	"regexp"
	"strconv"

	"github.com/ldi/tt/pkg/models"
)

// pattern matches task references like "tt-12". The prefix is
// case-insensitive and must sit on word boundaries, so "feature/tt-5-fix"
// matches while "attt-5" does not.
var pattern = regexp.MustCompile(`(?i)\btt-(\d+)\b`)

// Match pairs a candidate with the task reference found in it.
type Match struct {
	Number    int
	Code      string
	Candidate models.Candidate
}

// Extract finds the task reference in each candidate, searching the branch
// name first and the title second. The first reference wins; a candidate
// naming several tasks contributes only one match. Candidates without a
// reference are dropped. Output preserves input order and contains each
// pull request at most once.
func Extract(candidates []models.Candidate) []Match {
	var matches []Match
	seen := make(map[string]struct{})

	for _, c := range candidates {
		if _, dup := seen[c.Key()]; dup {
			continue
		}

		number, ok := firstNumber(c.Branch)
		if !ok {
			number, ok = firstNumber(c.Title)
		}
		if !ok {
			continue
		}

		seen[c.Key()] = struct{}{}
		matches = append(matches, Match{
			Number:    number,
			Code:      models.Code(number),
			Candidate: c,
		})
	}
	return matches
}

// firstNumber returns the number of the first task reference in s.
// References that do not parse to a positive int are skipped, so
// "tt-0 then tt-3" yields 3.
func firstNumber(s string) (int, bool) {
	for _, m := range pattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		return n, true
	}
	return 0, false
}

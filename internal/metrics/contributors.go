package metrics

import (
	"sort"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
)

// MinorSharePercent is the inclusive upper bound, in percent of the total
// weight, for a contributor to count as minor
const MinorSharePercent = 5

// ErrEmptyCounter is returned when metrics are requested for a counter with
// no contributors or no positive weight
var ErrEmptyCounter = dmerrors.PreconditionError("contributor counter is empty or has zero total weight")

// Counter maps a contributor identity (author email) to a contribution
// weight: lines in a blame or commits in a log
type Counter map[string]int

// NewCounter counts every occurrence of an identity
func NewCounter(identities []string) Counter {
	c := make(Counter, len(identities))
	for _, id := range identities {
		c[id]++
	}
	return c
}

// Add increments the weight of identity by n
func (c Counter) Add(identity string, n int) {
	c[identity] += n
}

// Total returns the summed weight of every contributor
func (c Counter) Total() int {
	total := 0
	for _, w := range c {
		total += w
	}
	return total
}

// IsMinor reports whether weight is at most 5% of total. Integer arithmetic
// keeps exactly 5% on the minor side.
func IsMinor(weight, total int) bool {
	return weight*100 <= total*MinorSharePercent
}

// Owner returns the identity with the largest weight. Ties go to the
// lexicographically smallest identity.
func (c Counter) Owner() (string, int) {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	owner, best := "", -1
	for _, id := range ids {
		if c[id] > best {
			owner, best = id, c[id]
		}
	}
	return owner, best
}

// Metrics summarises the authorship distribution of a counter relative to
// one subject identity (usually the commit author)
type Metrics struct {
	Total         int     `json:"total_contributors"`
	Minor         int     `json:"minor_contributors"`
	Major         int     `json:"major_contributors"`
	Ownership     float64 `json:"ownership_best_contributor"`
	AuthorShare   float64 `json:"commit_author_ratio"`
	AuthorIsOwner bool    `json:"commit_author_is_best_contributor"`
	Owner         string  `json:"owner"`
}

// Compute derives the Metrics record of counter for subject.
// Returns ErrEmptyCounter when the counter cannot produce shares.
func Compute(counter Counter, subject string) (Metrics, error) {
	total := counter.Total()
	if len(counter) == 0 || total <= 0 {
		return Metrics{}, ErrEmptyCounter
	}

	m := Metrics{Total: len(counter)}
	for _, w := range counter {
		if IsMinor(w, total) {
			m.Minor++
		} else {
			m.Major++
		}
	}

	owner, best := counter.Owner()
	m.Owner = owner
	m.Ownership = float64(best) / float64(total)
	m.AuthorShare = float64(counter[subject]) / float64(total)
	m.AuthorIsOwner = owner == subject

	return m, nil
}

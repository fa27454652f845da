// Package bugfix classifies commits as bug fixes from their titles.
package bugfix

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultKeywords mark a development-time bug fix when found in a title
var DefaultKeywords = []string{
	"error", "bug", "fix", "issue", "mistake",
	"incorrect", "fault", "defect", "flaw", "typo",
}

// Classification tells which kinds of bug fix a commit title represents
type Classification struct {
	PostRelease bool     // references a known tracker bug
	DevTime     bool     // contains a bug keyword
	IssueKeys   []string // every issue key found in the title
}

// IsFix reports whether the commit fixes at least one bug
func (c Classification) IsFix() bool {
	return c.PostRelease || c.DevTime
}

// Count is the number of bugs the commit is credited with fixing (0, 1 or 2)
func (c Classification) Count() int {
	n := 0
	if c.PostRelease {
		n++
	}
	if c.DevTime {
		n++
	}
	return n
}

// Detector matches commit titles against tracker keys and keywords
type Detector struct {
	keywords []string
	issueKey *regexp.Regexp
	bugs     map[string]struct{}
}

// NewDetector builds a detector for the given project keys (e.g. LUCENE,
// HADOOP). Empty keywords fall back to DefaultKeywords.
func NewDetector(projectKeys, keywords []string) (*Detector, error) {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	d := &Detector{bugs: make(map[string]struct{})}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			d.keywords = append(d.keywords, k)
		}
	}

	if len(projectKeys) > 0 {
		quoted := make([]string, 0, len(projectKeys))
		for _, k := range projectKeys {
			if k == "" {
				continue
			}
			quoted = append(quoted, regexp.QuoteMeta(strings.ToUpper(k)))
		}
		re, err := regexp.Compile(fmt.Sprintf(`\b(?:%s)-\d{1,5}\b`, strings.Join(quoted, "|")))
		if err != nil {
			return nil, fmt.Errorf("invalid project keys: %w", err)
		}
		d.issueKey = re
	}

	return d, nil
}

// AddBugKeys registers tracker issue keys known to be fixed bugs
func (d *Detector) AddBugKeys(keys ...string) {
	for _, k := range keys {
		d.bugs[k] = struct{}{}
	}
}

// BugKeys returns how many bug keys are registered
func (d *Detector) BugKeys() int {
	return len(d.bugs)
}

// Classify inspects a commit title
func (d *Detector) Classify(title string) Classification {
	var c Classification

	if d.issueKey != nil {
		c.IssueKeys = d.issueKey.FindAllString(title, -1)
		for _, key := range c.IssueKeys {
			if _, ok := d.bugs[key]; ok {
				c.PostRelease = true
				break
			}
		}
	}

	lower := strings.ToLower(title)
	for _, k := range d.keywords {
		if strings.Contains(lower, k) {
			c.DevTime = true
			break
		}
	}

	return c
}

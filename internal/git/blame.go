package git

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BlameLine is the provenance of one line of a blamed file version.
type BlameLine struct {
	Commit     string    // 40-char hash of the commit that introduced the line
	Line       int       // 1-based position in the blamed file
	OrigLine   int       // position in the introducing commit's version
	AuthorMail string    // without angle brackets
	AuthorTime time.Time // UTC
	Filename   string    // path of the file at the introducing commit
}

var blameHeader = regexp.MustCompile(`^([0-9a-f]{40}) (\d+) (\d+)(?: (\d+))?$`)

type commitMeta struct {
	authorMail string
	authorTime time.Time
	filename   string
}

// ParseBlame parses `git blame --porcelain` or `--line-porcelain` output.
//
// Commit metadata is printed once per commit in --porcelain and once per line
// in --line-porcelain, so it is remembered per hash. The filename header
// applies to the rest of its group. In --porcelain a later group of an
// already seen commit may omit it; such a group keeps the commit's last
// filename.
func ParseBlame(output string) ([]BlameLine, error) {
	var (
		lines    []BlameLine
		current  *BlameLine
		meta     = make(map[string]*commitMeta)
		filename string
	)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		text := scanner.Text()

		if current == nil {
			if text == "" {
				continue
			}
			m := blameHeader.FindStringSubmatch(text)
			if m == nil {
				return nil, fmt.Errorf("unexpected blame header: %q", text)
			}
			orig, _ := strconv.Atoi(m[2])
			final, _ := strconv.Atoi(m[3])
			current = &BlameLine{Commit: m[1], Line: final, OrigLine: orig}
			cm, ok := meta[m[1]]
			if !ok {
				cm = &commitMeta{}
				meta[m[1]] = cm
			}
			// a group count starts a new group
			if m[4] != "" {
				filename = cm.filename
			}
			continue
		}

		// content line closes the entry
		if strings.HasPrefix(text, "\t") {
			cm := meta[current.Commit]
			current.AuthorMail = cm.authorMail
			current.AuthorTime = cm.authorTime
			current.Filename = filename
			lines = append(lines, *current)
			current = nil
			continue
		}

		key, value, _ := strings.Cut(text, " ")
		switch key {
		case "author-mail":
			meta[current.Commit].authorMail = strings.TrimSuffix(strings.TrimPrefix(value, "<"), ">")
		case "author-time":
			secs, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad author-time %q: %w", value, err)
			}
			meta[current.Commit].authorTime = time.Unix(secs, 0).UTC()
		case "filename":
			filename = value
			meta[current.Commit].filename = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning blame output: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("truncated blame output at line %d", current.Line)
	}

	return lines, nil
}

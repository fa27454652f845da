package git

import (
	"regexp"
	"strconv"
)

// LineRange is an inclusive range of line numbers in the pre-change file.
type LineRange struct {
	Start int
	End   int
}

// Contains reports whether line n falls inside the range
func (r LineRange) Contains(n int) bool {
	return r.Start <= n && n <= r.End
}

// hunkHeader matches "@@ -X[,Y] +Z[,W] @@". Only the minus side is captured.
var hunkHeader = regexp.MustCompile(`(?m)^@@ -(\d+)(?:,(\d+))? \+\d+(?:,\d+)? @@`)

// ParseRemovedRanges returns the line ranges removed by a zero-context
// unified diff, in hunk order. A missing count means one line; a count of
// zero is a pure addition and contributes nothing. Ranges are not merged.
func ParseRemovedRanges(diff string) []LineRange {
	var ranges []LineRange

	for _, m := range hunkHeader.FindAllStringSubmatch(diff, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		count := 1
		if m[2] != "" {
			count, err = strconv.Atoi(m[2])
			if err != nil {
				continue
			}
		}

		if count == 0 {
			continue
		}

		ranges = append(ranges, LineRange{Start: start, End: start + count - 1})
	}

	return ranges
}

// InAnyRange reports whether line n is covered by one of the ranges
func InAnyRange(ranges []LineRange, n int) bool {
	for _, r := range ranges {
		if r.Contains(n) {
			return true
		}
	}
	return false
}
